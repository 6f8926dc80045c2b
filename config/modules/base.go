package modules

import "github.com/hookrelay/hookrelay/config/types"

var _ types.Config = BaseConfig{}

type BaseConfig struct{}

func (c BaseConfig) PostProcess() error { return nil }
func (c BaseConfig) Validate() error    { return nil }

func isListenEnabled(listen string) bool {
	return listen != "" && listen != "off"
}
