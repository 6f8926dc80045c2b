package modules

import (
	"fmt"
	"net"

	"github.com/hookrelay/hookrelay/utils"
)

type StatusConfig struct {
	BaseConfig
	Listen string `yaml:"listen" json:"listen" default:"127.0.0.1:9602"`
}

func (cfg StatusConfig) Validate() error {
	if cfg.IsEnabled() {
		_, _, err := net.SplitHostPort(cfg.Listen)
		if err != nil {
			return fmt.Errorf("invalid listen '%s': %s", cfg.Listen, err)
		}
	}
	return nil
}

func (cfg StatusConfig) IsEnabled() bool {
	return isListenEnabled(cfg.Listen)
}

func (cfg StatusConfig) URL() string {
	if !cfg.IsEnabled() {
		return "disabled"
	}
	return utils.ListenAddrToURL(false, cfg.Listen)
}
