package modules

import (
	"errors"
	"fmt"

	"github.com/hookrelay/hookrelay/utils"
)

type AdminConfig struct {
	BaseConfig
	Listen    string          `yaml:"listen" json:"listen" default:"127.0.0.1:9601"`
	TLS       TLS             `yaml:"tls" json:"tls"`
	AccessLog AccessLogConfig `yaml:"access_log" json:"access_log" envconfig:"ACCESS_LOG"`
}

func (cfg AdminConfig) Validate() error {
	if err := cfg.AccessLog.Validate(); err != nil {
		return err
	}
	return cfg.TLS.Validate()
}

func (cfg AdminConfig) URL() string {
	if !cfg.IsEnabled() {
		return "disabled"
	}
	return utils.ListenAddrToURL(cfg.TLS.Enabled(), cfg.Listen)
}

func (cfg AdminConfig) IsEnabled() bool {
	return isListenEnabled(cfg.Listen)
}

type AccessLogConfig struct {
	Enabled bool      `yaml:"enabled" json:"enabled" default:"true"`
	Format  LogFormat `yaml:"format" json:"format" default:"text"`
	File    string    `yaml:"file" json:"file" default:"/dev/stdout"`
}

func (cfg AccessLogConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Format != LogFormatText && cfg.Format != LogFormatJson {
		return fmt.Errorf("invalid access_log format: %s", cfg.Format)
	}
	if cfg.File == "" {
		return errors.New("access_log.file cannot be empty")
	}
	return nil
}

type TLS struct {
	Cert string `yaml:"cert" json:"cert"`
	Key  string `yaml:"key" json:"key"`
}

func (cfg TLS) Enabled() bool {
	return cfg.Cert != "" && cfg.Key != ""
}

func (cfg TLS) Validate() error {
	if (cfg.Cert == "") != (cfg.Key == "") {
		return errors.New("tls requires both cert and key")
	}
	return nil
}
