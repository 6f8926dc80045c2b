package modules

import (
	"errors"
)

// ProxyConfig configures the inbound webhook gateway.
type ProxyConfig struct {
	BaseConfig
	Listen             string `yaml:"listen" json:"listen" default:"0.0.0.0:9600"`
	TLS                TLS    `yaml:"tls" json:"tls"`
	TimeoutRead        int64  `yaml:"timeout_read" json:"timeout_read" default:"10" envconfig:"TIMEOUT_READ"`
	TimeoutWrite       int64  `yaml:"timeout_write" json:"timeout_write" default:"10" envconfig:"TIMEOUT_WRITE"`
	MaxRequestBodySize int64  `yaml:"max_request_body_size" json:"max_request_body_size" default:"1048576" envconfig:"MAX_REQUEST_BODY_SIZE"`
	// RateLimit is the per source quota per minute used when an incoming config sets none.
	RateLimit int             `yaml:"rate_limit" json:"rate_limit" default:"60" envconfig:"RATE_LIMIT"`
	AccessLog AccessLogConfig `yaml:"access_log" json:"access_log" envconfig:"ACCESS_LOG"`
}

func (cfg ProxyConfig) Validate() error {
	if cfg.MaxRequestBodySize < 0 {
		return errors.New("max_request_body_size cannot be negative value")
	}
	if cfg.TimeoutRead < 0 {
		return errors.New("timeout_read cannot be negative value")
	}
	if cfg.TimeoutWrite < 0 {
		return errors.New("timeout_write cannot be negative value")
	}
	if cfg.RateLimit < 0 {
		return errors.New("rate_limit cannot be negative value")
	}
	if err := cfg.AccessLog.Validate(); err != nil {
		return err
	}
	return cfg.TLS.Validate()
}

func (cfg ProxyConfig) IsEnabled() bool {
	return isListenEnabled(cfg.Listen)
}
