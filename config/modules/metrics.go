package modules

import (
	"fmt"
	"regexp"
)

var namespaceRegexp = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MetricsConfig controls the prometheus collectors exposed on the status listener.
type MetricsConfig struct {
	BaseConfig
	Enabled   bool   `yaml:"enabled" json:"enabled" default:"true"`
	Namespace string `yaml:"namespace" json:"namespace" default:"hookrelay"`
}

func (cfg MetricsConfig) Validate() error {
	if cfg.Namespace != "" && !namespaceRegexp.MatchString(cfg.Namespace) {
		return fmt.Errorf("invalid namespace: %s", cfg.Namespace)
	}
	return nil
}
