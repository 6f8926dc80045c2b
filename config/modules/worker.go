package modules

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"slices"
)

var hostnameRuleRegexp = regexp.MustCompile(`^(\*\.)?[a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)+$`)

type WorkerDeliverer struct {
	// Timeout is the per attempt timeout in milliseconds.
	Timeout int64     `yaml:"timeout" json:"timeout" default:"30000"`
	ACL     ACLConfig `yaml:"acl" json:"acl"`
	Proxy   string    `yaml:"proxy" json:"proxy"`
}

func (cfg *WorkerDeliverer) Validate() error {
	if cfg.Timeout < 0 {
		return errors.New("deliverer.timeout cannot be negative")
	}
	if err := cfg.ACL.Validate(); err != nil {
		return err
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy url: %s", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid proxy url: '%s'", cfg.Proxy)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("proxy schema must be http or https")
		}
	}
	return nil
}

type Pool struct {
	Size        uint32 `yaml:"size" json:"size" default:"10000"`
	Concurrency uint32 `yaml:"concurrency" json:"concurrency"`
}

type WorkerConfig struct {
	BaseConfig
	Enabled bool `yaml:"enabled" json:"enabled" default:"true"`
	// PollInterval is the queue polling interval in milliseconds.
	PollInterval int64           `yaml:"poll_interval" json:"poll_interval" default:"1000" envconfig:"POLL_INTERVAL"`
	Deliverer    WorkerDeliverer `yaml:"deliverer" json:"deliverer"`
	Pool         Pool            `yaml:"pool" json:"pool"`
	// RequeueInterval is how often, in seconds, due deliveries missing from the queue are re-enqueued.
	RequeueInterval  int64 `yaml:"requeue_interval" json:"requeue_interval" default:"60" envconfig:"REQUEUE_INTERVAL"`
	LogRetentionDays int64 `yaml:"log_retention_days" json:"log_retention_days" default:"30" envconfig:"LOG_RETENTION_DAYS"`
}

func (cfg *WorkerConfig) Status() string {
	if cfg.Enabled {
		return "on"
	}
	return "off"
}

type ACLConfig struct {
	Deny []string `yaml:"deny" json:"deny" default:"[\"@default\"]"`
}

func (acl *ACLConfig) Validate() error {
	for _, rule := range acl.Deny {
		if err := validateRule(rule); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(rule string) error {
	groups := []string{"@default", "@private", "@loopback", "@linklocal", "@reserved"}
	if slices.Contains(groups, rule) {
		return nil
	}
	if _, err := netip.ParseAddr(rule); err == nil {
		return nil
	}
	if _, err := netip.ParsePrefix(rule); err == nil {
		return nil
	}
	if hostnameRuleRegexp.MatchString(rule) {
		return nil
	}
	return fmt.Errorf("invalid rule '%s': requires IP, CIDR, hostname, or pre-configured name", rule)
}

func (cfg *WorkerConfig) Validate() error {
	if cfg.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if cfg.RequeueInterval < 0 {
		return errors.New("requeue_interval cannot be negative")
	}
	if cfg.LogRetentionDays < 0 {
		return errors.New("log_retention_days cannot be negative")
	}
	if err := cfg.Deliverer.Validate(); err != nil {
		return err
	}
	return nil
}
