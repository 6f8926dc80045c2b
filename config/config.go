package config

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/creasty/defaults"
	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/config/types"
)

type Role string

const (
	RoleStandalone Role = "standalone"
	RoleCP         Role = "cp"
	RoleDPWorker   Role = "dp_worker"
	RoleDPProxy    Role = "dp_proxy"
)

type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentDevelopment Environment = "development"
)

var _ types.Config = &Config{}

// Config Configuration
type Config struct {
	modules.BaseConfig
	Environment Environment            `yaml:"environment" json:"environment" default:"production"`
	Role        Role                   `yaml:"role" json:"role" envconfig:"ROLE" default:"standalone"`
	Source      string                 `yaml:"source" json:"source" default:"hookrelay"`
	Log         modules.LogConfig      `yaml:"log" json:"log" envconfig:"LOG"`
	Database    modules.DatabaseConfig `yaml:"database" json:"database" envconfig:"DATABASE"`
	Redis       modules.RedisConfig    `yaml:"redis" json:"redis" envconfig:"REDIS"`
	Queue       modules.QueueConfig    `yaml:"queue" json:"queue" envconfig:"QUEUE"`
	Store       modules.StoreConfig    `yaml:"store" json:"store" envconfig:"STORE"`
	Admin       modules.AdminConfig    `yaml:"admin" json:"admin" envconfig:"ADMIN"`
	Status      modules.StatusConfig   `yaml:"status" json:"status" envconfig:"STATUS"`
	Proxy       modules.ProxyConfig    `yaml:"proxy" json:"proxy" envconfig:"PROXY"`
	Worker      modules.WorkerConfig   `yaml:"worker" json:"worker" envconfig:"WORKER"`
	Metrics     modules.MetricsConfig  `yaml:"metrics" json:"metrics" envconfig:"METRICS"`
	Tracing     modules.TracingConfig  `yaml:"tracing" json:"tracing" envconfig:"TRACING"`
}

func (cfg *Config) PostProcess() error {
	switch cfg.Role {
	case RoleCP:
		if cfg.Admin.Listen == "" {
			cfg.Admin.Listen = "127.0.0.1:9601"
		}
		cfg.Proxy.Listen = ""
		cfg.Worker.Enabled = false
	case RoleDPProxy:
		if cfg.Proxy.Listen == "" {
			cfg.Proxy.Listen = "0.0.0.0:9600"
		}
		cfg.Admin.Listen = ""
		cfg.Worker.Enabled = false
	case RoleDPWorker:
		cfg.Admin.Listen = ""
		cfg.Proxy.Listen = ""
		cfg.Worker.Enabled = true
	}
	return nil
}

// IsProduction reports whether destination checks are enforced when
// webhook configs are created.
func (cfg Config) IsProduction() bool {
	return cfg.Environment == EnvironmentProduction
}

func (cfg Config) String() string {
	bytes, err := json.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

func (cfg Config) Validate() error {
	validators := []types.Config{
		cfg.Log,
		cfg.Database,
		cfg.Redis,
		cfg.Queue,
		cfg.Store,
		cfg.Admin,
		cfg.Status,
		cfg.Proxy,
		&cfg.Worker,
		cfg.Metrics,
		cfg.Tracing,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if !slices.Contains([]Role{RoleStandalone, RoleCP, RoleDPWorker, RoleDPProxy}, cfg.Role) {
		return fmt.Errorf("invalid role: '%s'", cfg.Role)
	}
	if !slices.Contains([]Environment{EnvironmentProduction, EnvironmentDevelopment}, cfg.Environment) {
		return fmt.Errorf("invalid environment: '%s'", cfg.Environment)
	}
	if cfg.Source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if cfg.Store.Type == modules.StoreTypeMemory && cfg.Role != RoleStandalone {
		return fmt.Errorf("store type '%s' requires role '%s'", cfg.Store.Type, RoleStandalone)
	}
	return nil
}

func New() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}
