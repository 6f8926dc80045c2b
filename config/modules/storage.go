package modules

import (
	"fmt"
	"slices"
)

type QueueType string

const (
	QueueTypeRedis  QueueType = "redis"
	QueueTypeMemory QueueType = "memory"
)

// QueueConfig selects the delivery queue backend. The memory queue loses
// scheduled retries on restart.
type QueueConfig struct {
	BaseConfig
	Type QueueType `yaml:"type" json:"type" default:"redis"`
}

func (cfg QueueConfig) Validate() error {
	if !slices.Contains([]QueueType{QueueTypeRedis, QueueTypeMemory}, cfg.Type) {
		return fmt.Errorf("invalid queue type: %s", cfg.Type)
	}
	return nil
}

type StoreType string

const (
	StoreTypePostgres StoreType = "postgres"
	StoreTypeMemory   StoreType = "memory"
)

type StoreConfig struct {
	BaseConfig
	Type StoreType `yaml:"type" json:"type" default:"postgres"`
}

func (cfg StoreConfig) Validate() error {
	if !slices.Contains([]StoreType{StoreTypePostgres, StoreTypeMemory}, cfg.Type) {
		return fmt.Errorf("invalid store type: %s", cfg.Type)
	}
	return nil
}
