package entities

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/hookrelay/hookrelay/utils"
	"github.com/hookrelay/hookrelay/worker/retry"
)

type WebhookConfig struct {
	ID      string      `json:"id" db:"id"`
	Name    string      `json:"name" db:"name" validate:"required,max=255"`
	URL     string      `json:"url" db:"url" validate:"required,http_url"`
	Events  Strings     `json:"events" db:"events" validate:"min=1,dive,eventtype"`
	Secret  Secret      `json:"secret" db:"secret"`
	Active  bool        `json:"active" db:"active" default:"true"`
	Retry   RetryPolicy `json:"retry" db:"retry"`
	Headers Headers     `json:"headers" db:"headers"`

	BaseModel
}

func (m *WebhookConfig) Init() {
	m.ID = utils.KSUID()
}

func (m *WebhookConfig) Validate() error {
	return utils.Validate(m)
}

// Subscribes reports whether eventType is one of the subscribed events.
func (m *WebhookConfig) Subscribes(eventType string) bool {
	for _, event := range m.Events {
		if event == eventType {
			return true
		}
	}
	return false
}

type RetryPolicy struct {
	MaxAttempts       int     `json:"max_attempts" default:"3" validate:"gte=1,lte=20"`
	InitialDelay      float64 `json:"initial_delay" default:"5" validate:"gte=0"`
	BackoffMultiplier float64 `json:"backoff_multiplier" default:"2" validate:"gte=1"`
}

func (m RetryPolicy) Strategy() retry.Retry {
	return retry.NewRetry(retry.BackoffStrategy, retry.WithBackoff(m.MaxAttempts, m.InitialDelay, m.BackoffMultiplier))
}

func (m *RetryPolicy) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m RetryPolicy) Value() (driver.Value, error) {
	return json.Marshal(m)
}
