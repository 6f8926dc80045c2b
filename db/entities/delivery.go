package entities

import (
	"github.com/hookrelay/hookrelay/pkg/types"
	"github.com/hookrelay/hookrelay/utils"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusRetrying  DeliveryStatus = "retrying"
)

// IsTerminal reports whether no further automatic transition may happen.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

type Delivery struct {
	ID             string         `json:"id" db:"id"`
	ConfigID       string         `json:"config_id" db:"config_id"`
	Event          string         `json:"event" db:"event"`
	Payload        Payload        `json:"payload" db:"payload"`
	Status         DeliveryStatus `json:"status" db:"status"`
	AttemptCount   int            `json:"attempt_count" db:"attempt_count"`
	LastAttemptAt  *types.Time    `json:"last_attempt_at" db:"last_attempt_at"`
	NextRetryAt    *types.Time    `json:"next_retry_at" db:"next_retry_at"`
	ResponseStatus *int           `json:"response_status" db:"response_status"`
	ResponseBody   *string        `json:"response_body" db:"response_body"`
	Error          *string        `json:"error" db:"error"`

	BaseModel
}

// NewDelivery returns a pending delivery that owns payload.
func NewDelivery(config *WebhookConfig, payload Payload) *Delivery {
	return &Delivery{
		ID:       utils.KSUID(),
		ConfigID: config.ID,
		Event:    payload.Event,
		Payload:  payload,
		Status:   DeliveryStatusPending,
		BaseModel: BaseModel{
			OwnerID: config.OwnerID,
		},
	}
}
