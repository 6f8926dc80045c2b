package entities

import "github.com/hookrelay/hookrelay/pkg/types"

type InboundEventStatus string

const (
	InboundEventStatusProcessed InboundEventStatus = "processed"
	InboundEventStatusDropped   InboundEventStatus = "dropped"
)

// InboundEvent records an accepted inbound request by its external id.
type InboundEvent struct {
	ID         string             `json:"id" db:"id"`
	ConfigID   string             `json:"config_id" db:"config_id"`
	ExternalID string             `json:"external_id" db:"external_id"`
	Event      string             `json:"event" db:"event"`
	Status     InboundEventStatus `json:"status" db:"status"`
	ReceivedAt types.Time         `json:"received_at" db:"received_at"`
}
