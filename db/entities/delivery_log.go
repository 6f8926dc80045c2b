package entities

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/hookrelay/hookrelay/pkg/types"
)

type LogDirection string

const (
	LogDirectionOutgoing LogDirection = "outgoing"
	LogDirectionIncoming LogDirection = "incoming"
)

type LogKind string

const (
	LogKindSuccess LogKind = "success"
	LogKindError   LogKind = "error"
)

type DeliveryLog struct {
	ID             string       `json:"id" db:"id"`
	Direction      LogDirection `json:"direction" db:"direction"`
	Kind           LogKind      `json:"kind" db:"kind"`
	ConfigID       string       `json:"config_id" db:"config_id"`
	DeliveryID     *string      `json:"delivery_id" db:"delivery_id"`
	Attempt        *int         `json:"attempt" db:"attempt"`
	Event          string       `json:"event" db:"event"`
	DurationMs     int64        `json:"duration_ms" db:"duration_ms"`
	ResponseStatus *int         `json:"response_status" db:"response_status"`
	Request        *LogRequest  `json:"request" db:"request"`
	Response       *LogResponse `json:"response" db:"response"`
	Error          *string      `json:"error" db:"error"`
	OwnerID        string       `json:"owner_id" db:"owner_id"`
	CreatedAt      types.Time   `json:"created_at" db:"created_at"`
}

type LogRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    *string           `json:"body"`
}

func (m *LogRequest) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m LogRequest) Value() (driver.Value, error) {
	return json.Marshal(m)
}

type LogResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    *string           `json:"body"`
}

func (m *LogResponse) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m LogResponse) Value() (driver.Value, error) {
	return json.Marshal(m)
}
