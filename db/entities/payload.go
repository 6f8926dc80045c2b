package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/utils"
)

// Payload is the body POSTed to destinations. It is never modified after
// NewPayload returns.
type Payload struct {
	ID        string                 `json:"id"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
}

func NewPayload(event string, data map[string]interface{}, source string, now time.Time) Payload {
	if data == nil {
		data = make(map[string]interface{})
	}
	return Payload{
		ID:        utils.UUID(),
		Event:     event,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      data,
		Source:    utils.DefaultIfZero(source, constants.DefaultSource),
		Version:   constants.PayloadVersion,
	}
}

func (m *Payload) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m Payload) Value() (driver.Value, error) {
	return json.Marshal(m)
}
