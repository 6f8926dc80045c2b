package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/hookrelay/hookrelay/pkg/signature"
	"github.com/hookrelay/hookrelay/pkg/types"
	"github.com/lib/pq"
)

type BaseModel struct {
	CreatedAt types.Time `db:"created_at" json:"created_at"`
	UpdatedAt types.Time `db:"updated_at" json:"updated_at"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
}

type Headers map[string]string

func (m *Headers) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m Headers) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Mapping maps external event names to internal ones.
type Mapping map[string]string

func (m *Mapping) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m Mapping) Value() (driver.Value, error) {
	return json.Marshal(m)
}

type Strings = pq.StringArray

// Secret is a signing secret. It is rendered masked in JSON; Reveal
// returns the raw value.
type Secret string

func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal(nil)
	}
	return json.Marshal(signature.Mask(string(s)))
}

func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) Masked() bool {
	return signature.IsMasked(string(s))
}

func scanJSON(src interface{}, v interface{}) error {
	switch b := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(b, v)
	case string:
		return json.Unmarshal([]byte(b), v)
	default:
		return fmt.Errorf("cannot scan %T", src)
	}
}
