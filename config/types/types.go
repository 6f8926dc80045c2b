package types

import "encoding/json"

// Config is implemented by every configuration module.
type Config interface {
	Validate() error
	PostProcess() error
}

// Map decodes from a JSON object when set through the environment.
type Map map[string]string

func (m *Map) Decode(value string) error {
	return json.Unmarshal([]byte(value), m)
}

// Password is rendered masked when the configuration is printed.
type Password string

func (p Password) MarshalJSON() ([]byte, error) {
	return json.Marshal("******")
}
