package sanitize

import (
	"encoding/json"
	"strings"
)

const Redacted = "[REDACTED]"

var DefaultKeys = []string{"password", "token", "secret", "key", "credit_card"}

type Sanitizer struct {
	keys []string
}

func New(keys ...string) *Sanitizer {
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	lowered := make([]string, 0, len(keys))
	for _, k := range keys {
		lowered = append(lowered, strings.ToLower(k))
	}
	return &Sanitizer{keys: lowered}
}

func (s *Sanitizer) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, k := range s.keys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

// Value returns a deep copy of v with every sensitive key redacted.
// Only JSON-shaped values (maps, slices, scalars) are walked.
func (s *Sanitizer) Value(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			if s.sensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = s.Value(e)
			}
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			if s.sensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = e
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = s.Value(e)
		}
		return out
	default:
		return v
	}
}

// JSON sanitizes a JSON document. A body that is not valid JSON is
// returned unchanged.
func (s *Sanitizer) JSON(body []byte) []byte {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	b, err := json.Marshal(s.Value(v))
	if err != nil {
		return body
	}
	return b
}

// Headers redacts sensitive header values, returning a new map.
func (s *Sanitizer) Headers(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if s.sensitive(k) || strings.EqualFold(k, "Authorization") {
			out[k] = Redacted
		} else {
			out[k] = v
		}
	}
	return out
}

var defaultSanitizer = New()

func Value(v interface{}) interface{} {
	return defaultSanitizer.Value(v)
}

func JSON(body []byte) []byte {
	return defaultSanitizer.JSON(body)
}

func Headers(headers map[string]string) map[string]string {
	return defaultSanitizer.Headers(headers)
}
