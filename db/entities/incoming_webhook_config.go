package entities

import (
	"net"

	"github.com/hookrelay/hookrelay/utils"
)

type IncomingWebhookConfig struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"name" db:"name" validate:"max=255"`
	Endpoint       string  `json:"endpoint" db:"endpoint" validate:"required,max=128,slug"`
	Secret         Secret  `json:"secret" db:"secret"`
	Active         bool    `json:"active" db:"active" default:"true"`
	AllowedSources Strings `json:"allowed_sources" db:"allowed_sources" validate:"dive,ip|cidr"`
	EventMapping   Mapping `json:"event_mapping" db:"event_mapping" validate:"dive,keys,required,endkeys,eventtype"`
	Schema         *string `json:"schema" db:"schema"`
	RateLimit      int     `json:"rate_limit" db:"rate_limit" default:"60" validate:"gte=0"`

	BaseModel
}

func (m *IncomingWebhookConfig) Init() {
	m.ID = utils.KSUID()
}

func (m *IncomingWebhookConfig) Validate() error {
	return utils.Validate(m)
}

// AllowSource reports whether ip passes the source allow-list. An empty
// list allows every source.
func (m *IncomingWebhookConfig) AllowSource(ip net.IP) bool {
	if len(m.AllowedSources) == 0 {
		return true
	}
	if ip == nil {
		return false
	}
	for _, source := range m.AllowedSources {
		if _, ipnet, err := net.ParseCIDR(source); err == nil {
			if ipnet.Contains(ip) {
				return true
			}
			continue
		}
		if allowed := net.ParseIP(source); allowed != nil && allowed.Equal(ip) {
			return true
		}
	}
	return false
}

// MapEvent returns the internal event name for an external one.
func (m *IncomingWebhookConfig) MapEvent(external string) (string, bool) {
	internal, ok := m.EventMapping[external]
	if !ok || internal == "" {
		return "", false
	}
	return internal, true
}
