package dispatcher

import "github.com/hookrelay/hookrelay/db/entities"

// Registration indexes the active configs of one owner by event type.
type Registration struct {
	static map[string][]*entities.WebhookConfig
}

func NewRegistration(configs []*entities.WebhookConfig) *Registration {
	r := &Registration{
		static: make(map[string][]*entities.WebhookConfig),
	}

	for _, config := range configs {
		if !config.Active {
			continue
		}
		seen := make(map[string]bool, len(config.Events))
		for _, event := range config.Events {
			if seen[event] {
				continue
			}
			seen[event] = true
			r.static[event] = append(r.static[event], config)
		}
	}
	return r
}

func (r *Registration) LookUp(eventType string) []*entities.WebhookConfig {
	return r.static[eventType]
}
