package constants

import (
	"time"

	"github.com/hookrelay/hookrelay"
)

// Task Queue
const (
	TaskQueueName               = "hookrelay:queue"
	TaskQueueInvisibleQueueName = "hookrelay:queue_invisible"
	TaskQueueDataName           = "hookrelay:queue_data"
	TaskQueueVisibilityTimeout  = time.Second * 65
)

// Cache
const (
	WebhookConfigCacheName         = "webhook_configs"
	IncomingWebhookConfigCacheName = "incoming_webhook_configs"
)

// Delivery
const (
	PayloadVersion       = "1.0"
	DefaultSource        = "hookrelay"
	MaxResponseBodySize  = 64 * 1024
	MaxRetryDelay        = time.Hour * 24
	TestEventType        = "webhook.test"
	ErrorWebhookDisabled = "webhook disabled"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-ID"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderAttempt   = "X-Webhook-Attempt"
)

type Header struct {
	Name  string
	Value string
}

var (
	UserAgent              = "HookRelay/1.0"
	DefaultResponseHeaders = []Header{
		{Name: "Server", Value: "HookRelay/" + hookrelay.VERSION},
	}
	DefaultDelivererRequestHeaders = []Header{
		{Name: "User-Agent", Value: UserAgent},
		{Name: "Content-Type", Value: "application/json"},
	}
)
