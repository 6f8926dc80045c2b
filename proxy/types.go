package proxy

import (
	"net"
	"time"
)

// State is the position of a request in the receiving state machine.
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateMapped    State = "mapped"
	StateProcessed State = "processed"
	StateRejected  State = "rejected"
)

const (
	StatusProcessed = "processed"
	StatusDropped   = "dropped"
	StatusDuplicate = "duplicate"
)

// Request is an inbound webhook call as read by the gateway.
type Request struct {
	Endpoint string
	ClientIP net.IP
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte

	// Signature and MessageID are the X-Webhook-Signature and X-Webhook-ID headers.
	Signature string
	MessageID string

	// BodyTooLarge is set when the body exceeded the size limit and was cut.
	BodyTooLarge bool
}

// Result is the final state of a request and the response to answer with.
type Result struct {
	State      State
	Code       int
	Status     string
	Event      string
	ExternalID string
	RetryAfter time.Duration
	Error      error
}

type Response struct {
	Status  string `json:"status,omitempty"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message,omitempty"`
}
