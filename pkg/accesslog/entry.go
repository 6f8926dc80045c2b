package accesslog

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hookrelay/hookrelay/pkg/tracing"
	"github.com/hookrelay/hookrelay/utils"
	"github.com/rs/zerolog"
)

// OwnerHeader carries the owner on admin requests.
const OwnerHeader = "X-Owner-ID"

type Entry struct {
	Owner    string
	Latency  time.Duration
	ClientIP string
	TraceID  string
	Request  Request
	Response Response
}

type Request struct {
	Method    string
	Path      string
	Proto     string
	UserAgent string
}

type Response struct {
	Status int
	Size   int
}

func NewEntry(r *http.Request) *Entry {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return &Entry{
		Owner:    r.Header.Get(OwnerHeader),
		ClientIP: host,
		TraceID:  tracing.TraceID(r.Context()),
		Request: Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Proto:     r.Proto,
			UserAgent: r.UserAgent(),
		},
	}
}

func (m *Entry) MarshalZerologObject(e *zerolog.Event) {
	e.Str("client_ip", m.ClientIP)
	e.Str("owner", m.Owner)
	e.Dict("request", zerolog.Dict().
		Str("method", m.Request.Method).
		Str("path", m.Request.Path).
		Str("proto", m.Request.Proto).
		Str("user_agent", m.Request.UserAgent),
	)
	e.Dict("response", zerolog.Dict().
		Int("status", m.Response.Status).
		Int("size", m.Response.Size),
	)
	e.Int64("latency", m.Latency.Milliseconds())
	if m.TraceID != "" {
		e.Str("trace_id", m.TraceID)
	}
}

func (m *Entry) String() string {
	return fmt.Sprintf(`%s - %s "%s %s %s" %d %d %dms "%s"`,
		m.ClientIP,
		utils.DefaultIfZero(m.Owner, "-"),
		m.Request.Method,
		m.Request.Path,
		m.Request.Proto,
		m.Response.Status,
		m.Response.Size,
		m.Latency.Milliseconds(),
		utils.DefaultIfZero(m.Request.UserAgent, "-"),
	)
}
