package deliverer

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Deliverer interface {
	Deliver(ctx context.Context, req *Request) *Response
}

// Request is HTTP request
type Request struct {
	URL     string
	Method  string
	Payload []byte
	Headers map[string]string
	Timeout time.Duration
}

// Response is HTTP response. Error is set when no HTTP response was
// received, including ACL denials and timeouts.
type Response struct {
	Request      *Request
	StatusCode   int
	Header       http.Header
	ResponseBody []byte
	Error        error
	Latency      time.Duration
}

func (r *Response) Is2xx() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

func (r *Response) String() string {
	return fmt.Sprintf("%s %s %d", r.Request.Method, r.Request.URL, r.StatusCode)
}
