package deliverer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"

	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/constants"
	"go.uber.org/zap"
)

var ErrDenied = errors.New("destination denied by acl")

type Options struct {
	Timeout             time.Duration
	ACL                 *ACL
	Proxy               string
	MaxResponseBodySize int64
}

// HTTPDeliverer delivers via HTTP
type HTTPDeliverer struct {
	opts   Options
	client *http.Client
	proxy  bool
	log    *zap.SugaredLogger
}

func NewHTTPDeliverer(cfg *modules.WorkerDeliverer, log *zap.SugaredLogger) (*HTTPDeliverer, error) {
	var acl *ACL
	if len(cfg.ACL.Deny) > 0 {
		acl = NewACL(AclOptions{Rules: cfg.ACL.Deny})
	}
	return New(Options{
		Timeout:             time.Duration(cfg.Timeout) * time.Millisecond,
		ACL:                 acl,
		Proxy:               cfg.Proxy,
		MaxResponseBodySize: constants.MaxResponseBodySize,
	}, log)
}

func New(opts Options, log *zap.SugaredLogger) (*HTTPDeliverer, error) {
	if opts.MaxResponseBodySize <= 0 {
		opts.MaxResponseBodySize = constants.MaxResponseBodySize
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	d := &HTTPDeliverer{opts: opts, log: log}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		d.proxy = true
	} else if opts.ACL != nil {
		// the dialed address is the resolved one, so rebinding cannot bypass the check
		dialer.Control = func(network, address string, c syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				return err
			}
			if !opts.ACL.Allow("", addr) {
				return ErrDenied
			}
			return nil
		}
	}
	transport.DialContext = dialer.DialContext

	d.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return d, nil
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, req *Request) (res *Response) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = d.opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res = &Response{
		Request: req,
	}
	start := time.Now()
	defer func() {
		res.Latency = time.Since(start)
	}()

	request, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		res.Error = err
		return
	}

	if err := d.checkHost(ctx, request.URL.Hostname()); err != nil {
		res.Error = err
		return
	}

	for _, header := range constants.DefaultDelivererRequestHeaders {
		request.Header.Set(header.Name, header.Value)
	}
	for name, value := range req.Headers {
		request.Header.Set(name, value)
	}

	response, err := d.client.Do(request)
	if err != nil {
		if errors.Is(err, ErrDenied) {
			err = ErrDenied
		}
		res.Error = err
		return
	}
	defer response.Body.Close()

	res.StatusCode = response.StatusCode
	res.Header = response.Header

	body, err := io.ReadAll(io.LimitReader(response.Body, d.opts.MaxResponseBodySize))
	if err != nil {
		res.Error = err
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, d.opts.MaxResponseBodySize))
	res.ResponseBody = body
	return
}

// checkHost applies the hostname rules. Behind a proxy the dialed address
// is the proxy's, so the destination is resolved and checked here instead.
func (d *HTTPDeliverer) checkHost(ctx context.Context, host string) error {
	acl := d.opts.ACL
	if acl == nil {
		return nil
	}
	if !acl.AllowHost(host) {
		return ErrDenied
	}
	if d.proxy {
		return acl.CheckResolved(ctx, net.DefaultResolver, host)
	}
	return nil
}
