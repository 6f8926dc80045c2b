package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/pkg/http/middlewares"
	"github.com/hookrelay/hookrelay/pkg/http/response"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/tracing"
	proxymiddlewares "github.com/hookrelay/hookrelay/proxy/middlewares"
	"github.com/hookrelay/hookrelay/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Triggerer fans an internal event out to the subscribed webhooks.
type Triggerer interface {
	Trigger(ctx context.Context, eventType string, data map[string]interface{}, ownerID string) ([]*entities.Delivery, error)
}

// TriggerHandler hands mapped inbound events to the trigger facade under
// the owner of the incoming config. The event counts as handled once any
// delivery exists, so a sender retry cannot duplicate it.
func TriggerHandler(t Triggerer, log *zap.SugaredLogger) EventHandler {
	return EventHandlerFunc(func(ctx context.Context, config *entities.IncomingWebhookConfig, event string, data map[string]interface{}) error {
		deliveries, err := t.Trigger(ctx, event, data, config.OwnerID)
		if err != nil && len(deliveries) > 0 {
			log.Warnf("[proxy] event %s from %s partially triggered (%d deliveries): %v", event, config.Endpoint, len(deliveries), err)
			return nil
		}
		return err
	})
}

type Gateway struct {
	cfg      *modules.ProxyConfig
	log      *zap.SugaredLogger
	s        *http.Server
	receiver *Receiver
}

func NewGateway(cfg *modules.ProxyConfig, receiver *Receiver, m *metrics.Metrics, log *zap.SugaredLogger) *Gateway {
	gw := &Gateway{
		cfg:      cfg,
		log:      log,
		receiver: receiver,
	}

	r := mux.NewRouter()
	r.Use(middlewares.NewRecovery(nil).Handle)
	r.Use(proxymiddlewares.NewMetricsMiddleware(m).Handle)
	r.HandleFunc("/webhooks/incoming/{endpoint}", gw.Handle).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusNotFound, &Response{Message: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusMethodNotAllowed, &Response{Message: "method not allowed"})
	})

	gw.s = &http.Server{
		Handler: r,
		Addr:    cfg.Listen,

		ReadTimeout:  time.Duration(cfg.TimeoutRead) * time.Second,
		WriteTimeout: time.Duration(cfg.TimeoutWrite) * time.Second,
	}

	return gw
}

// Use wraps the whole gateway handler, including the not found handlers.
func (gw *Gateway) Use(mw func(http.Handler) http.Handler) {
	gw.s.Handler = mw(gw.s.Handler)
}

func (gw *Gateway) Handler() http.Handler {
	return gw.s.Handler
}

func (gw *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.Start(tracing.Extract(r.Context(), r.Header), "proxy.receive",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	req := &Request{
		Endpoint:  mux.Vars(r)["endpoint"],
		ClientIP:  clientIP(r),
		Method:    r.Method,
		URL:       r.URL.String(),
		Headers:   utils.HeaderMap(r.Header),
		Signature: r.Header.Get(constants.HeaderSignature),
		MessageID: r.Header.Get(constants.HeaderID),
	}

	limit := gw.cfg.MaxRequestBodySize
	reader := io.Reader(r.Body)
	if limit > 0 {
		reader = io.LimitReader(r.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		response.JSON(w, http.StatusBadRequest, &Response{Message: "failed to read request body"})
		return
	}
	if limit > 0 && int64(len(body)) > limit {
		req.BodyTooLarge = true
		body = body[:limit]
	}
	req.Body = body

	result := gw.receiver.Receive(ctx, req)
	span.SetAttributes(
		attribute.String("proxy.endpoint", req.Endpoint),
		attribute.String("proxy.status", result.Status),
		attribute.Int("http.response.status_code", result.Code),
	)
	if result.Code >= 500 {
		tracing.Error(span, result.Error)
	}
	if result.Code == http.StatusTooManyRequests {
		response.TooManyRequests(w, result.RetryAfter, newResponse(result))
		return
	}
	response.JSON(w, result.Code, newResponse(result))
}

// clientIP is the peer address. Forwarding headers are not trusted.
func clientIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// Start starts an HTTP server
func (gw *Gateway) Start() {
	go func() {
		tls := gw.cfg.TLS
		var err error
		if tls.Enabled() {
			err = gw.s.ListenAndServeTLS(tls.Cert, tls.Key)
		} else {
			err = gw.s.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			gw.log.Errorf("[proxy] failed to start: %v", err)
		}
	}()

	gw.log.Infof("[proxy] listening on %s", gw.cfg.Listen)
}

// Stop stops the HTTP server
func (gw *Gateway) Stop(ctx context.Context) error {
	return gw.s.Shutdown(ctx)
}
