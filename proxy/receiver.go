package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/loglimiter"
	"github.com/hookrelay/hookrelay/pkg/ratelimiter"
	"github.com/hookrelay/hookrelay/pkg/schema"
	"github.com/hookrelay/hookrelay/pkg/signature"
	"github.com/hookrelay/hookrelay/utils"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrSourceNotAllowed  = errors.New("source not allowed")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrMissingSignature  = errors.New("missing signature")
	ErrBodyTooLarge      = errors.New("request body too large")
	ErrInvalidJSON       = errors.New("request body must be a JSON object")
	ErrMissingEventField = errors.New("missing event field")
)

// EventHandler processes an accepted inbound event under its internal name.
type EventHandler interface {
	HandleInboundEvent(ctx context.Context, config *entities.IncomingWebhookConfig, event string, data map[string]interface{}) error
}

type EventHandlerFunc func(ctx context.Context, config *entities.IncomingWebhookConfig, event string, data map[string]interface{}) error

func (fn EventHandlerFunc) HandleInboundEvent(ctx context.Context, config *entities.IncomingWebhookConfig, event string, data map[string]interface{}) error {
	return fn(ctx, config, event, data)
}

type ReceiverOptions struct {
	DB               *db.DB
	Limiter          ratelimiter.RateLimiter
	Logger           *deliverylog.Logger
	Handler          EventHandler
	Clock            clock.Clock
	DefaultRateLimit int
	Log              *zap.SugaredLogger
}

// Receiver authenticates, validates and maps inbound webhook calls.
type Receiver struct {
	db               *db.DB
	limiter          ratelimiter.RateLimiter
	logger           *deliverylog.Logger
	handler          EventHandler
	clock            clock.Clock
	defaultRateLimit int
	log              *zap.SugaredLogger
	loglimiter       *loglimiter.Limiter

	// compiled schemas keyed by config id and update time
	schemas *expirable.LRU[string, *schema.Validator]
}

func NewReceiver(opts ReceiverOptions) *Receiver {
	return &Receiver{
		db:               opts.DB,
		limiter:          opts.Limiter,
		logger:           opts.Logger,
		handler:          opts.Handler,
		clock:            opts.Clock,
		defaultRateLimit: utils.DefaultIfZero(opts.DefaultRateLimit, 60),
		log:              opts.Log,
		loglimiter:       loglimiter.NewLimiter(time.Minute, opts.Clock),
		schemas:          expirable.NewLRU[string, *schema.Validator](1000, nil, time.Minute*10),
	}
}

// Receive runs a request through the state machine. Every request ends
// with exactly one incoming log entry.
func (r *Receiver) Receive(ctx context.Context, req *Request) *Result {
	start := r.clock.Now()
	config, result := r.receive(ctx, req)

	entry := &deliverylog.Incoming{
		Config:         config,
		Event:          result.Event,
		Method:         req.Method,
		URL:            req.URL,
		Headers:        req.Headers,
		Body:           req.Body,
		ResponseStatus: result.Code,
		Duration:       r.clock.Now().Sub(start),
		Error:          result.Error,
	}
	if body, err := json.Marshal(newResponse(result)); err == nil {
		entry.ResponseBody = body
	}
	if result.State == StateRejected {
		_ = r.logger.LogIncomingError(ctx, entry)
	} else {
		_ = r.logger.LogIncomingSuccess(ctx, entry)
	}
	return result
}

func reject(code int, err error) *Result {
	return &Result{State: StateRejected, Code: code, Error: err}
}

func (r *Receiver) receive(ctx context.Context, req *Request) (*entities.IncomingWebhookConfig, *Result) {
	config, err := r.db.IncomingWebhookConfigs.GetByEndpoint(ctx, req.Endpoint)
	if err != nil {
		r.log.Errorf("[proxy] failed to load endpoint %s: %v", req.Endpoint, err)
		return nil, reject(http.StatusInternalServerError, err)
	}
	if config == nil || !config.Active {
		return nil, reject(http.StatusNotFound, ErrEndpointNotFound)
	}

	if !config.AllowSource(req.ClientIP) {
		return config, reject(http.StatusForbidden, errors.Wrapf(ErrSourceNotAllowed, "%s", req.ClientIP))
	}

	quota := utils.DefaultIfZero(config.RateLimit, r.defaultRateLimit)
	res, err := r.limiter.Allow(ctx, config.Endpoint+":"+req.ClientIP.String(), quota, time.Minute)
	if err != nil {
		if r.loglimiter.Allow("ratelimiter") {
			r.log.Warnf("[proxy] rate limiter unavailable, requests are let through: %v", err)
		}
	} else if !res.Allowed {
		result := reject(http.StatusTooManyRequests, ErrRateLimited)
		result.RetryAfter = res.RetryAfter
		return config, result
	}

	if req.BodyTooLarge {
		return config, reject(http.StatusBadRequest, ErrBodyTooLarge)
	}

	sig := req.Signature
	if sig == "" {
		return config, reject(http.StatusUnauthorized, ErrMissingSignature)
	}
	if !signature.VerifyBytes(req.Body, sig, config.Secret.Reveal()) {
		return config, reject(http.StatusUnauthorized, ErrInvalidSignature)
	}

	if !gjson.ValidBytes(req.Body) || !gjson.ParseBytes(req.Body).IsObject() {
		return config, reject(http.StatusBadRequest, ErrInvalidJSON)
	}
	if config.Schema != nil && *config.Schema != "" {
		validator, err := r.schema(config)
		if err != nil {
			r.log.Errorf("[proxy] invalid schema of endpoint %s: %v", config.Endpoint, err)
			return config, reject(http.StatusInternalServerError, err)
		}
		if err := validator.ValidateJSON(req.Body); err != nil {
			return config, reject(http.StatusBadRequest, errors.Wrap(err, "schema validation failed"))
		}
	}

	external := gjson.GetBytes(req.Body, "event")
	if !external.Exists() {
		external = gjson.GetBytes(req.Body, "type")
	}
	if external.Type != gjson.String || external.String() == "" {
		return config, reject(http.StatusBadRequest, ErrMissingEventField)
	}
	externalID := gjson.GetBytes(req.Body, "id").String()
	if externalID == "" {
		externalID = req.MessageID
	}

	result := &Result{State: StateValidated, Code: http.StatusOK, ExternalID: externalID}
	event, mapped := config.MapEvent(external.String())

	status := entities.InboundEventStatusDropped
	if mapped {
		status = entities.InboundEventStatusProcessed
		result.Event = event
	}

	var claim *entities.InboundEvent
	if externalID != "" {
		claim = &entities.InboundEvent{
			ID:         utils.KSUID(),
			ConfigID:   config.ID,
			ExternalID: externalID,
			Event:      event,
			Status:     status,
		}
		inserted, err := r.db.InboundEvents.InsertIgnoreConflict(ctx, claim)
		if err != nil {
			r.log.Errorf("[proxy] failed to record inbound event: %v", err)
			return config, reject(http.StatusInternalServerError, err)
		}
		if !inserted {
			result.Status = StatusDuplicate
			return config, result
		}
	}

	if !mapped {
		result.Status = StatusDropped
		r.log.Debugf("[proxy] event %q of endpoint %s is not mapped, dropped", external.String(), config.Endpoint)
		return config, result
	}
	result.State = StateMapped

	if err := r.handler.HandleInboundEvent(ctx, config, event, data(req.Body)); err != nil {
		r.log.Errorf("[proxy] failed to process event %s of endpoint %s: %v", event, config.Endpoint, err)
		if claim != nil {
			// let the sender's retry through
			if _, err := r.db.InboundEvents.Delete(ctx, claim.ID); err != nil {
				r.log.Warnf("[proxy] failed to release inbound event %s: %v", claim.ID, err)
			}
		}
		failed := reject(http.StatusInternalServerError, err)
		failed.Event = event
		return config, failed
	}

	result.State = StateProcessed
	result.Status = StatusProcessed
	return config, result
}

func (r *Receiver) schema(config *entities.IncomingWebhookConfig) (*schema.Validator, error) {
	key := config.ID + ":" + config.UpdatedAt.String()
	if v, ok := r.schemas.Get(key); ok {
		return v, nil
	}
	v, err := schema.New(*config.Schema)
	if err != nil {
		return nil, err
	}
	r.schemas.Add(key, v)
	return v, nil
}

// data is the "data" object of the body, or the whole body without it.
func data(body []byte) map[string]interface{} {
	var doc map[string]interface{}
	_ = json.Unmarshal(body, &doc)
	if inner, ok := doc["data"].(map[string]interface{}); ok {
		return inner
	}
	return doc
}

func newResponse(result *Result) *Response {
	if result.State == StateRejected {
		message := http.StatusText(result.Code)
		if result.Code < 500 && result.Error != nil {
			message = result.Error.Error()
		}
		return &Response{Message: message}
	}
	return &Response{Status: result.Status, Event: result.Event}
}
