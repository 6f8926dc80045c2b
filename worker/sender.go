package worker

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/pkg/signature"
	"github.com/hookrelay/hookrelay/pkg/tracing"
	"github.com/hookrelay/hookrelay/utils"
	"github.com/hookrelay/hookrelay/worker/deliverer"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Outcome is the classified result of one attempt.
type Outcome struct {
	Delivered    bool
	StatusCode   int
	ResponseBody []byte
	Error        error
	DurationMs   int64
}

// Sender performs a single delivery attempt. It never retries.
type Sender struct {
	deliverer deliverer.Deliverer
	logger    *deliverylog.Logger
	log       *zap.SugaredLogger
}

func NewSender(d deliverer.Deliverer, logger *deliverylog.Logger, log *zap.SugaredLogger) *Sender {
	return &Sender{
		deliverer: d,
		logger:    logger,
		log:       log,
	}
}

// Send POSTs the payload of delivery to the config URL as attempt
// delivery.AttemptCount+1 and writes exactly one log entry.
func (s *Sender) Send(ctx context.Context, delivery *entities.Delivery, config *entities.WebhookConfig) *Outcome {
	ctx, span := tracing.Start(ctx, "worker.send", trace.WithAttributes(
		attribute.String("delivery.id", delivery.ID),
		attribute.String("delivery.event", delivery.Event),
		attribute.String("webhook.config_id", config.ID),
		attribute.Int("delivery.attempt", delivery.AttemptCount+1),
	))
	defer span.End()

	outcome := s.send(ctx, delivery, config)
	if outcome.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", outcome.StatusCode))
	}
	tracing.Error(span, outcome.Error)
	return outcome
}

func (s *Sender) send(ctx context.Context, delivery *entities.Delivery, config *entities.WebhookConfig) *Outcome {
	attempt := delivery.AttemptCount + 1
	entry := &deliverylog.Outgoing{
		Delivery: delivery,
		Attempt:  attempt,
		URL:      config.URL,
	}

	body, err := signature.Canonicalize(delivery.Payload)
	if err != nil {
		return s.fail(ctx, entry, errors.Wrap(err, "failed to encode payload"))
	}
	headers := Headers(delivery, config, signature.SignBytes(body, config.Secret.Reveal()), attempt)
	entry.Headers = headers
	entry.Body = body

	res := s.deliverer.Deliver(ctx, &deliverer.Request{
		URL:     config.URL,
		Method:  http.MethodPost,
		Payload: body,
		Headers: headers,
	})
	entry.Duration = res.Latency
	entry.ResponseStatus = res.StatusCode
	entry.ResponseHeaders = utils.HeaderMap(res.Header)
	entry.ResponseBody = res.ResponseBody

	if res.Error != nil {
		s.log.Debugf("[worker] delivery %s attempt %d failed: %v", delivery.ID, attempt, res.Error)
		return s.fail(ctx, entry, res.Error)
	}
	if !res.Is2xx() {
		return s.fail(ctx, entry, errors.Errorf("unexpected status code %d", res.StatusCode))
	}

	if err := s.logger.LogOutgoingSuccess(ctx, entry); err != nil {
		s.log.Warnf("[worker] delivery %s attempt %d: %v", delivery.ID, attempt, err)
	}
	return &Outcome{
		Delivered:    true,
		StatusCode:   res.StatusCode,
		ResponseBody: res.ResponseBody,
		DurationMs:   res.Latency.Milliseconds(),
	}
}

func (s *Sender) fail(ctx context.Context, entry *deliverylog.Outgoing, err error) *Outcome {
	entry.Error = err
	if logErr := s.logger.LogOutgoingError(ctx, entry); logErr != nil {
		s.log.Warnf("[worker] delivery %s attempt %d: %v", entry.Delivery.ID, entry.Attempt, logErr)
	}
	return &Outcome{
		StatusCode:   entry.ResponseStatus,
		ResponseBody: entry.ResponseBody,
		Error:        err,
		DurationMs:   entry.Duration.Milliseconds(),
	}
}

// Headers builds the request headers. Custom headers come first so the
// reserved ones always win, whatever the case of the custom names.
func Headers(delivery *entities.Delivery, config *entities.WebhookConfig, sig string, attempt int) map[string]string {
	headers := make(map[string]string, len(config.Headers)+7)
	set := func(name, value string) {
		headers[http.CanonicalHeaderKey(name)] = value
	}
	for name, value := range config.Headers {
		set(name, value)
	}
	for _, header := range constants.DefaultDelivererRequestHeaders {
		set(header.Name, header.Value)
	}
	set(constants.HeaderSignature, sig)
	set(constants.HeaderEvent, delivery.Payload.Event)
	set(constants.HeaderID, delivery.Payload.ID)
	set(constants.HeaderDelivery, delivery.ID)
	set(constants.HeaderAttempt, strconv.Itoa(attempt))
	return headers
}
