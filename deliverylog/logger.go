package deliverylog

import (
	"context"
	"time"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/sanitize"
	"github.com/hookrelay/hookrelay/utils"
	"go.uber.org/zap"
)

// Outgoing describes one delivery attempt.
type Outgoing struct {
	Delivery        *entities.Delivery
	Attempt         int
	URL             string
	Headers         map[string]string
	Body            []byte
	ResponseStatus  int
	ResponseHeaders map[string]string
	ResponseBody    []byte
	Duration        time.Duration
	Error           error
}

// Incoming describes one request received by the inbound endpoint. Config
// is nil when the endpoint is unknown.
type Incoming struct {
	Config         *entities.IncomingWebhookConfig
	Event          string
	Method         string
	URL            string
	Headers        map[string]string
	Body           []byte
	ResponseStatus int
	ResponseBody   []byte
	Duration       time.Duration
	Error          error
}

// Logger appends delivery log entries. Entries are never updated.
type Logger struct {
	dao       dao.DeliveryLogDAO
	sanitizer *sanitize.Sanitizer
	clock     clock.Clock
	log       *zap.SugaredLogger
}

func NewLogger(logs dao.DeliveryLogDAO, c clock.Clock, log *zap.SugaredLogger) *Logger {
	return &Logger{
		dao:       logs,
		sanitizer: sanitize.New(),
		clock:     c,
		log:       log,
	}
}

func (l *Logger) LogOutgoingSuccess(ctx context.Context, o *Outgoing) error {
	return l.insert(ctx, l.outgoing(entities.LogKindSuccess, o))
}

func (l *Logger) LogOutgoingError(ctx context.Context, o *Outgoing) error {
	return l.insert(ctx, l.outgoing(entities.LogKindError, o))
}

func (l *Logger) LogIncomingSuccess(ctx context.Context, i *Incoming) error {
	return l.insert(ctx, l.incoming(entities.LogKindSuccess, i))
}

func (l *Logger) LogIncomingError(ctx context.Context, i *Incoming) error {
	return l.insert(ctx, l.incoming(entities.LogKindError, i))
}

// Stats aggregates the outgoing entries of a config over the last windowDays days.
func (l *Logger) Stats(ctx context.Context, configID string, windowDays int) (*dao.DeliveryStats, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	since := l.clock.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	return l.dao.Stats(ctx, configID, since)
}

// Cleanup deletes the entries older than retentionDays days.
func (l *Logger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	before := l.clock.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	return l.dao.DeleteBefore(ctx, before)
}

func (l *Logger) insert(ctx context.Context, entry *entities.DeliveryLog) error {
	if err := l.dao.Insert(ctx, entry); err != nil {
		l.log.Errorf("[deliverylog] failed to insert %s %s entry: %v", entry.Direction, entry.Kind, err)
		return err
	}
	return nil
}

func (l *Logger) outgoing(kind entities.LogKind, o *Outgoing) *entities.DeliveryLog {
	entry := &entities.DeliveryLog{
		ID:         utils.KSUID(),
		Direction:  entities.LogDirectionOutgoing,
		Kind:       kind,
		DurationMs: o.Duration.Milliseconds(),
		Request: &entities.LogRequest{
			Method:  "POST",
			URL:     o.URL,
			Headers: l.sanitizer.Headers(o.Headers),
			Body:    l.body(o.Body),
		},
		Attempt: utils.Pointer(o.Attempt),
	}
	if o.Delivery != nil {
		entry.ConfigID = o.Delivery.ConfigID
		entry.DeliveryID = utils.Pointer(o.Delivery.ID)
		entry.Event = o.Delivery.Event
		entry.OwnerID = o.Delivery.OwnerID
	}
	if o.ResponseStatus != 0 {
		entry.ResponseStatus = utils.Pointer(o.ResponseStatus)
		entry.Response = &entities.LogResponse{
			Status:  o.ResponseStatus,
			Headers: l.sanitizer.Headers(o.ResponseHeaders),
			Body:    l.body(o.ResponseBody),
		}
	}
	if o.Error != nil {
		entry.Error = utils.Pointer(o.Error.Error())
	}
	return entry
}

func (l *Logger) incoming(kind entities.LogKind, i *Incoming) *entities.DeliveryLog {
	entry := &entities.DeliveryLog{
		ID:         utils.KSUID(),
		Direction:  entities.LogDirectionIncoming,
		Kind:       kind,
		Event:      i.Event,
		DurationMs: i.Duration.Milliseconds(),
		Request: &entities.LogRequest{
			Method:  i.Method,
			URL:     i.URL,
			Headers: l.sanitizer.Headers(i.Headers),
			Body:    l.body(i.Body),
		},
	}
	if i.Config != nil {
		entry.ConfigID = i.Config.ID
		entry.OwnerID = i.Config.OwnerID
	}
	if i.ResponseStatus != 0 {
		entry.ResponseStatus = utils.Pointer(i.ResponseStatus)
		entry.Response = &entities.LogResponse{
			Status: i.ResponseStatus,
			Body:   l.body(i.ResponseBody),
		}
	}
	if i.Error != nil {
		entry.Error = utils.Pointer(i.Error.Error())
	}
	return entry
}

// body sanitizes then truncates, so a truncated document is never re-parsed.
func (l *Logger) body(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := utils.TextBody(l.sanitizer.JSON(b), constants.MaxResponseBodySize)
	return &s
}
