package memory

import (
	"context"
	"time"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/pkg/clock"
)

type WebhookConfigDAO struct {
	*Table[entities.WebhookConfig]
}

// Scoped returns an owner scoped view sharing the same rows.
func (d *WebhookConfigDAO) Scoped() *WebhookConfigDAO {
	return &WebhookConfigDAO{Table: d.Table.Scoped()}
}

func NewWebhookConfigDAO(c clock.Clock, handler dao.PropagateHandler, fns ...dao.OptionFunc) *WebhookConfigDAO {
	return &WebhookConfigDAO{
		Table: NewTable[entities.WebhookConfig](tableOptions(dao.Options{
			Table:          "webhook_configs",
			EntityName:     "webhook_config",
			CachePropagate: true,
			CacheName:      constants.WebhookConfigCacheName,
		}, c, handler, nil, fns)),
	}
}

func (d *WebhookConfigDAO) ListActiveByEvent(ctx context.Context, ownerID string, eventType string) ([]*entities.WebhookConfig, error) {
	return d.Filter(ctx, func(config *entities.WebhookConfig) bool {
		return config.OwnerID == ownerID && config.Active && config.Subscribes(eventType)
	}), nil
}

type IncomingWebhookConfigDAO struct {
	*Table[entities.IncomingWebhookConfig]
}

// Scoped returns an owner scoped view sharing the same rows.
func (d *IncomingWebhookConfigDAO) Scoped() *IncomingWebhookConfigDAO {
	return &IncomingWebhookConfigDAO{Table: d.Table.Scoped()}
}

func NewIncomingWebhookConfigDAO(c clock.Clock, handler dao.PropagateHandler, fns ...dao.OptionFunc) *IncomingWebhookConfigDAO {
	return &IncomingWebhookConfigDAO{
		Table: NewTable[entities.IncomingWebhookConfig](tableOptions(dao.Options{
			Table:          "incoming_webhook_configs",
			EntityName:     "incoming_webhook_config",
			CachePropagate: true,
			CacheName:      constants.IncomingWebhookConfigCacheName,
		}, c, handler, [][]string{{"endpoint"}}, fns)),
	}
}

func (d *IncomingWebhookConfigDAO) GetByEndpoint(ctx context.Context, endpoint string) (*entities.IncomingWebhookConfig, error) {
	return d.Find(ctx, "endpoint", endpoint)
}

type DeliveryDAO struct {
	*Table[entities.Delivery]
}

// Scoped returns an owner scoped view sharing the same rows.
func (d *DeliveryDAO) Scoped() *DeliveryDAO {
	return &DeliveryDAO{Table: d.Table.Scoped()}
}

func NewDeliveryDAO(c clock.Clock, fns ...dao.OptionFunc) *DeliveryDAO {
	return &DeliveryDAO{
		Table: NewTable[entities.Delivery](tableOptions(dao.Options{
			Table:      "deliveries",
			EntityName: "delivery",
		}, c, nil, nil, fns)),
	}
}

func (d *DeliveryDAO) Transition(ctx context.Context, id string, expectedAttempts int, t *dao.DeliveryTransition) (bool, error) {
	return d.Modify(id, func(delivery *entities.Delivery) bool {
		if delivery.AttemptCount != expectedAttempts || delivery.Status.IsTerminal() {
			return false
		}
		delivery.Status = t.Status
		delivery.AttemptCount = t.AttemptCount
		delivery.LastAttemptAt = clone(t.LastAttemptAt)
		delivery.NextRetryAt = clone(t.NextRetryAt)
		delivery.ResponseStatus = clone(t.ResponseStatus)
		delivery.ResponseBody = clone(t.ResponseBody)
		delivery.Error = clone(t.Error)
		return true
	}), nil
}

func (d *DeliveryDAO) ListRecoverable(ctx context.Context, before time.Time, limit int) ([]*entities.Delivery, error) {
	list := d.Filter(context.Background(), func(delivery *entities.Delivery) bool {
		if delivery.Status != entities.DeliveryStatusPending && delivery.Status != entities.DeliveryStatusRetrying {
			return false
		}
		due := delivery.UpdatedAt
		if delivery.NextRetryAt != nil {
			due = *delivery.NextRetryAt
		}
		return due.Before(before)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type DeliveryLogDAO struct {
	*Table[entities.DeliveryLog]
}

// Scoped returns an owner scoped view sharing the same rows.
func (d *DeliveryLogDAO) Scoped() *DeliveryLogDAO {
	return &DeliveryLogDAO{Table: d.Table.Scoped()}
}

func NewDeliveryLogDAO(c clock.Clock, fns ...dao.OptionFunc) *DeliveryLogDAO {
	return &DeliveryLogDAO{
		Table: NewTable[entities.DeliveryLog](tableOptions(dao.Options{
			Table:      "delivery_logs",
			EntityName: "delivery_log",
		}, c, nil, nil, fns)),
	}
}

func (d *DeliveryLogDAO) Stats(ctx context.Context, configID string, since time.Time) (*dao.DeliveryStats, error) {
	var total, successes, duration int64
	d.Filter(context.Background(), func(entry *entities.DeliveryLog) bool {
		if entry.ConfigID != configID || entry.Direction != entities.LogDirectionOutgoing || entry.CreatedAt.Before(since) {
			return false
		}
		total++
		duration += entry.DurationMs
		if entry.Kind == entities.LogKindSuccess {
			successes++
		}
		return false
	})
	var avg float64
	if total > 0 {
		avg = float64(duration) / float64(total)
	}
	return dao.ComputeStats(total, successes, avg), nil
}

func (d *DeliveryLogDAO) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return d.DeleteWhere(func(entry *entities.DeliveryLog) bool {
		return entry.CreatedAt.Before(before)
	}), nil
}

type InboundEventDAO struct {
	*Table[entities.InboundEvent]
}

func NewInboundEventDAO(c clock.Clock, fns ...dao.OptionFunc) *InboundEventDAO {
	return &InboundEventDAO{
		Table: NewTable[entities.InboundEvent](tableOptions(dao.Options{
			Table:      "inbound_events",
			EntityName: "inbound_event",
		}, c, nil, [][]string{{"config_id", "external_id"}}, fns)),
	}
}

func (d *InboundEventDAO) InsertIgnoreConflict(ctx context.Context, event *entities.InboundEvent) (bool, error) {
	err := d.Insert(ctx, event)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func tableOptions(opts dao.Options, c clock.Clock, handler dao.PropagateHandler, unique [][]string, fns []dao.OptionFunc) TableOptions {
	for _, fn := range fns {
		fn(&opts)
	}
	return TableOptions{
		Options: opts,
		Clock:   c,
		Unique:  unique,
		Handler: handler,
	}
}

