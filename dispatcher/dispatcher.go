package dispatcher

import (
	"context"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrConfigNotFound   = errors.New("webhook config not found")
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrDeliveryInFlight = errors.New("delivery is not finished")
)

type Options struct {
	// Source tags the payloads this node creates.
	Source   string
	DB       *db.DB
	Queue    taskqueue.TaskQueue
	Registry *Registry
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Log      *zap.SugaredLogger
}

// Dispatcher turns internal events into deliveries.
type Dispatcher struct {
	log      *zap.SugaredLogger
	queue    taskqueue.TaskQueue
	db       *db.DB
	registry *Registry
	metrics  *metrics.Metrics
	clock    clock.Clock
	source   string
}

func NewDispatcher(opts Options) *Dispatcher {
	source := opts.Source
	if source == "" {
		source = constants.DefaultSource
	}
	return &Dispatcher{
		log:      opts.Log,
		queue:    opts.Queue,
		db:       opts.DB,
		registry: opts.Registry,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		source:   source,
	}
}

// Trigger creates one pending delivery per active config of owner
// subscribed to eventType. Configs are handled independently: the
// deliveries that could be persisted are returned along with the
// accumulated errors of the others.
func (d *Dispatcher) Trigger(ctx context.Context, eventType string, data map[string]interface{}, ownerID string) ([]*entities.Delivery, error) {
	d.metrics.EventTriggeredCounter.With("event", eventType).Add(1)

	configs, err := d.registry.LookUp(ctx, ownerID, eventType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve webhook configs")
	}
	if len(configs) == 0 {
		d.log.Debugf("[dispatcher] no webhook subscribed to %s", eventType)
		return nil, nil
	}

	deliveries := make([]*entities.Delivery, 0, len(configs))
	var errs error
	for _, config := range configs {
		payload := entities.NewPayload(eventType, data, d.source, d.clock.Now())
		delivery, err := d.deliver(ctx, config, payload)
		if delivery != nil {
			deliveries = append(deliveries, delivery)
		}
		if err != nil {
			d.log.Warnf("[dispatcher] webhook %s: %v", config.ID, err)
			errs = multierr.Append(errs, errors.Wrapf(err, "webhook %s", config.ID))
		}
	}
	return deliveries, errs
}

// TestConfig sends a test event to one config, subscribed or not.
func (d *Dispatcher) TestConfig(ctx context.Context, configID string) (*entities.Delivery, error) {
	config, err := d.db.WebhookConfigs.Get(ctx, configID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, ErrConfigNotFound
	}
	payload := entities.NewPayload(constants.TestEventType, map[string]interface{}{
		"message":   "This is a test webhook",
		"config_id": config.ID,
	}, d.source, d.clock.Now())
	return d.deliver(ctx, config, payload)
}

// Retry creates a new delivery of the payload of a finished delivery.
// The original delivery is left untouched.
func (d *Dispatcher) Retry(ctx context.Context, deliveryID string) (*entities.Delivery, error) {
	delivery, err := d.db.Deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	if !delivery.Status.IsTerminal() {
		return nil, ErrDeliveryInFlight
	}
	config, err := d.db.WebhookConfigs.Get(ctx, delivery.ConfigID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, ErrConfigNotFound
	}
	return d.deliver(ctx, config, delivery.Payload)
}

// deliver persists a pending delivery and enqueues its first attempt. A
// delivery that was persisted but not enqueued is returned with the error;
// the requeue job picks it up later.
func (d *Dispatcher) deliver(ctx context.Context, config *entities.WebhookConfig, payload entities.Payload) (*entities.Delivery, error) {
	delivery := entities.NewDelivery(config, payload)
	if err := d.db.Deliveries.Insert(ctx, delivery); err != nil {
		return nil, errors.Wrap(err, "failed to persist delivery")
	}

	task := taskqueue.NewDeliveryTask(taskqueue.DeliveryTask{
		DeliveryID: delivery.ID,
		ConfigID:   delivery.ConfigID,
		Attempt:    delivery.AttemptCount + 1,
	}, d.clock.Now())
	if err := d.queue.Add(ctx, []*taskqueue.TaskMessage{task}); err != nil {
		return delivery, errors.Wrap(err, "failed to enqueue delivery")
	}
	return delivery, nil
}
