package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/eventbus"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/pkg/taskqueue/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fixture struct {
	db         *db.DB
	queue      taskqueue.TaskQueue
	dispatcher *Dispatcher
	clock      *clock.Mock
}

func newFixture(t *testing.T, queue taskqueue.TaskQueue) *fixture {
	log := zap.NewNop().Sugar()
	c := clock.NewMock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	bus := eventbus.NewLocalEventBus(log)
	store := db.NewMemoryDB(log, bus, c)
	if queue == nil {
		queue = taskqueue.NewMemoryQueue(taskqueue.MemoryTaskQueueOptions{Clock: c})
	}
	registry := NewRegistry(store, log)
	registry.Subscribe(bus)
	m, err := metrics.New(modules.MetricsConfig{})
	require.NoError(t, err)

	return &fixture{
		db:    store,
		queue: queue,
		clock: c,
		dispatcher: NewDispatcher(Options{
			DB:       store,
			Queue:    queue,
			Registry: registry,
			Metrics:  m,
			Clock:    c,
			Log:      log,
		}),
	}
}

func (f *fixture) config(t *testing.T, owner string, active bool, events ...string) *entities.WebhookConfig {
	config := &entities.WebhookConfig{
		Name:   "hook",
		URL:    "https://example.com/hook",
		Events: events,
		Secret: "secret",
		Active: active,
		Retry:  entities.RetryPolicy{MaxAttempts: 3, InitialDelay: 5, BackoffMultiplier: 2},
	}
	config.Init()
	config.OwnerID = owner
	require.NoError(t, f.db.WebhookConfigs.Insert(context.Background(), config))
	return config
}

func TestTriggerNoMatch(t *testing.T) {
	f := newFixture(t, nil)
	f.config(t, "o1", true, "payment.completed")

	deliveries, err := f.dispatcher.Trigger(context.Background(), "form.submitted", nil, "o1")
	assert.NoError(t, err)
	assert.Empty(t, deliveries)

	size, _ := f.queue.Size(context.Background())
	assert.Zero(t, size)
}

func TestTrigger(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.config(t, "o1", true, "form.submitted", "payment.completed")
	b := f.config(t, "o1", true, "form.submitted")
	f.config(t, "o1", false, "form.submitted")
	f.config(t, "o1", true, "payment.completed")
	f.config(t, "o2", true, "form.submitted")

	data := map[string]interface{}{"form_id": "f1"}
	deliveries, err := f.dispatcher.Trigger(ctx, "form.submitted", data, "o1")
	require.NoError(t, err)
	require.Len(t, deliveries, 2)

	configIDs := []string{deliveries[0].ConfigID, deliveries[1].ConfigID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, configIDs)
	assert.NotEqual(t, deliveries[0].Payload.ID, deliveries[1].Payload.ID)

	for _, delivery := range deliveries {
		stored, err := f.db.Deliveries.Get(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.DeliveryStatusPending, stored.Status)
		assert.Equal(t, 0, stored.AttemptCount)
		assert.Equal(t, "o1", stored.OwnerID)
		assert.Equal(t, "form.submitted", stored.Payload.Event)
		assert.Equal(t, "f1", stored.Payload.Data["form_id"])
		assert.Equal(t, constants.DefaultSource, stored.Payload.Source)
		assert.Equal(t, constants.PayloadVersion, stored.Payload.Version)
		assert.Equal(t, f.clock.Now().Format(time.RFC3339), stored.Payload.Timestamp)
	}

	tasks, err := f.queue.Get(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	task, err := tasks[0].DeliveryTask()
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempt)
}

func TestTriggerSeesConfigChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.config(t, "o1", true, "form.submitted")

	deliveries, err := f.dispatcher.Trigger(ctx, "form.submitted", nil, "o1")
	require.NoError(t, err)
	assert.Len(t, deliveries, 1)

	b := f.config(t, "o1", true, "form.submitted")
	deliveries, err = f.dispatcher.Trigger(ctx, "form.submitted", nil, "o1")
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)

	a.Active = false
	require.NoError(t, f.db.WebhookConfigs.Update(ctx, a))
	deliveries, err = f.dispatcher.Trigger(ctx, "form.submitted", nil, "o1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, b.ID, deliveries[0].ConfigID)

	_, err = f.db.WebhookConfigs.Delete(ctx, b.ID)
	require.NoError(t, err)
	deliveries, err = f.dispatcher.Trigger(ctx, "form.submitted", nil, "o1")
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestTriggerIsolatesEnqueueFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queue := mocks.NewMockTaskQueue(ctrl)
	gomock.InOrder(
		queue.EXPECT().Add(gomock.Any(), gomock.Any()).Return(errors.New("redis: connection refused")),
		queue.EXPECT().Add(gomock.Any(), gomock.Any()).Return(nil),
	)

	f := newFixture(t, queue)
	ctx := context.Background()
	f.config(t, "o1", true, "form.submitted")
	f.config(t, "o1", true, "form.submitted")

	deliveries, err := f.dispatcher.Trigger(ctx, "form.submitted", nil, "o1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enqueue delivery")
	assert.Contains(t, err.Error(), "connection refused")
	require.Len(t, deliveries, 2)

	// both stay pending, the requeue job recovers the one not enqueued
	for _, delivery := range deliveries {
		stored, err := f.db.Deliveries.Get(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.DeliveryStatusPending, stored.Status)
	}
}

func TestTestConfig(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	config := f.config(t, "o1", true, "payment.completed")

	delivery, err := f.dispatcher.TestConfig(ctx, config.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TestEventType, delivery.Event)
	assert.Equal(t, config.ID, delivery.Payload.Data["config_id"])

	_, err = f.dispatcher.TestConfig(ctx, "missing")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestRetry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.config(t, "o1", true, "form.submitted")

	deliveries, err := f.dispatcher.Trigger(ctx, "form.submitted", map[string]interface{}{"n": 1.0}, "o1")
	require.NoError(t, err)
	original := deliveries[0]

	for _, status := range []entities.DeliveryStatus{entities.DeliveryStatusPending, entities.DeliveryStatusRetrying} {
		ok, err := f.db.Deliveries.Transition(ctx, original.ID, 0, &dao.DeliveryTransition{Status: status})
		require.NoError(t, err)
		require.True(t, ok)
		_, err = f.dispatcher.Retry(ctx, original.ID)
		assert.ErrorIs(t, err, ErrDeliveryInFlight, status)
	}
	size, _ := f.queue.Size(ctx)
	assert.EqualValues(t, 1, size)

	ok, err := f.db.Deliveries.Transition(ctx, original.ID, 0, &dao.DeliveryTransition{Status: entities.DeliveryStatusFailed, AttemptCount: 3})
	require.NoError(t, err)
	require.True(t, ok)

	retried, err := f.dispatcher.Retry(ctx, original.ID)
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, retried.ID)
	assert.Equal(t, original.Payload, retried.Payload)
	assert.Equal(t, entities.DeliveryStatusPending, retried.Status)

	_, err = f.dispatcher.Retry(ctx, "missing")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}

func TestRegistration(t *testing.T) {
	a := &entities.WebhookConfig{ID: "a", Active: true, Events: entities.Strings{"x", "y", "x"}}
	b := &entities.WebhookConfig{ID: "b", Active: false, Events: entities.Strings{"x"}}
	r := NewRegistration([]*entities.WebhookConfig{a, b})
	assert.Equal(t, []*entities.WebhookConfig{a}, r.LookUp("x"))
	assert.Equal(t, []*entities.WebhookConfig{a}, r.LookUp("y"))
	assert.Empty(t, r.LookUp("z"))
}
