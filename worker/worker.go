package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/pool"
	"github.com/hookrelay/hookrelay/pkg/safe"
	"github.com/hookrelay/hookrelay/pkg/schedule"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/pkg/types"
	"github.com/hookrelay/hookrelay/utils"
	"github.com/hookrelay/hookrelay/worker/retry"
	"go.uber.org/zap"
)

var (
	ErrServerStarted = errors.New("already started")
	ErrServerStopped = errors.New("already stopped")
)

const (
	requeueBatchSize = 1000
	submitTimeout    = 5 * time.Second
)

type Options struct {
	PollInterval     time.Duration
	PollSize         int64
	RequeueInterval  time.Duration
	LogRetentionDays int
}

type Worker struct {
	mux     sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.SugaredLogger

	opts      Options
	queue     taskqueue.TaskQueue
	sender    *Sender
	logger    *deliverylog.Logger
	pool      *pool.Pool
	scheduler schedule.Scheduler
	metrics   *metrics.Metrics
	clock     clock.Clock

	// deliveries being attempted by this node
	inflight sync.Map

	DB *db.DB
}

type Dependencies struct {
	DB      *db.DB
	Queue   taskqueue.TaskQueue
	Sender  *Sender
	Logger  *deliverylog.Logger
	Pool    *pool.Pool
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Log     *zap.SugaredLogger
}

func NewWorker(opts Options, deps Dependencies) *Worker {
	opts.PollInterval = utils.DefaultIfZero(opts.PollInterval, time.Second)
	opts.PollSize = utils.DefaultIfZero(opts.PollSize, int64(100))
	opts.RequeueInterval = utils.DefaultIfZero(opts.RequeueInterval, time.Minute)

	return &Worker{
		log:       deps.Log,
		opts:      opts,
		queue:     deps.Queue,
		sender:    deps.Sender,
		logger:    deps.Logger,
		pool:      deps.Pool,
		scheduler: schedule.NewScheduler(deps.Log),
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		DB:        deps.DB,
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("[worker] receive stop signal")
			return
		case <-ticker.C:
			w.Poll(w.ctx)
		}
	}
}

// Poll claims the due tasks and hands them to the pool.
func (w *Worker) Poll(ctx context.Context) {
	for {
		tasks, err := w.queue.Get(ctx, &taskqueue.GetOptions{Count: w.opts.PollSize})
		if err != nil {
			w.log.Errorf("[worker] failed to get tasks from queue: %v", err)
			return
		}
		if len(tasks) == 0 {
			break
		}
		for _, task := range tasks {
			err = w.pool.SubmitFn(submitTimeout, func() {
				// attempts already claimed run to completion on shutdown
				if err := w.HandleTask(context.WithoutCancel(ctx), task); err != nil {
					// the task stays invisible and is redelivered after the visibility timeout
					w.log.Errorf("[worker] failed to handle task %s: %v", task.ID, err)
				}
			})
			if err != nil {
				w.log.Warnf("[worker] failed to submit task %s: %v", task.ID, err)
			}
		}
		if int64(len(tasks)) < w.opts.PollSize {
			break
		}
	}

	if size, err := w.queue.Size(ctx); err == nil {
		w.metrics.DeliveryPendingGauge.Set(float64(size))
	}
}

// Start starts worker
func (w *Worker) Start() error {
	w.mux.Lock()
	defer w.mux.Unlock()

	if w.started {
		return ErrServerStarted
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	tasks := []*schedule.Task{
		{
			Name:         "worker.requeue",
			InitialDelay: w.opts.RequeueInterval,
			Interval:     w.opts.RequeueInterval,
			Do: func() {
				if _, err := w.Requeue(w.ctx); err != nil {
					w.log.Errorf("[worker] failed to requeue deliveries: %v", err)
				}
			},
		},
	}
	if w.opts.LogRetentionDays > 0 {
		tasks = append(tasks, &schedule.Task{
			Name: "worker.log_retention",
			Spec: "@hourly",
			Do: func() {
				n, err := w.logger.Cleanup(w.ctx, w.opts.LogRetentionDays)
				if err != nil {
					w.log.Errorf("[worker] failed to delete expired delivery logs: %v", err)
					return
				}
				if n > 0 {
					w.log.Infof("[worker] deleted %d expired delivery logs", n)
				}
			},
		})
	}
	for _, task := range tasks {
		if err := w.scheduler.AddTask(task); err != nil {
			return err
		}
	}
	w.scheduler.Start()

	safe.Go(w.run)
	w.started = true
	w.log.Info("[worker] started")

	return nil
}

// Stop stops polling and waits for the running attempts to finish.
func (w *Worker) Stop() error {
	w.mux.Lock()
	defer w.mux.Unlock()

	if !w.started {
		return ErrServerStopped
	}

	w.cancel()
	w.scheduler.Stop()
	w.pool.Shutdown()

	w.started = false
	w.log.Info("[worker] stopped")

	return nil
}

// Enqueue registers the next attempt of delivery as due now.
func (w *Worker) Enqueue(ctx context.Context, delivery *entities.Delivery) error {
	return w.schedule(ctx, delivery, w.clock.Now())
}

// ScheduleRetry registers the next attempt of delivery after delay. It
// never blocks for the delay.
func (w *Worker) ScheduleRetry(ctx context.Context, delivery *entities.Delivery, delay time.Duration) error {
	return w.schedule(ctx, delivery, w.clock.Now().Add(delay))
}

func (w *Worker) schedule(ctx context.Context, delivery *entities.Delivery, at time.Time) error {
	task := taskqueue.NewDeliveryTask(taskqueue.DeliveryTask{
		DeliveryID: delivery.ID,
		ConfigID:   delivery.ConfigID,
		Attempt:    delivery.AttemptCount + 1,
	}, at)
	return w.queue.Add(ctx, []*taskqueue.TaskMessage{task})
}

// Requeue re-registers pending and retrying deliveries that are overdue by
// more than the visibility timeout, which means their task was lost.
func (w *Worker) Requeue(ctx context.Context) (int, error) {
	before := w.clock.Now().Add(-constants.TaskQueueVisibilityTimeout)
	deliveries, err := w.DB.Deliveries.ListRecoverable(ctx, before, requeueBatchSize)
	if err != nil {
		return 0, err
	}
	if len(deliveries) == 0 {
		return 0, nil
	}
	tasks := make([]*taskqueue.TaskMessage, 0, len(deliveries))
	now := w.clock.Now()
	for _, delivery := range deliveries {
		tasks = append(tasks, taskqueue.NewDeliveryTask(taskqueue.DeliveryTask{
			DeliveryID: delivery.ID,
			ConfigID:   delivery.ConfigID,
			Attempt:    delivery.AttemptCount + 1,
		}, now))
	}
	if err := w.queue.Add(ctx, tasks); err != nil {
		return 0, err
	}
	w.log.Infof("[worker] requeued %d deliveries", len(tasks))
	return len(tasks), nil
}

// HandleTask performs the attempt a task references. A returned error
// leaves the task in the queue.
func (w *Worker) HandleTask(ctx context.Context, task *taskqueue.TaskMessage) error {
	data, err := task.DeliveryTask()
	if err != nil {
		w.log.Errorf("[worker] failed to unmarshal task %s: %v", task.ID, err)
		return w.queue.Delete(ctx, task)
	}

	if _, loaded := w.inflight.LoadOrStore(data.DeliveryID, struct{}{}); loaded {
		w.log.Debugf("[worker] delivery %s is in flight, task %s postponed", data.DeliveryID, task.ID)
		return nil
	}
	defer w.inflight.Delete(data.DeliveryID)

	delivery, err := w.DB.Deliveries.Get(ctx, data.DeliveryID)
	if err != nil {
		return err
	}
	if delivery == nil || delivery.Status.IsTerminal() || data.Attempt != delivery.AttemptCount+1 {
		w.log.Debugf("[worker] discard stale task %s", task.ID)
		return w.queue.Delete(ctx, task)
	}

	config, err := w.DB.WebhookConfigs.Get(ctx, delivery.ConfigID)
	if err != nil {
		return err
	}
	if config == nil || !config.Active {
		if err := w.disable(ctx, delivery); err != nil {
			return err
		}
		return w.queue.Delete(ctx, task)
	}

	outcome := w.sender.Send(ctx, delivery, config)
	now := w.clock.Now()

	transition := &dao.DeliveryTransition{
		AttemptCount:  data.Attempt,
		LastAttemptAt: utils.Pointer(types.NewTime(now)),
		Status:        entities.DeliveryStatusDelivered,
	}
	if outcome.StatusCode != 0 {
		transition.ResponseStatus = utils.Pointer(outcome.StatusCode)
		transition.ResponseBody = utils.Pointer(utils.TextBody(outcome.ResponseBody, constants.MaxResponseBodySize))
	}

	var delay time.Duration
	if !outcome.Delivered {
		transition.Error = utils.Pointer(outcome.Error.Error())
		delay = config.Retry.Strategy().NextDelay(data.Attempt)
		switch {
		case delay == retry.Stop:
			transition.Status = entities.DeliveryStatusFailed
		case !w.stillActive(ctx, config.ID):
			transition.Status = entities.DeliveryStatusFailed
			transition.Error = utils.Pointer(constants.ErrorWebhookDisabled)
		default:
			transition.Status = entities.DeliveryStatusRetrying
			transition.NextRetryAt = utils.Pointer(types.NewTime(now.Add(delay)))
		}
	}

	ok, err := w.DB.Deliveries.Transition(ctx, delivery.ID, delivery.AttemptCount, transition)
	if err != nil {
		return err
	}
	w.observe(delivery, transition.Status, outcome)
	if !ok {
		w.log.Warnf("[worker] delivery %s changed during attempt %d, result discarded", delivery.ID, data.Attempt)
		return w.queue.Delete(ctx, task)
	}

	if transition.Status == entities.DeliveryStatusRetrying {
		delivery.AttemptCount = data.Attempt
		if err := w.ScheduleRetry(ctx, delivery, delay); err != nil {
			// the requeue job picks the delivery up once it is overdue
			w.log.Errorf("[worker] failed to schedule retry of delivery %s: %v", delivery.ID, err)
		}
	}

	return w.queue.Delete(ctx, task)
}

// stillActive reloads the config before a retry is scheduled.
func (w *Worker) stillActive(ctx context.Context, configID string) bool {
	config, err := w.DB.WebhookConfigs.Get(ctx, configID)
	if err != nil {
		w.log.Warnf("[worker] failed to reload config %s: %v", configID, err)
		return true
	}
	return config != nil && config.Active
}

func (w *Worker) disable(ctx context.Context, delivery *entities.Delivery) error {
	_, err := w.DB.Deliveries.Transition(ctx, delivery.ID, delivery.AttemptCount, &dao.DeliveryTransition{
		Status:         entities.DeliveryStatusFailed,
		AttemptCount:   delivery.AttemptCount,
		LastAttemptAt:  delivery.LastAttemptAt,
		ResponseStatus: delivery.ResponseStatus,
		ResponseBody:   delivery.ResponseBody,
		Error:          utils.Pointer(constants.ErrorWebhookDisabled),
	})
	if err == nil {
		w.log.Infof("[worker] delivery %s failed: %s", delivery.ID, constants.ErrorWebhookDisabled)
	}
	return err
}

func (w *Worker) observe(delivery *entities.Delivery, status entities.DeliveryStatus, outcome *Outcome) {
	w.metrics.DeliveryAttemptCounter.With("event", delivery.Event, "outcome", string(status)).Add(1)
	w.metrics.DeliveryDurationHistogram.With("event", delivery.Event, "outcome", string(status)).Observe(float64(outcome.DurationMs))
}
