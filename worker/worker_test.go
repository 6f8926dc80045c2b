package worker_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/eventbus"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/pool"
	"github.com/hookrelay/hookrelay/pkg/signature"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/worker"
	"github.com/hookrelay/hookrelay/worker/deliverer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

type destination struct {
	server *httptest.Server
	mux    sync.Mutex
	status int
	hits   atomic.Int64
	last   *http.Request
	body   []byte
	reply  []byte
	hold   chan struct{}
}

func newDestination(status int) *destination {
	d := &destination{status: status, reply: []byte(`{"received":true}`)}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.hits.Add(1)
		if d.hold != nil {
			<-d.hold
		}
		d.mux.Lock()
		defer d.mux.Unlock()
		d.last = r
		d.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(d.status)
		_, _ = w.Write(d.reply)
	}))
	return d
}

func (d *destination) setStatus(status int) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.status = status
}

var _ = Describe("Worker", func() {
	var (
		ctx   context.Context
		c     *clock.Mock
		store *db.DB
		queue *taskqueue.MemoryTaskQueue
		w     *worker.Worker
		dest  *destination
	)

	newConfig := func(url string) *entities.WebhookConfig {
		config := &entities.WebhookConfig{
			Name:    "forms",
			URL:     url,
			Events:  entities.Strings{"form.submitted"},
			Secret:  entities.Secret("s3cret"),
			Active:  true,
			Retry:   entities.RetryPolicy{MaxAttempts: 3, InitialDelay: 5, BackoffMultiplier: 2},
			Headers: entities.Headers{"X-Tenant": "acme"},
		}
		config.Init()
		config.OwnerID = "owner-1"
		Expect(store.WebhookConfigs.Insert(ctx, config)).To(Succeed())
		return config
	}

	newDelivery := func(config *entities.WebhookConfig) *entities.Delivery {
		payload := entities.NewPayload("form.submitted", map[string]interface{}{"form": "contact"}, "", c.Now())
		delivery := entities.NewDelivery(config, payload)
		Expect(store.Deliveries.Insert(ctx, delivery)).To(Succeed())
		Expect(w.Enqueue(ctx, delivery)).To(Succeed())
		return delivery
	}

	// process runs every due task synchronously
	process := func() int {
		tasks, err := queue.Get(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		for _, task := range tasks {
			Expect(w.HandleTask(ctx, task)).To(Succeed())
		}
		return len(tasks)
	}

	reload := func(id string) *entities.Delivery {
		delivery, err := store.Deliveries.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(delivery).NotTo(BeNil())
		return delivery
	}

	logCount := func(id string) int64 {
		n, err := store.DeliveryLogs.Count(ctx, map[string]interface{}{"delivery_id": id})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	BeforeEach(func() {
		ctx = context.Background()
		log := zap.NewNop().Sugar()
		c = clock.NewMock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
		store = db.NewMemoryDB(log, eventbus.NewLocalEventBus(log), c)
		queue = taskqueue.NewMemoryQueue(taskqueue.MemoryTaskQueueOptions{Clock: c})
		dest = newDestination(200)

		d, err := deliverer.New(deliverer.Options{Timeout: 2 * time.Second}, log)
		Expect(err).NotTo(HaveOccurred())
		m, err := metrics.New(modules.MetricsConfig{})
		Expect(err).NotTo(HaveOccurred())
		logger := deliverylog.NewLogger(store.DeliveryLogs, c, log)

		w = worker.NewWorker(worker.Options{PollInterval: 10 * time.Millisecond}, worker.Dependencies{
			DB:      store,
			Queue:   queue,
			Sender:  worker.NewSender(d, logger, log),
			Logger:  logger,
			Pool:    pool.NewPool(100, 4),
			Metrics: m,
			Clock:   c,
			Log:     log,
		})
	})

	AfterEach(func() {
		dest.server.Close()
	})

	It("delivers a signed payload on 2xx", func() {
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)

		Expect(process()).To(Equal(1))

		got := reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusDelivered))
		Expect(got.AttemptCount).To(Equal(1))
		Expect(*got.ResponseStatus).To(Equal(200))
		Expect(*got.ResponseBody).To(Equal(`{"received":true}`))
		Expect(got.NextRetryAt).To(BeNil())
		Expect(logCount(delivery.ID)).To(BeEquivalentTo(1))

		Expect(dest.last.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(dest.last.Header.Get("User-Agent")).To(Equal(constants.UserAgent))
		Expect(dest.last.Header.Get(constants.HeaderEvent)).To(Equal("form.submitted"))
		Expect(dest.last.Header.Get(constants.HeaderID)).To(Equal(delivery.Payload.ID))
		Expect(dest.last.Header.Get(constants.HeaderDelivery)).To(Equal(delivery.ID))
		Expect(dest.last.Header.Get(constants.HeaderAttempt)).To(Equal("1"))
		Expect(dest.last.Header.Get("X-Tenant")).To(Equal("acme"))
		Expect(signature.VerifyBytes(dest.body, dest.last.Header.Get(constants.HeaderSignature), "s3cret")).To(BeTrue())

		var payload entities.Payload
		Expect(json.Unmarshal(dest.body, &payload)).To(Succeed())
		Expect(payload.ID).To(Equal(delivery.Payload.ID))
		Expect(payload.Version).To(Equal("1.0"))
		Expect(payload.Source).To(Equal("hookrelay"))

		size, _ := queue.Size(ctx)
		Expect(size).To(BeZero())
	})

	It("retries with backoff and fails after max attempts", func() {
		dest.setStatus(500)
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)
		start := c.Now()

		Expect(process()).To(Equal(1))
		got := reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusRetrying))
		Expect(got.AttemptCount).To(Equal(1))
		Expect(got.NextRetryAt.Time).To(BeTemporally("==", start.Add(5*time.Second)))
		Expect(*got.Error).To(ContainSubstring("500"))

		// nothing is due before the delay
		c.Advance(4 * time.Second)
		Expect(process()).To(Equal(0))

		c.Set(start.Add(5 * time.Second))
		Expect(process()).To(Equal(1))
		got = reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusRetrying))
		Expect(got.AttemptCount).To(Equal(2))
		Expect(got.NextRetryAt.Time).To(BeTemporally("==", start.Add(15*time.Second)))

		c.Set(start.Add(15 * time.Second))
		Expect(process()).To(Equal(1))
		got = reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusFailed))
		Expect(got.AttemptCount).To(Equal(3))
		Expect(*got.ResponseStatus).To(Equal(500))

		Expect(dest.hits.Load()).To(BeEquivalentTo(3))
		Expect(logCount(delivery.ID)).To(BeEquivalentTo(3))

		// terminal, no automatic action
		c.Advance(time.Hour)
		Expect(process()).To(Equal(0))
		size, _ := queue.Size(ctx)
		Expect(size).To(BeZero())
	})

	It("delivers once a retry succeeds", func() {
		dest.setStatus(503)
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)

		Expect(process()).To(Equal(1))
		dest.setStatus(200)
		c.Advance(5 * time.Second)
		Expect(process()).To(Equal(1))

		got := reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusDelivered))
		Expect(got.AttemptCount).To(Equal(2))
		Expect(got.Error).To(BeNil())
		Expect(dest.last.Header.Get(constants.HeaderAttempt)).To(Equal("2"))
	})

	It("fails a retrying delivery once its config is disabled", func() {
		dest.setStatus(500)
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)
		Expect(process()).To(Equal(1))

		config.Active = false
		Expect(store.WebhookConfigs.Update(ctx, config)).To(Succeed())

		c.Advance(5 * time.Second)
		Expect(process()).To(Equal(1))

		got := reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusFailed))
		Expect(got.AttemptCount).To(Equal(1))
		Expect(*got.Error).To(Equal(constants.ErrorWebhookDisabled))
		Expect(dest.hits.Load()).To(BeEquivalentTo(1))
		Expect(logCount(delivery.ID)).To(BeEquivalentTo(1))
	})

	It("fails a delivery whose config was deleted", func() {
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)
		_, err := store.WebhookConfigs.Delete(ctx, config.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(process()).To(Equal(1))
		got := reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusFailed))
		Expect(*got.Error).To(Equal(constants.ErrorWebhookDisabled))
		Expect(dest.hits.Load()).To(BeZero())
	})

	It("discards stale tasks", func() {
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)
		Expect(process()).To(Equal(1))

		// a duplicate of the first attempt after it completed
		Expect(queue.Add(ctx, []*taskqueue.TaskMessage{taskqueue.NewDeliveryTask(taskqueue.DeliveryTask{
			DeliveryID: delivery.ID,
			ConfigID:   config.ID,
			Attempt:    1,
		}, c.Now())})).To(Succeed())
		Expect(process()).To(Equal(1))

		Expect(dest.hits.Load()).To(BeEquivalentTo(1))
		Expect(logCount(delivery.ID)).To(BeEquivalentTo(1))
		size, _ := queue.Size(ctx)
		Expect(size).To(BeZero())
	})

	It("stores a response body postgres accepts", func() {
		dest.setStatus(500)
		dest.reply = []byte("x\x00" + strings.Repeat("é", 40000))
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)

		Expect(process()).To(Equal(1))

		got := reload(delivery.ID)
		Expect(got.Status).To(Equal(entities.DeliveryStatusRetrying))
		Expect(got.AttemptCount).To(Equal(1))
		Expect(got.ResponseBody).NotTo(BeNil())
		body := *got.ResponseBody
		Expect(len(body)).To(BeNumerically("<=", constants.MaxResponseBodySize))
		Expect(utf8.ValidString(body)).To(BeTrue())
		Expect(body).NotTo(ContainSubstring("\x00"))
		Expect(body).To(HavePrefix("xé"))

		logs, err := store.DeliveryLogs.List(ctx, &query.DeliveryLogQuery{DeliveryID: &delivery.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(logs).To(HaveLen(1))
		Expect(logs[0].Response.Body).NotTo(BeNil())
		Expect(utf8.ValidString(*logs[0].Response.Body)).To(BeTrue())
		Expect(*logs[0].Response.Body).NotTo(ContainSubstring("\x00"))
	})

	It("attempts a delivery once while its task is in flight", func() {
		dest.hold = make(chan struct{})
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)

		tasks, err := queue.Get(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))

		// a redelivered copy of the same attempt
		duplicate := taskqueue.NewDeliveryTask(taskqueue.DeliveryTask{
			DeliveryID: delivery.ID,
			ConfigID:   config.ID,
			Attempt:    1,
		}, c.Now())
		Expect(queue.Add(ctx, []*taskqueue.TaskMessage{duplicate})).To(Succeed())
		again, err := queue.Get(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(HaveLen(1))

		done := make(chan error, 1)
		go func() {
			done <- w.HandleTask(ctx, tasks[0])
		}()
		Eventually(dest.hits.Load, 2*time.Second, 5*time.Millisecond).Should(BeEquivalentTo(1))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			Expect(w.HandleTask(ctx, again[0])).To(Succeed())
		}()
		wg.Wait()

		close(dest.hold)
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))

		Expect(dest.hits.Load()).To(BeEquivalentTo(1))
		Expect(logCount(delivery.ID)).To(BeEquivalentTo(1))
		Expect(reload(delivery.ID).Status).To(Equal(entities.DeliveryStatusDelivered))

		// the postponed copy stays invisible rather than deleted
		size, _ := queue.Size(ctx)
		Expect(size).To(BeZero())
		c.Advance(constants.TaskQueueVisibilityTimeout)
		Expect(process()).To(Equal(1))
		Expect(dest.hits.Load()).To(BeEquivalentTo(1))
		size, _ = queue.Size(ctx)
		Expect(size).To(BeZero())
	})

	It("traces each attempt", func() {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		DeferCleanup(func() { otel.SetTracerProvider(prev) })

		dest.setStatus(502)
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)
		Expect(process()).To(Equal(1))

		spans := recorder.Ended()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].Name()).To(Equal("worker.send"))
		Expect(spans[0].Status().Code).To(Equal(codes.Error))
		Expect(spans[0].Attributes()).To(ContainElements(
			attribute.String("delivery.id", delivery.ID),
			attribute.String("webhook.config_id", config.ID),
			attribute.Int("delivery.attempt", 1),
			attribute.Int("http.response.status_code", 502),
		))
	})

	It("never lets custom headers override reserved ones", func() {
		config := newConfig(dest.server.URL)
		config.Headers = entities.Headers{
			"x-webhook-signature": "forged",
			"X-WEBHOOK-ID":        "forged",
			"content-type":        "text/plain",
		}
		Expect(store.WebhookConfigs.Update(ctx, config)).To(Succeed())
		delivery := newDelivery(config)

		Expect(process()).To(Equal(1))
		Expect(dest.last.Header.Values(constants.HeaderSignature)).To(HaveLen(1))
		Expect(dest.last.Header.Get(constants.HeaderSignature)).NotTo(Equal("forged"))
		Expect(dest.last.Header.Get(constants.HeaderID)).To(Equal(delivery.Payload.ID))
		Expect(dest.last.Header.Get("Content-Type")).To(Equal("application/json"))
	})

	It("requeues overdue deliveries whose task was lost", func() {
		config := newConfig(dest.server.URL)
		payload := entities.NewPayload("form.submitted", nil, "", c.Now())
		delivery := entities.NewDelivery(config, payload)
		Expect(store.Deliveries.Insert(ctx, delivery)).To(Succeed())

		n, err := w.Requeue(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		c.Advance(2 * time.Minute)
		n, err = w.Requeue(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		Expect(process()).To(Equal(1))
		Expect(reload(delivery.ID).Status).To(Equal(entities.DeliveryStatusDelivered))
	})

	It("polls the queue once started", func() {
		config := newConfig(dest.server.URL)
		delivery := newDelivery(config)

		Expect(w.Start()).To(Succeed())
		Expect(w.Start()).To(MatchError(worker.ErrServerStarted))

		Eventually(func() entities.DeliveryStatus {
			return reload(delivery.ID).Status
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(entities.DeliveryStatusDelivered))

		Expect(w.Stop()).To(Succeed())
		Expect(w.Stop()).To(MatchError(worker.ErrServerStopped))
	})
})

var _ = Describe("Headers", func() {
	It("canonicalizes custom header names", func() {
		delivery := &entities.Delivery{ID: "d1", Payload: entities.Payload{ID: "p1", Event: "e"}}
		config := &entities.WebhookConfig{Headers: entities.Headers{"x-custom": "v"}}
		headers := worker.Headers(delivery, config, "sha256=00", 2)
		Expect(headers).To(HaveKeyWithValue("X-Custom", "v"))
		Expect(headers).To(HaveKeyWithValue("X-Webhook-Attempt", "2"))
		Expect(headers).To(HaveKeyWithValue("X-Webhook-Signature", "sha256=00"))
		Expect(headers).To(HaveKeyWithValue("X-Webhook-Id", "p1"))
		Expect(headers).To(HaveLen(8))
	})
})
