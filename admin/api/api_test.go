package api_test

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/go-resty/resty/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hookrelay/hookrelay/admin/api"
	"github.com/hookrelay/hookrelay/config"
	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/eventbus"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/worker/deliverer"
	"github.com/hookrelay/hookrelay/utils"
	"go.uber.org/zap"
)

type page[T any] struct {
	Total int64 `json:"total"`
	Data  []T   `json:"data"`
}

type errorResponse struct {
	Message string                 `json:"message"`
	Error   map[string]interface{} `json:"error"`
}

var _ = Describe("Admin API", func() {
	var (
		store  *db.DB
		queue  *taskqueue.MemoryTaskQueue
		c      *clock.Mock
		cfg    *config.Config
		server *httptest.Server
		client *resty.Client
	)

	BeforeEach(func() {
		log := zap.NewNop().Sugar()
		c = clock.NewMock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
		bus := eventbus.NewLocalEventBus(log)
		store = db.NewMemoryDB(log, bus, c)
		queue = taskqueue.NewMemoryQueue(taskqueue.MemoryTaskQueueOptions{Clock: c})
		registry := dispatcher.NewRegistry(store, log)
		registry.Subscribe(bus)
		m, err := metrics.New(config.New().Metrics)
		Expect(err).NotTo(HaveOccurred())

		cfg = config.New()
		cfg.Environment = config.EnvironmentDevelopment
		a := api.NewAPI(api.Options{
			Config: cfg,
			DB:     store,
			Dispatcher: dispatcher.NewDispatcher(dispatcher.Options{
				Source:   "hookrelay",
				DB:       store,
				Queue:    queue,
				Registry: registry,
				Metrics:  m,
				Clock:    c,
				Log:      log,
			}),
			Logger: deliverylog.NewLogger(store.DeliveryLogs, c, log),
			ACL:    deliverer.NewACL(deliverer.AclOptions{Rules: []string{"@default"}}),
			Log:    log,
		})
		server = httptest.NewServer(a.Handler())
		client = resty.New().SetBaseURL(server.URL)
	})

	AfterEach(func() {
		server.Close()
	})

	createConfig := func(owner string, body map[string]interface{}) *entities.WebhookConfig {
		resp, err := client.R().
			SetHeader(api.HeaderOwnerID, owner).
			SetBody(body).
			SetResult(entities.WebhookConfig{}).
			Post("/webhooks")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode()).To(Equal(201), string(resp.Body()))
		return resp.Result().(*entities.WebhookConfig)
	}

	formConfig := func() map[string]interface{} {
		return map[string]interface{}{
			"name":   "forms",
			"url":    "https://example.com/hook",
			"events": []string{"form.submitted"},
		}
	}

	It("serves the index", func() {
		resp, err := client.R().SetResult(api.IndexResponse{}).Get("/")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode()).To(Equal(200))
		Expect(resp.Result().(*api.IndexResponse).Mode).To(Equal("memory"))
	})

	Context("/webhooks", func() {
		It("creates a config with defaults and a masked secret", func() {
			config := createConfig("u1", formConfig())
			Expect(config.ID).NotTo(BeEmpty())
			Expect(config.Active).To(BeTrue())
			Expect(config.OwnerID).To(Equal("u1"))
			Expect(config.Retry).To(Equal(entities.RetryPolicy{MaxAttempts: 3, InitialDelay: 5, BackoffMultiplier: 2}))
			Expect(config.Secret.Masked()).To(BeTrue())

			stored, err := store.WebhookConfigs.Get(context.Background(), config.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Secret.Reveal()).To(HaveLen(64))
		})

		It("rejects invalid configs", func() {
			resp, err := client.R().SetBody(map[string]interface{}{"name": "x"}).SetError(errorResponse{}).Post("/webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
			Expect(resp.Error().(*errorResponse).Message).To(Equal("Request Validation"))

			resp, err = client.R().SetBody("{").Post("/webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))

			body := formConfig()
			body["url"] = "ftp://example.com"
			resp, err = client.R().SetBody(body).Post("/webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
		})

		It("enforces the destination acl in production", func() {
			body := formConfig()
			body["url"] = "http://127.0.0.1:8080/hook"
			resp, err := client.R().SetBody(body).Post("/webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(201))

			cfg.Environment = config.EnvironmentProduction
			resp, err = client.R().SetBody(body).SetError(errorResponse{}).Post("/webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
			Expect(resp.Error().(*errorResponse).Message).To(Equal(deliverer.ErrDenied.Error()))
		})

		It("scopes configs by owner", func() {
			mine := createConfig("u1", formConfig())
			createConfig("u2", formConfig())

			resp, err := client.R().SetResult(page[*entities.WebhookConfig]{}).Get("/webhooks?owner_id=u1")
			Expect(err).NotTo(HaveOccurred())
			list := resp.Result().(*page[*entities.WebhookConfig])
			Expect(list.Total).To(BeEquivalentTo(1))
			Expect(list.Data[0].ID).To(Equal(mine.ID))

			resp, err = client.R().SetResult(page[*entities.WebhookConfig]{}).Get("/webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Result().(*page[*entities.WebhookConfig]).Total).To(BeEquivalentTo(2))

			resp, err = client.R().SetHeader(api.HeaderOwnerID, "u2").Get("/webhooks/" + mine.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(404))

			resp, err = client.R().Get("/webhooks?page_no=2&page_size=1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(200))
		})

		It("updates a config and keeps its secret", func() {
			config := createConfig("u1", formConfig())
			before, _ := store.WebhookConfigs.Get(context.Background(), config.ID)

			body := formConfig()
			body["active"] = false
			body["secret"] = "changed"
			resp, err := client.R().SetBody(body).SetResult(entities.WebhookConfig{}).Put("/webhooks/" + config.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(200))
			Expect(resp.Result().(*entities.WebhookConfig).Active).To(BeFalse())

			after, _ := store.WebhookConfigs.Get(context.Background(), config.ID)
			Expect(after.Active).To(BeFalse())
			Expect(after.Secret).To(Equal(before.Secret))
			Expect(after.OwnerID).To(Equal("u1"))

			resp, err = client.R().SetBody(body).Put("/webhooks/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(404))
		})

		It("reveals and rotates the secret", func() {
			config := createConfig("u1", formConfig())
			stored, _ := store.WebhookConfigs.Get(context.Background(), config.ID)

			resp, err := client.R().SetResult(api.SecretResponse{}).Post("/webhooks/" + config.ID + "/secret/reveal")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Result().(*api.SecretResponse).Secret).To(Equal(stored.Secret.Reveal()))

			resp, err = client.R().SetResult(api.SecretResponse{}).Post("/webhooks/" + config.ID + "/secret/rotate")
			Expect(err).NotTo(HaveOccurred())
			rotated := resp.Result().(*api.SecretResponse).Secret
			Expect(rotated).NotTo(Equal(stored.Secret.Reveal()))

			stored, _ = store.WebhookConfigs.Get(context.Background(), config.ID)
			Expect(stored.Secret.Reveal()).To(Equal(rotated))
		})

		It("deletes a config", func() {
			config := createConfig("u1", formConfig())
			resp, err := client.R().Delete("/webhooks/" + config.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(204))

			stored, _ := store.WebhookConfigs.Get(context.Background(), config.ID)
			Expect(stored).To(BeNil())
		})

		It("sends a test event", func() {
			config := createConfig("u1", formConfig())
			resp, err := client.R().SetResult(entities.Delivery{}).Post("/webhooks/" + config.ID + "/test")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(202))
			delivery := resp.Result().(*entities.Delivery)
			Expect(delivery.Event).To(Equal(constants.TestEventType))
			Expect(delivery.Status).To(Equal(entities.DeliveryStatusPending))

			size, _ := queue.Size(context.Background())
			Expect(size).To(BeEquivalentTo(1))

			resp, err = client.R().Post("/webhooks/missing/test")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(404))
		})

		It("reports delivery stats", func() {
			config := createConfig("u1", formConfig())
			for i, status := range []int{200, 500} {
				Expect(store.DeliveryLogs.Insert(context.Background(), &entities.DeliveryLog{
					ID:             utils.KSUID(),
					Direction:      entities.LogDirectionOutgoing,
					Kind:           []entities.LogKind{entities.LogKindSuccess, entities.LogKindError}[i],
					ConfigID:       config.ID,
					DurationMs:     100,
					ResponseStatus: utils.Pointer(status),
				})).To(Succeed())
			}

			resp, err := client.R().Get("/webhooks/" + config.ID + "/stats?days=7")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(200))
			Expect(string(resp.Body())).To(MatchJSON(`{"total_deliveries":2,"success_rate":0.5,"avg_response_time_ms":100}`))

			resp, err = client.R().Get("/webhooks/" + config.ID + "/stats?days=0")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
		})
	})

	Context("/incoming-webhooks", func() {
		incoming := func() map[string]interface{} {
			return map[string]interface{}{
				"name":          "stripe",
				"endpoint":      "stripe",
				"event_mapping": map[string]string{"payment_intent.succeeded": "payment.completed"},
			}
		}

		It("creates an incoming config and returns its secret once", func() {
			resp, err := client.R().SetBody(incoming()).Post("/incoming-webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(201), string(resp.Body()))

			stored, err := store.IncomingWebhookConfigs.GetByEndpoint(context.Background(), "stripe")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(resp.Body())).To(ContainSubstring(`"secret":"` + stored.Secret.Reveal() + `"`))
			Expect(stored.RateLimit).To(Equal(60))

			resp, err = client.R().SetResult(entities.IncomingWebhookConfig{}).Get("/incoming-webhooks/" + stored.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Result().(*entities.IncomingWebhookConfig).Secret.Masked()).To(BeTrue())
		})

		It("rejects duplicate endpoints", func() {
			resp, err := client.R().SetBody(incoming()).Post("/incoming-webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(201))

			resp, err = client.R().SetBody(incoming()).SetError(errorResponse{}).Post("/incoming-webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
			Expect(resp.Error().(*errorResponse).Message).To(ContainSubstring("unique constraint violation"))
		})

		It("rejects an invalid schema", func() {
			body := incoming()
			body["schema"] = `{"type": 12}`
			resp, err := client.R().SetBody(body).Post("/incoming-webhooks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
		})

		It("updates and deletes", func() {
			resp, err := client.R().SetBody(incoming()).SetResult(entities.IncomingWebhookConfig{}).Post("/incoming-webhooks")
			Expect(err).NotTo(HaveOccurred())
			id := resp.Result().(*entities.IncomingWebhookConfig).ID

			body := incoming()
			body["rate_limit"] = 10
			resp, err = client.R().SetBody(body).Put("/incoming-webhooks/" + id)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(200))
			stored, _ := store.IncomingWebhookConfigs.Get(context.Background(), id)
			Expect(stored.RateLimit).To(Equal(10))
			Expect(stored.Secret.Reveal()).To(HaveLen(64))

			resp, err = client.R().Delete("/incoming-webhooks/" + id)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(204))
		})
	})

	Context("/events and /deliveries", func() {
		It("triggers an event and retries a delivery", func() {
			config := createConfig("u1", formConfig())
			createConfig("u2", formConfig())

			resp, err := client.R().
				SetBody(map[string]interface{}{"event_type": "form.submitted", "data": map[string]interface{}{"form_id": "f1"}, "owner_id": "u1"}).
				SetResult(api.TriggerResponse{}).
				Post("/events")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(202))
			deliveries := resp.Result().(*api.TriggerResponse).Deliveries
			Expect(deliveries).To(HaveLen(1))
			Expect(deliveries[0].ConfigID).To(Equal(config.ID))
			Expect(deliveries[0].Payload.Data).To(HaveKeyWithValue("form_id", "f1"))

			resp, err = client.R().SetResult(page[*entities.Delivery]{}).Get("/deliveries?config_id=" + config.ID + "&status=pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Result().(*page[*entities.Delivery]).Total).To(BeEquivalentTo(1))

			resp, err = client.R().SetResult(entities.Delivery{}).Get("/deliveries/" + deliveries[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(200))

			// still pending
			resp, err = client.R().SetError(errorResponse{}).Post("/deliveries/" + deliveries[0].ID + "/retry")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(409))
			Expect(resp.Error().(*errorResponse).Message).To(Equal("delivery is pending"))
			size, _ := queue.Size(context.Background())
			Expect(size).To(BeEquivalentTo(1))

			ok, err := store.Deliveries.Transition(context.Background(), deliveries[0].ID, 0, &dao.DeliveryTransition{
				Status:       entities.DeliveryStatusFailed,
				AttemptCount: 3,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			resp, err = client.R().SetResult(entities.Delivery{}).Post("/deliveries/" + deliveries[0].ID + "/retry")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(202))
			retried := resp.Result().(*entities.Delivery)
			Expect(retried.ID).NotTo(Equal(deliveries[0].ID))
			Expect(retried.Payload.ID).To(Equal(deliveries[0].Payload.ID))

			resp, err = client.R().Post("/deliveries/missing/retry")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(404))
		})

		It("accepts events without subscribers", func() {
			resp, err := client.R().
				SetBody(map[string]interface{}{"event_type": "nobody.cares"}).
				Post("/events")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(202))
			Expect(string(resp.Body())).To(MatchJSON(`{"deliveries":[]}`))
		})

		It("validates the event type", func() {
			resp, err := client.R().SetBody(map[string]interface{}{"data": map[string]interface{}{}}).Post("/events")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(400))
		})

		It("lists logs", func() {
			resp, err := client.R().Get("/logs?direction=incoming")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode()).To(Equal(200))
			Expect(string(resp.Body())).To(MatchJSON(`{"total":0,"data":[]}`))
		})
	})
})
