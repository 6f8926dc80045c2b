package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/admin"
	"github.com/hookrelay/hookrelay/admin/api"
	"github.com/hookrelay/hookrelay/config"
	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/db/migrator"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/eventbus"
	"github.com/hookrelay/hookrelay/pkg/accesslog"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/log"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/pool"
	"github.com/hookrelay/hookrelay/pkg/ratelimiter"
	"github.com/hookrelay/hookrelay/pkg/stats"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/pkg/tracing"
	"github.com/hookrelay/hookrelay/proxy"
	"github.com/hookrelay/hookrelay/status"
	"github.com/hookrelay/hookrelay/status/health"
	"github.com/hookrelay/hookrelay/worker"
	"github.com/hookrelay/hookrelay/worker/deliverer"
	"github.com/redis/go-redis/v9"
	uuid "github.com/satori/go.uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	ErrApplicationStarted = errors.New("already started")
	ErrApplicationStopped = errors.New("already stopped")
)

const shutdownTimeout = 30 * time.Second

type Application struct {
	nodeID string

	cfg *config.Config

	mux     sync.Mutex
	started bool

	stop chan struct{}

	log        *zap.SugaredLogger
	db         *db.DB
	bus        *eventbus.EventBus
	redis      *redis.Client
	queue      taskqueue.TaskQueue
	metrics    *metrics.Metrics
	stats      *stats.Collector
	tracer     *tracing.Tracer
	dispatcher *dispatcher.Dispatcher

	status  *status.Status
	admin   *admin.Admin
	gateway *proxy.Gateway
	worker  *worker.Worker
}

func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		nodeID: uuid.NewV4().String(),
		cfg:    cfg,
		stop:   make(chan struct{}, 1),
		stats:  stats.NewCollector(),
	}

	err := app.initialize()
	if err != nil {
		return nil, err
	}

	return app, nil
}

func (app *Application) initialize() error {
	cfg := app.cfg
	if err := cfg.PostProcess(); err != nil {
		return err
	}

	log, err := log.NewZapLogger(&cfg.Log)
	if err != nil {
		return err
	}
	app.log = log
	c := clock.Real()

	app.tracer, err = tracing.New(&cfg.Tracing)
	if err != nil {
		return err
	}
	if app.tracer != nil {
		log.Infof("[app] exporting traces to %s", cfg.Tracing.Opentelemetry.Endpoint)
	}

	// db
	if cfg.Store.Type == modules.StoreTypeMemory {
		app.bus = eventbus.NewLocalEventBus(log)
		app.db = db.NewMemoryDB(log, app.bus, c)
		log.Warn("[app] store is in-memory, configs and deliveries are lost on restart")
	} else {
		sqlDB, err := db.NewSqlDB(cfg.Database)
		if err != nil {
			return err
		}
		app.bus = eventbus.NewEventBus(app.NodeID(), cfg.Database.GetDSN(), log, sqlDB)
		app.db, err = db.NewDB(sqlDB, log, app.bus)
		if err != nil {
			return err
		}
	}
	app.stats.Register(app.db)

	app.metrics, err = metrics.New(cfg.Metrics)
	if err != nil {
		return err
	}

	// queue
	var limiter ratelimiter.RateLimiter
	if cfg.Queue.Type == modules.QueueTypeMemory {
		app.queue = taskqueue.NewMemoryQueue(taskqueue.MemoryTaskQueueOptions{Clock: c})
		limiter = ratelimiter.NewMemoryLimiter(c)
		log.Warn("[app] delivery queue is in-memory and non-durable, scheduled retries are lost on restart")
	} else {
		app.redis = cfg.Redis.GetClient()
		app.queue = taskqueue.NewRedisQueue(taskqueue.RedisTaskQueueOptions{Client: app.redis}, log)
		limiter = ratelimiter.NewRedisLimiter(app.redis)
	}

	registry := dispatcher.NewRegistry(app.db, log)
	registry.Subscribe(app.bus)
	app.dispatcher = dispatcher.NewDispatcher(dispatcher.Options{
		Source:   cfg.Source,
		DB:       app.db,
		Queue:    app.queue,
		Registry: registry,
		Metrics:  app.metrics,
		Clock:    c,
		Log:      log,
	})

	logger := deliverylog.NewLogger(app.db.DeliveryLogs, c, log)

	// worker
	if cfg.Worker.Enabled {
		d, err := deliverer.NewHTTPDeliverer(&cfg.Worker.Deliverer, log)
		if err != nil {
			return err
		}
		concurrency := int(cfg.Worker.Pool.Concurrency)
		if concurrency == 0 {
			concurrency = runtime.NumCPU() * 100
		}
		p := pool.NewPool(int(cfg.Worker.Pool.Size), concurrency)
		app.stats.Register(p)
		app.worker = worker.NewWorker(worker.Options{
			PollInterval:     time.Duration(cfg.Worker.PollInterval) * time.Millisecond,
			RequeueInterval:  time.Duration(cfg.Worker.RequeueInterval) * time.Second,
			LogRetentionDays: int(cfg.Worker.LogRetentionDays),
		}, worker.Dependencies{
			DB:      app.db,
			Queue:   app.queue,
			Sender:  worker.NewSender(d, logger, log),
			Logger:  logger,
			Pool:    p,
			Metrics: app.metrics,
			Clock:   c,
			Log:     log,
		})
	}

	// admin
	if cfg.Admin.IsEnabled() {
		a := api.NewAPI(api.Options{
			Config:     cfg,
			DB:         app.db,
			Dispatcher: app.dispatcher,
			Logger:     logger,
			ACL:        deliverer.NewACL(deliverer.AclOptions{Rules: cfg.Worker.Deliverer.ACL.Deny}),
			Resolver:   net.DefaultResolver,
			Log:        log,
		})
		handler := a.Handler()
		if cfg.Admin.AccessLog.Enabled {
			accessLogger, err := accesslog.NewAccessLogger("admin", accesslog.Options{
				File:   cfg.Admin.AccessLog.File,
				Format: string(cfg.Admin.AccessLog.Format),
			})
			if err != nil {
				return err
			}
			handler = accesslog.NewMiddleware(accessLogger)(handler)
		}
		if app.tracer != nil {
			handler = otelhttp.NewMiddleware("api.admin")(handler)
		}
		app.admin = admin.NewAdmin(cfg.Admin, handler, log)
	}

	// gateway
	if cfg.Proxy.IsEnabled() {
		receiver := proxy.NewReceiver(proxy.ReceiverOptions{
			DB:               app.db,
			Limiter:          limiter,
			Logger:           logger,
			Handler:          proxy.TriggerHandler(app.dispatcher, log),
			Clock:            c,
			DefaultRateLimit: cfg.Proxy.RateLimit,
			Log:              log,
		})
		app.gateway = proxy.NewGateway(&cfg.Proxy, receiver, app.metrics, log)
		if cfg.Proxy.AccessLog.Enabled {
			accessLogger, err := accesslog.NewAccessLogger("proxy", accesslog.Options{
				File:   cfg.Proxy.AccessLog.File,
				Format: string(cfg.Proxy.AccessLog.Format),
			})
			if err != nil {
				return err
			}
			app.gateway.Use(accesslog.NewMiddleware(accessLogger))
		}
		if app.tracer != nil {
			app.gateway.Use(otelhttp.NewMiddleware("api.proxy"))
		}
	}

	if cfg.Status.IsEnabled() {
		app.status = status.NewStatus(cfg.Status, status.Options{
			Stats:      app.stats,
			Queue:      app.queue,
			Durable:    cfg.Queue.Type != modules.QueueTypeMemory,
			Metrics:    app.metrics,
			Indicators: app.indicators(),
			Log:        log,
		})
	}

	return nil
}

func (app *Application) indicators() []*health.Indicator {
	indicators := []*health.Indicator{
		{
			Name: "db",
			Check: func(ctx context.Context) error {
				return app.db.Ping()
			},
		},
		{
			Name: "queue",
			Check: func(ctx context.Context) error {
				_, err := app.queue.Size(ctx)
				return err
			},
		},
	}
	if app.redis != nil {
		indicators = append(indicators, &health.Indicator{
			Name: "redis",
			Check: func(ctx context.Context) error {
				resp := app.redis.Ping(ctx)
				if resp.Err() != nil {
					return resp.Err()
				}
				if resp.Val() != "PONG" {
					return errors.New("invalid response from redis: " + resp.Val())
				}
				return nil
			},
		})
	}
	return indicators
}

func (app *Application) DB() *db.DB {
	return app.db
}

func (app *Application) Worker() *worker.Worker {
	return app.worker
}

func (app *Application) NodeID() string {
	return app.nodeID
}

func (app *Application) Config() *config.Config {
	return app.cfg
}

// Trigger fans an internal event out to the webhooks of ownerID.
func (app *Application) Trigger(ctx context.Context, eventType string, data map[string]interface{}, ownerID string) ([]*entities.Delivery, error) {
	return app.dispatcher.Trigger(ctx, eventType, data, ownerID)
}

func (app *Application) checkDatabase() error {
	if app.db.IsMemory() {
		return nil
	}
	m := migrator.New(app.db.SqlDB(), migrator.Options{DatabaseName: app.cfg.Database.Database})
	dbStatus, err := m.Status()
	if err != nil {
		return err
	}
	if dbStatus.Dirty {
		return fmt.Errorf("database is in a dirty state at version %d", dbStatus.Version)
	}
	if dbStatus.Version == 0 {
		return errors.New("database is not initialized. Run 'hookrelay db up' before starting")
	}
	return nil
}

// Start starts application
func (app *Application) Start() error {
	app.mux.Lock()
	defer app.mux.Unlock()

	if app.started {
		return ErrApplicationStarted
	}

	if err := app.checkDatabase(); err != nil {
		return err
	}

	app.log.Infof("starting HookRelay %s", hookrelay.VERSION)

	now := time.Now()
	app.stats.Register(stats.ProviderFunc(func() map[string]interface{} {
		return map[string]interface{}{
			"node_id":    app.nodeID,
			"started_at": now,
		}
	}))

	if err := app.bus.Start(); err != nil {
		return err
	}
	if app.admin != nil {
		app.admin.Start()
	}
	if app.worker != nil {
		if err := app.worker.Start(); err != nil {
			return err
		}
	}
	if app.gateway != nil {
		app.gateway.Start()
	}
	if app.status != nil {
		if err := app.status.Start(); err != nil {
			return err
		}
	}

	app.started = true

	return nil
}

func (app *Application) Wait() {
	<-app.stop
}

// Stop stops the listeners first so no new work arrives, then the worker.
func (app *Application) Stop() error {
	app.mux.Lock()
	defer app.mux.Unlock()

	if !app.started {
		return ErrApplicationStopped
	}

	app.log.Info("exiting")

	defer func() {
		app.log.Info("exit")
		_ = app.log.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.gateway != nil {
		if err := app.gateway.Stop(ctx); err != nil {
			app.log.Warnf("[app] failed to stop gateway: %v", err)
		}
	}
	if app.admin != nil {
		if err := app.admin.Stop(ctx); err != nil {
			app.log.Warnf("[app] failed to stop admin: %v", err)
		}
	}
	if app.worker != nil {
		_ = app.worker.Stop()
	}
	if app.status != nil {
		_ = app.status.Stop(ctx)
	}
	if q, ok := app.queue.(*taskqueue.RedisTaskQueue); ok {
		q.Stop()
	}
	_ = app.bus.Stop()
	if err := app.db.Close(); err != nil {
		app.log.Warnf("[app] failed to close database: %v", err)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err := app.tracer.Stop(ctx); err != nil {
		app.log.Warnf("[app] failed to flush traces: %v", err)
	}

	app.started = false
	app.stop <- struct{}{}

	return nil
}
