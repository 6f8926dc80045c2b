package status

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/stats"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/status/health"
	"go.uber.org/zap"
)

type Status struct {
	api *API
	cfg *modules.StatusConfig
	s   *http.Server
	log *zap.SugaredLogger
}

type Options struct {
	// Stats is merged into the index response.
	Stats *stats.Collector
	// Queue reports its size on the index. Durable is false for the
	// in-process queue.
	Queue      taskqueue.TaskQueue
	Durable    bool
	Metrics    *metrics.Metrics
	Indicators []*health.Indicator
	Log        *zap.SugaredLogger
}

func NewStatus(cfg modules.StatusConfig, opts Options) *Status {
	api := &API{
		startAt:    time.Now(),
		stats:      opts.Stats,
		queue:      opts.Queue,
		durable:    opts.Durable,
		metrics:    opts.Metrics,
		indicators: opts.Indicators,
	}
	s := &http.Server{
		Handler:      api.Handler(),
		Addr:         cfg.Listen,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	status := &Status{
		api: api,
		cfg: &cfg,
		s:   s,
		log: opts.Log.Named("status"),
	}

	return status
}

func (s *Status) Name() string {
	return "status"
}

func (s *Status) Handler() http.Handler {
	return s.s.Handler
}

func (s *Status) Start() error {
	go func() {
		if err := s.s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("failed to start status HTTP server: %v", err)
		}
	}()

	s.log.Infow(fmt.Sprintf(`listening on address "%s"`, s.cfg.Listen))
	return nil
}

func (s *Status) Stop(ctx context.Context) error {
	s.log.Infof("exiting")
	if err := s.s.Shutdown(ctx); err != nil {
		return err
	}
	s.log.Infof("exit")
	return nil
}
