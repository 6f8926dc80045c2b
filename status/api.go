package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/hookrelay/hookrelay/pkg/http/middlewares"
	"github.com/hookrelay/hookrelay/pkg/http/response"
	"github.com/hookrelay/hookrelay/pkg/metrics"
	"github.com/hookrelay/hookrelay/pkg/stats"
	"github.com/hookrelay/hookrelay/pkg/taskqueue"
	"github.com/hookrelay/hookrelay/status/health"
	"github.com/hookrelay/hookrelay/utils"
)

type API struct {
	startAt    time.Time
	stats      *stats.Collector
	queue      taskqueue.TaskQueue
	durable    bool
	metrics    *metrics.Metrics
	indicators []*health.Indicator
}

func (api *API) Index(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatusResponse{
		UpTime: time.Since(api.startAt).Round(time.Second).String(),
		Runtime: RuntimeStats{
			Go:         runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
		},
		Memory: MemoryStats{
			Alloc:       fmt.Sprintf("%.2f MiB", BytesToMiB(mem.Alloc)),
			Sys:         fmt.Sprintf("%.2f MiB", BytesToMiB(mem.Sys)),
			HeapAlloc:   fmt.Sprintf("%.2f MiB", BytesToMiB(mem.HeapAlloc)),
			HeapObjects: int64(mem.HeapObjects),
			GC:          int64(mem.NumGC),
		},
		Stats: map[string]interface{}{},
		Queue: QueueStats{Durable: api.durable},
	}
	if api.stats != nil {
		resp.Stats = api.stats.Collect()
	}
	if api.queue != nil {
		size, err := api.queue.Size(r.Context())
		if err != nil {
			resp.Queue.Error = err.Error()
		}
		resp.Queue.Size = size
	}

	response.JSON(w, http.StatusOK, resp)
}

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     health.StatusUp,
		Components: make(map[string]HealthResult),
	}
	for _, check := range api.indicators {
		res := HealthResult{
			Status: health.StatusUp,
			Error:  nil,
		}
		err := check.Check(ctx)
		if err != nil {
			resp.Status = health.StatusDown

			res.Status = health.StatusDown
			res.Error = utils.Pointer(err.Error())
		}
		resp.Components[check.Name] = res
	}

	if resp.Status != health.StatusUp {
		response.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	response.JSON(w, http.StatusOK, resp)
}

func (api *API) Handler() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.NewRecovery(nil).Handle)

	r.HandleFunc("/", api.Index).Methods("GET")
	r.HandleFunc("/health", api.Health).Methods("GET")
	if api.metrics != nil {
		r.Handle("/metrics", api.metrics.Handler()).Methods("GET")
	}

	return r
}
