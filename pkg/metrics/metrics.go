package metrics

import (
	"net/http"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000}

// Metrics holds the collectors. When disabled every collector discards.
type Metrics struct {
	Enabled  bool
	Registry *prometheus.Registry

	// worker metrics

	DeliveryAttemptCounter    metrics.Counter   // labels: event, outcome
	DeliveryDurationHistogram metrics.Histogram // labels: event, outcome
	DeliveryPendingGauge      metrics.Gauge

	// facade metrics

	EventTriggeredCounter metrics.Counter // labels: event

	// proxy metrics

	InboundRequestCounter metrics.Counter // labels: status
}

func New(cfg modules.MetricsConfig) (*Metrics, error) {
	m := &Metrics{Enabled: cfg.Enabled}
	if !cfg.Enabled {
		m.DeliveryAttemptCounter = discard.NewCounter()
		m.DeliveryDurationHistogram = discard.NewHistogram()
		m.DeliveryPendingGauge = discard.NewGauge()
		m.EventTriggeredCounter = discard.NewCounter()
		m.InboundRequestCounter = discard.NewCounter()
		return m, nil
	}

	ns := cfg.Namespace
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "webhook_deliveries_total", Help: "Webhook delivery attempts by event type and outcome.",
	}, []string{"event", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: latencyBuckets,
	}, []string{"event", "outcome"})
	pending := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Name: "webhook_queue_size", Help: "Delivery tasks waiting in the queue.",
	}, []string{})
	triggered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "events_triggered_total", Help: "Internal events handed to the trigger facade.",
	}, []string{"event"})
	inbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Name: "inbound_requests_total", Help: "Inbound webhook requests by response status.",
	}, []string{"status"})

	registry := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		attempts, latency, pending, triggered, inbound,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	m.Registry = registry
	m.DeliveryAttemptCounter = kitprometheus.NewCounter(attempts)
	m.DeliveryDurationHistogram = kitprometheus.NewHistogram(latency)
	m.DeliveryPendingGauge = kitprometheus.NewGauge(pending)
	m.EventTriggeredCounter = kitprometheus.NewCounter(triggered)
	m.InboundRequestCounter = kitprometheus.NewCounter(inbound)
	return m, nil
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
