// Package metrics records per-route handler metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gohttp "github.com/zengzjie/nest-source/framework/http"
	"github.com/zengzjie/nest-source/framework/pipeline"
)

// Metrics owns a registry and the handler collectors. It is also an
// interceptor, so binding it globally instruments every route.
type Metrics struct {
	Registry *prometheus.Registry

	inFlight prometheus.Gauge
	handled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the collectors under namespace in a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_handlers",
			Help:      "Current number of handlers running.",
		}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "handled_total",
			Help:      "Total number of handler invocations.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "route"}),
	}
	m.Registry.MustRegister(
		m.inFlight, m.handled, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Intercept times the rest of the chain and counts it by outcome. Errors are
// labelled with the status their exception carries, 500 for anything else.
func (m *Metrics) Intercept(ctx pipeline.ExecutionContext, next pipeline.CallHandler) (any, error) {
	route := ctx.Route()
	m.inFlight.Inc()
	start := time.Now()

	v, err := next.Handle()

	m.inFlight.Dec()
	m.duration.WithLabelValues(route.Method, route.Path).Observe(time.Since(start).Seconds())
	m.handled.WithLabelValues(route.Method, route.Path, status(err)).Inc()
	return v, err
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	if he, ok := gohttp.AsHTTPException(err); ok {
		return strconv.Itoa(he.Status())
	}
	return strconv.Itoa(http.StatusInternalServerError)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
