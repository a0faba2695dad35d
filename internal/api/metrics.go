package api

import (
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	spans     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	batchSize prometheus.Histogram
}

// newMetrics builds the server's collectors on a private registry so several
// servers can live in one process.
func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nerloop_predict_requests_total",
				Help: "Count of predict requests by endpoint and outcome",
			},
			[]string{"endpoint", "status"},
		),
		spans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nerloop_predicted_spans_total",
				Help: "Number of entity spans returned, by label",
			},
			[]string{"label"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nerloop_predict_duration_seconds",
				Help:    "Time spent predicting, per request",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nerloop_batch_records",
				Help:    "Records per batch predict request",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.spans,
		m.latency,
		m.batchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
