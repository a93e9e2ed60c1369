package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trace service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Engine metrics
	TracesStarted  prometheus.Counter
	TracesEnded    prometheus.Counter
	TracesFiltered prometheus.Counter
	RetainedTraces prometheus.Gauge
	SpansStarted   prometheus.Counter
	SpansEnded     prometheus.Counter
	SpanEvents     prometheus.Counter
	MergedSpans    prometheus.Counter

	// Stream metrics
	StreamClients prometheus.Gauge
	StreamDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates a metrics collector. A nil registry registers on
// the process-wide default; tests pass their own to stay isolated.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(prometheus.DefaultRegisterer)
	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if reg != nil {
		factory = promauto.With(reg)
		gatherer = reg
	}

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devtrace_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devtrace_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		TracesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_traces_started_total",
			Help: "Total number of traces opened",
		}),
		TracesEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_traces_ended_total",
			Help: "Total number of traces sealed",
		}),
		TracesFiltered: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_traces_filtered_total",
			Help: "Traces sealed but dropped by the minimum-duration filter",
		}),
		RetainedTraces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "devtrace_traces_retained",
			Help: "Traces currently held in the retention store",
		}),
		SpansStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_spans_started_total",
			Help: "Total number of spans opened",
		}),
		SpansEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_spans_ended_total",
			Help: "Total number of spans ended",
		}),
		SpanEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_span_events_total",
			Help: "Total number of span annotations recorded",
		}),
		MergedSpans: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_merged_client_spans_total",
			Help: "Client spans reconciled into sealed traces",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "devtrace_stream_clients",
			Help: "Connected live-stream websocket clients",
		}),
		StreamDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "devtrace_stream_dropped_events_total",
			Help: "Events dropped because a stream client was too slow",
		}),
		gatherer: gatherer,
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMergedSpans records spans accepted by the ingest endpoint.
func (m *Metrics) RecordMergedSpans(n int) {
	if n > 0 {
		m.MergedSpans.Add(float64(n))
	}
}

// Handler exposes the Prometheus scrape endpoint as a gin handler.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
