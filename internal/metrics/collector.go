// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pollstore"

// Poll outcome label values
const (
	PollHit       = "hit"
	PollWoken     = "woken"
	PollTimeout   = "timeout"
	PollCancelled = "cancelled"
	PollError     = "error"
)

// Metrics holds all Prometheus metrics for the server. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	RequestCounter    *prometheus.CounterVec
	LatencyHistogram  *prometheus.HistogramVec
	PollOutcomes      *prometheus.CounterVec
	ConnectionsOpened prometheus.Counter
	ConnectionsClosed prometheus.Counter
	ConnectionsReject prometheus.Counter
	ConnectionsOpen   prometheus.Gauge
	BlobsStored       prometheus.Gauge
	BytesReceived     prometheus.Counter
	registry          *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		LatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds, including long-poll waits",
				Buckets:   []float64{.001, .005, .025, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		PollOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_outcomes_total",
				Help:      "GET resolutions by outcome",
			},
			[]string{"outcome"},
		),
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Connections accepted",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Connections closed for any reason",
		}),
		ConnectionsReject: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed because their request budget ran out",
		}),
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Currently open connections",
		}),
		BlobsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blobs_stored",
			Help:      "Distinct paths written",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Body bytes accepted by PUT and POST",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.RequestCounter,
		m.LatencyHistogram,
		m.PollOutcomes,
		m.ConnectionsOpened,
		m.ConnectionsClosed,
		m.ConnectionsReject,
		m.ConnectionsOpen,
		m.BlobsStored,
		m.BytesReceived,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// WatchWaiting exposes the number of blocked GETs, read on every scrape.
func (m *Metrics) WatchWaiting(fn func() int64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_requests",
			Help:      "GET requests currently blocked on a missing path",
		},
		func() float64 { return float64(fn()) },
	))
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method string, status int, latency time.Duration) {
	m.RequestCounter.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.LatencyHistogram.WithLabelValues(method).Observe(latency.Seconds())
}

// ObservePoll records how a GET was resolved.
func (m *Metrics) ObservePoll(outcome string) {
	m.PollOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePut records an accepted write. created is true when the path was new.
func (m *Metrics) ObservePut(size int, created bool) {
	m.BytesReceived.Add(float64(size))
	if created {
		m.BlobsStored.Inc()
	}
}

// SetBlobs seeds the blob gauge, typically from a driver scan at startup.
func (m *Metrics) SetBlobs(n int) {
	m.BlobsStored.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	m.ConnectionsOpened.Inc()
	m.ConnectionsOpen.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.ConnectionsClosed.Inc()
	m.ConnectionsOpen.Dec()
}

func (m *Metrics) ConnectionRejected() {
	m.ConnectionsReject.Inc()
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
