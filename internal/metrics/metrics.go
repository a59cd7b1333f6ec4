// Package metrics exposes pipeline counters in Prometheus format
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventsweep"

// Delivery outcome labels
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeTerminal  = "terminal"
	OutcomeCapped    = "skipped_by_cap"
)

// Metrics holds the run's collectors on a private registry.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	candidates     *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	duplicates     *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	attempts       prometheus.Counter
	sourceErrors   *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	lastRun        prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.candidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Raw event candidates produced, by source kind and producer",
	}, []string{"kind", "producer"})
	m.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_total",
		Help:      "Candidates dropped by normalization or classification",
	}, []string{"kind"})
	m.duplicates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_total",
		Help:      "Events dropped as in-batch duplicates",
	}, []string{"kind"})
	m.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Events by final delivery outcome",
	}, []string{"kind", "outcome"})
	m.attempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_attempts_total",
		Help:      "HTTP POST attempts made to the sink, retries included",
	})
	m.sourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_errors_total",
		Help:      "Sources that failed to produce candidates",
	}, []string{"kind"})
	m.sourceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_duration_seconds",
		Help:      "Wall time spent per source",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind"})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed run",
	})

	m.registry.MustRegister(
		m.candidates, m.rejected, m.duplicates, m.deliveries,
		m.attempts, m.sourceErrors, m.sourceDuration, m.lastRun,
	)

	return m
}


func (m *Metrics) Candidates(kind, producer string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.candidates.WithLabelValues(kind, producer).Add(float64(n))
}

func (m *Metrics) Rejected(kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) Duplicate(kind string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(kind).Inc()
}

// Delivery records one event's final outcome and the attempts it took
func (m *Metrics) Delivery(kind, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind, outcome).Inc()
	m.attempts.Add(float64(attempts))
}

// Capped records events left undelivered after the cap was reached
func (m *Metrics) Capped(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deliveries.WithLabelValues(kind, OutcomeCapped).Add(float64(n))
}

func (m *Metrics) SourceError(kind string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SourceDone(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RunDone stamps the completion time of the run
func (m *Metrics) RunDone(at time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Server exposes /metrics and /healthz while a run is in progress
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// Serve blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Serve() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
