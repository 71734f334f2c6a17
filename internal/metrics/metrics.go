package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and records nothing,
// so components can be built without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	stageFailures   *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	sourceCache     *prometheus.CounterVec
	captureDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.stageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "psb",
		Name:      "stage_failures_total",
		Help:      "Fallback stages abandoned, by category and stage",
	}, []string{"category", "stage"})
	m.resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "psb",
		Name:      "resolutions_total",
		Help:      "Category resolutions by the stage that produced them",
	}, []string{"category", "stage"})
	m.sourceCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "psb",
		Name:      "source_cache_total",
		Help:      "Rate cache lookups by result (hit, refresh, error)",
	}, []string{"result"})
	m.captureDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "psb",
		Name:      "capture_duration_seconds",
		Help:      "Time spent in one browser token capture",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 75},
	})

	m.registry.MustRegister(
		m.stageFailures, m.resolutions, m.sourceCache, m.captureDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) StageFailed(category, stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(category, stage).Inc()
}

func (m *Metrics) Resolved(category, stage string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(category, stage).Inc()
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.sourceCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCapture(d time.Duration) {
	if m == nil {
		return
	}
	m.captureDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Server serves /metrics and /healthz.
type Server struct {
	server *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
