package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label of signaldesk_runs_total.
const (
	OutcomeOK       = "ok"
	OutcomeNoData   = "no_data"
	OutcomeFetchErr = "fetch_error"
	OutcomeInvalid  = "invalid"
	OutcomeCompute  = "compute_error"
)

// Order statuses used as the "status" label of signaldesk_orders_total.
const (
	OrderSubmitted    = "submitted"
	OrderFailed       = "failed"
	OrderMarketClosed = "market_closed"
)

// Metrics holds the Prometheus collectors for analysis runs.
//
// All recording methods are safe on a nil *Metrics so callers that run
// without a registry (CLI, tests) need no guards.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: outcome
	FetchDur       prometheus.Histogram
	ComputeDur     prometheus.Histogram
	BarsFetched    prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: strategy, signal
	OrdersTotal    *prometheus.CounterVec // labels: mode, status
	NotifyFailures prometheus.Counter

	// Circuit breaker (0=closed, 1=open, 2=half-open)
	RedisBreakerState prometheus.Gauge

	// Market session state per asset class (0=closed, 1=open)
	MarketOpen *prometheus.GaugeVec

	// Live alert feed
	AlertSubscribers prometheus.Gauge
	AlertDrops       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_runs_total",
			Help: "Analysis runs by outcome",
		}, []string{"outcome"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signaldesk_fetch_duration_seconds",
			Help:    "Bar fetch latency per run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signaldesk_compute_duration_seconds",
			Help:    "Indicator and signal computation latency per run",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		BarsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaldesk_bars_fetched_total",
			Help: "Bars received from the bar source",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_signals_total",
			Help: "Latest-bar signals by strategy and signal",
		}, []string{"strategy", "signal"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_orders_total",
			Help: "Order attempts by execution mode and status",
		}, []string{"mode", "status"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaldesk_notify_failures_total",
			Help: "Signal notifications that failed to send",
		}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaldesk_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		MarketOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signaldesk_market_open",
			Help: "Market session state at the last run (0=closed, 1=open)",
		}, []string{"class"}),
		AlertSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaldesk_alert_subscribers",
			Help: "Connected live alert subscribers",
		}),
		AlertDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signaldesk_alert_drops_total",
			Help: "Alerts dropped for slow live subscribers",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.FetchDur,
		m.ComputeDur,
		m.BarsFetched,
		m.SignalsTotal,
		m.OrdersTotal,
		m.NotifyFailures,
		m.RedisBreakerState,
		m.MarketOpen,
		m.AlertSubscribers,
		m.AlertDrops,
	)

	return m
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration, bars int) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
	m.BarsFetched.Add(float64(bars))
}

func (m *Metrics) ObserveCompute(d time.Duration) {
	if m == nil {
		return
	}
	m.ComputeDur.Observe(d.Seconds())
}

func (m *Metrics) Signal(strategy, signal string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(strategy, signal).Inc()
}

func (m *Metrics) Order(mode, status string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.RedisBreakerState.Set(float64(state))
}

func (m *Metrics) SetMarketOpen(class string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.MarketOpen.WithLabelValues(class).Set(v)
}

func (m *Metrics) SetAlertSubscribers(n int) {
	if m == nil {
		return
	}
	m.AlertSubscribers.Set(float64(n))
}

func (m *Metrics) AlertDropped() {
	if m == nil {
		return
	}
	m.AlertDrops.Inc()
}

// Server runs a standalone HTTP server exposing /metrics and /healthz,
// for deployments that scrape on a separate port.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer means
// prometheus.DefaultGatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if health != nil {
		mux.Handle("/healthz", health)
	}

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the server's mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
