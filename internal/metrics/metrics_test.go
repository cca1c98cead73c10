package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
)

// ────────────────────────────────────────────────────────────────
// Metrics
// ────────────────────────────────────────────────────────────────

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(":0", reg, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMetrics_Recording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunFinished(OutcomeOK)
	m.RunFinished(OutcomeOK)
	m.RunFinished(OutcomeNoData)
	m.ObserveFetch(120*time.Millisecond, 250)
	m.ObserveCompute(300 * time.Microsecond)
	m.Signal("bollinger_touch", "BUY")
	m.Order("paper", OrderSubmitted)
	m.NotifyFailed()
	m.SetBreakerState(1)
	m.SetMarketOpen("us_equity", true)
	m.SetAlertSubscribers(3)
	m.AlertDropped()

	out := scrape(t, reg)
	want := []string{
		`signaldesk_runs_total{outcome="ok"} 2`,
		`signaldesk_runs_total{outcome="no_data"} 1`,
		`signaldesk_bars_fetched_total 250`,
		`signaldesk_signals_total{signal="BUY",strategy="bollinger_touch"} 1`,
		`signaldesk_orders_total{mode="paper",status="submitted"} 1`,
		`signaldesk_notify_failures_total 1`,
		`signaldesk_redis_circuit_breaker_state 1`,
		`signaldesk_market_open{class="us_equity"} 1`,
		`signaldesk_alert_subscribers 3`,
		`signaldesk_alert_drops_total 1`,
		`signaldesk_fetch_duration_seconds_count 1`,
		`signaldesk_compute_duration_seconds_count 1`,
	}
	for _, line := range want {
		if !strings.Contains(out, line) {
			t.Errorf("missing %q in scrape output", line)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RunFinished(OutcomeOK)
	m.ObserveFetch(time.Second, 1)
	m.ObserveCompute(time.Second)
	m.Signal("rsi", "SELL")
	m.Order("live", OrderFailed)
	m.NotifyFailed()
	m.SetBreakerState(2)
	m.SetMarketOpen("crypto", false)
	m.SetAlertSubscribers(1)
	m.AlertDropped()
}

func TestServer_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RunFinished(OutcomeFetchErr)

	srv := NewServer(":0", reg, NewHealthStatus("paper"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `signaldesk_runs_total{outcome="fetch_error"} 1`) {
		t.Errorf("metrics output missing runs counter:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("healthz content type = %q", ct)
	}
}

// ────────────────────────────────────────────────────────────────
// Health
// ────────────────────────────────────────────────────────────────

func decodeHealth(t *testing.T, h *HealthStatus) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestHealth_BrokerOnly(t *testing.T) {
	h := NewHealthStatus("paper")

	code, resp := decodeHealth(t, h)
	if code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Errorf("before any check: code=%d status=%s", code, resp.Status)
	}

	h.CheckBroker(context.Background(), func(context.Context) error { return nil })
	code, resp = decodeHealth(t, h)
	if code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("healthy broker: code=%d status=%s", code, resp.Status)
	}
	if resp.Mode != "paper" {
		t.Errorf("mode = %q", resp.Mode)
	}
}

func TestHealth_DegradedWhenEnabledStoreFails(t *testing.T) {
	h := NewHealthStatus("live")
	h.EnableRedis()
	h.CheckBroker(context.Background(), func(context.Context) error { return nil })

	code, resp := decodeHealth(t, h)
	if code != http.StatusServiceUnavailable || resp.Status != "degraded" {
		t.Errorf("code=%d status=%s, want 503 degraded", code, resp.Status)
	}
}

func TestHealth_BrokerErrorReported(t *testing.T) {
	h := NewHealthStatus("live")
	h.CheckBroker(context.Background(), func(context.Context) error { return errors.New("401 unauthorized") })

	_, resp := decodeHealth(t, h)
	if resp.BrokerOK || resp.BrokerError != "401 unauthorized" {
		t.Errorf("broker_ok=%v broker_error=%q", resp.BrokerOK, resp.BrokerError)
	}
}

func TestHealth_SQLiteAndRunOutcome(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	h := NewHealthStatus("paper")
	h.EnableSQLite()
	h.CheckAll(context.Background(), Probes{
		SQLite: db,
		Broker: func(context.Context) error { return nil },
	})
	h.RecordRun(OutcomeOK)

	code, resp := decodeHealth(t, h)
	if code != http.StatusOK {
		t.Errorf("code = %d, want 200 (%+v)", code, resp)
	}
	if !resp.SQLiteOK {
		t.Error("expected sqlite_ok")
	}
	if resp.LastRunOutcome != OutcomeOK || resp.LastRunAt == "" {
		t.Errorf("last run = %q at %q", resp.LastRunOutcome, resp.LastRunAt)
	}
}
