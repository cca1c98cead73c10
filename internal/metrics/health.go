package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ProbeFunc checks one dependency; nil error means healthy.
type ProbeFunc func(ctx context.Context) error

// HealthStatus tracks dependency health for the /health endpoint.
// Only enabled dependencies affect the overall status.
type HealthStatus struct {
	mu sync.RWMutex

	Mode string // "paper" or "live"

	RedisEnabled   bool
	RedisConnected bool
	RedisLatencyMs float64

	SQLiteEnabled   bool
	SQLiteOK        bool
	SQLiteLatencyMs float64

	BrokerOK        bool
	BrokerLatencyMs float64
	BrokerError     string

	LastRunAt      time.Time
	LastRunOutcome string

	LastCheckAt time.Time
	StartedAt   time.Time

	now func() time.Time
}

// NewHealthStatus returns a health status for the given execution mode.
func NewHealthStatus(mode string) *HealthStatus {
	h := &HealthStatus{Mode: mode, now: time.Now}
	h.StartedAt = h.now()
	return h
}

func (h *HealthStatus) EnableRedis() {
	h.mu.Lock()
	h.RedisEnabled = true
	h.mu.Unlock()
}

func (h *HealthStatus) EnableSQLite() {
	h.mu.Lock()
	h.SQLiteEnabled = true
	h.mu.Unlock()
}

// RecordRun stores the outcome of the most recent analysis run.
func (h *HealthStatus) RecordRun(outcome string) {
	h.mu.Lock()
	h.LastRunAt = h.now()
	h.LastRunOutcome = outcome
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := h.now()
	err := rdb.Ping(ctx).Err()
	latency := h.now().Sub(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := h.now()
	err := db.PingContext(ctx)
	latency := h.now().Sub(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// CheckBroker runs probe (typically a broker clock call).
func (h *HealthStatus) CheckBroker(ctx context.Context, probe ProbeFunc) {
	start := h.now()
	err := probe(ctx)
	latency := h.now().Sub(start)

	h.mu.Lock()
	h.BrokerOK = err == nil
	h.BrokerError = ""
	if err != nil {
		h.BrokerError = err.Error()
	}
	h.BrokerLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// Probes groups the dependencies checked by the liveness loop. Nil fields
// are skipped.
type Probes struct {
	Redis  *goredis.Client
	SQLite *sql.DB
	Broker ProbeFunc
}

// CheckAll runs every configured probe once.
func (h *HealthStatus) CheckAll(ctx context.Context, p Probes) {
	if p.Redis != nil {
		h.CheckRedis(ctx, p.Redis)
	}
	if p.SQLite != nil {
		h.CheckSQLite(ctx, p.SQLite)
	}
	if p.Broker != nil {
		h.CheckBroker(ctx, p.Broker)
	}
}

// StartLivenessChecker runs CheckAll immediately and then every interval
// until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, p Probes, interval time.Duration) {
	go func() {
		probe := func() {
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			h.CheckAll(probeCtx, p)
			cancel()
		}
		probe()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

type healthResponse struct {
	Status          string  `json:"status"`
	Mode            string  `json:"mode"`
	Uptime          string  `json:"uptime"`
	BrokerOK        bool    `json:"broker_ok"`
	BrokerLatencyMs float64 `json:"broker_latency_ms"`
	BrokerError     string  `json:"broker_error,omitempty"`
	RedisEnabled    bool    `json:"redis_enabled"`
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteEnabled   bool    `json:"sqlite_enabled"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	LastRunAt       string  `json:"last_run_at,omitempty"`
	LastRunOutcome  string  `json:"last_run_outcome,omitempty"`
	LastCheckAt     string  `json:"last_check_at,omitempty"`
}

// ServeHTTP reports overall health. The status is "degraded" (503) when
// the broker or any enabled store is failing, "unhealthy" when the broker
// and every enabled store fail together.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	failing, enabled := 0, 1
	if !h.BrokerOK {
		failing++
	}
	if h.RedisEnabled {
		enabled++
		if !h.RedisConnected {
			failing++
		}
	}
	if h.SQLiteEnabled {
		enabled++
		if !h.SQLiteOK {
			failing++
		}
	}

	overallStatus := "healthy"
	httpCode := http.StatusOK
	switch {
	case failing == enabled:
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	case failing > 0:
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	resp := healthResponse{
		Status:          overallStatus,
		Mode:            h.Mode,
		Uptime:          h.now().Sub(h.StartedAt).Round(time.Second).String(),
		BrokerOK:        h.BrokerOK,
		BrokerLatencyMs: h.BrokerLatencyMs,
		BrokerError:     h.BrokerError,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastRunOutcome:  h.LastRunOutcome,
	}
	if !h.LastRunAt.IsZero() {
		resp.LastRunAt = h.LastRunAt.Format(time.RFC3339)
	}
	if !h.LastCheckAt.IsZero() {
		resp.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(resp)
}
