package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"signaldesk/config"
	"signaldesk/internal/analysis"
	"signaldesk/internal/markethours"
	"signaldesk/internal/model"
	"signaldesk/internal/strategy"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Alpaca.APIKey = ""
	cfg.Alpaca.APISecret = ""
	cfg.Storage.BarSource = config.SourceSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "data", "signaldesk.db")
	cfg.Storage.JournalOrders = true
	cfg.Trading.Paper = true
	cfg.Trading.SlippageBps = 0
	cfg.Redis.Enabled = false
	cfg.Notify.Log = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

// ────────────────────────────────────────────────────────────────────────
// Defaults
// ────────────────────────────────────────────────────────────────────────

func TestDefaults(t *testing.T) {
	cfg := offlineConfig(t)
	d, err := Defaults(cfg)
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if d.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", d.Symbol)
	}
	if d.Timeframe != model.OneDay {
		t.Errorf("timeframe = %v, want 1Day", d.Timeframe)
	}
	if d.Strategy != strategy.KindBollingerTouch {
		t.Errorf("strategy = %q", d.Strategy)
	}
	if !d.Qty.Equal(decimal.NewFromInt(1)) {
		t.Errorf("qty = %s, want 1", d.Qty)
	}
	if d.Thresholds != cfg.Thresholds() {
		t.Errorf("thresholds = %+v", d.Thresholds)
	}
}

func TestDefaults_Errors(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Analysis.Strategy = "martingale"
	if _, err := Defaults(cfg); err == nil {
		t.Error("unknown strategy accepted")
	}

	cfg = offlineConfig(t)
	cfg.Analysis.DefaultTimeframe = "3Weeks"
	if _, err := Defaults(cfg); err == nil {
		t.Error("bad timeframe accepted")
	}
}

// ────────────────────────────────────────────────────────────────────────
// Providers
// ────────────────────────────────────────────────────────────────────────

func TestProvideBarSource(t *testing.T) {
	cfg := offlineConfig(t)
	client := ProvideAlpacaClient(cfg)

	if _, err := ProvideBarSource(cfg, client, nil); err == nil {
		t.Error("sqlite source without store accepted")
	}

	cfg.Storage.BarSource = "ftp"
	if _, err := ProvideBarSource(cfg, client, nil); err == nil {
		t.Error("unknown source accepted")
	}

	cfg.Storage.BarSource = config.SourceAlpaca
	if src, err := ProvideBarSource(cfg, client, nil); err != nil || src == nil {
		t.Errorf("alpaca source = %v, %v", src, err)
	}
}

func TestProvideExecutor(t *testing.T) {
	cfg := offlineConfig(t)
	client := ProvideAlpacaClient(cfg)

	exec, paper := ProvideExecutor(cfg, client, nil)
	if exec.Mode() != "paper" || paper == nil {
		t.Errorf("paper mode: exec=%s paper=%v", exec.Mode(), paper)
	}

	cfg.Trading.Paper = false
	exec, paper = ProvideExecutor(cfg, client, nil)
	if exec.Mode() != "live" || paper != nil {
		t.Errorf("live mode: exec=%s paper=%v", exec.Mode(), paper)
	}
}

func TestProvideHours(t *testing.T) {
	cfg := offlineConfig(t)
	if _, ok := ProvideHours(cfg, ProvideAlpacaClient(cfg)).(markethours.Calendar); !ok {
		t.Error("no credentials should use the calendar")
	}
	cfg.Alpaca.APIKey = "key"
	if _, ok := ProvideHours(cfg, ProvideAlpacaClient(cfg)).(*markethours.BrokerClock); !ok {
		t.Error("credentials should use the broker clock")
	}
}

func TestProvideNotifier_NoneConfigured(t *testing.T) {
	cfg := offlineConfig(t)
	n, pub, err := ProvideNotifier(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("ProvideNotifier: %v", err)
	}
	if n != nil || pub != nil {
		t.Errorf("expected no notifier, got %v %v", n, pub)
	}
}

// ────────────────────────────────────────────────────────────────────────
// Offline end to end: SQLite bars, paper fills, journal
// ────────────────────────────────────────────────────────────────────────

func TestNew_OfflinePaper(t *testing.T) {
	cfg := offlineConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if a.Store == nil || a.Paper == nil || a.Live == nil {
		t.Fatalf("store=%v paper=%v live=%v", a.Store, a.Paper, a.Live)
	}

	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 30)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.Bar{TS: end.AddDate(0, 0, i-30), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	if _, err := a.Store.SaveBars(ctx, "AAPL", model.OneDay, bars); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}

	rep, err := a.Service.Run(ctx, analysis.Request{Symbol: "AAPL", End: end})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Bars != 30 {
		t.Errorf("bars = %d, want 30", rep.Bars)
	}
	if rep.Order != nil {
		t.Errorf("auto trade is off, got order %+v", rep.Order)
	}

	ack, err := a.Service.PlaceOrder(ctx, analysis.OrderCommand{
		Symbol: "AAPL", Side: "buy", Qty: decimal.NewFromInt(2), RefPrice: 129,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if ack.Status != "filled" {
		t.Errorf("status = %q, want filled", ack.Status)
	}

	recs, err := a.Store.ListOrders(ctx, 10)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(recs) != 1 || recs[0].Mode != "paper" || recs[0].Symbol != "AAPL" {
		t.Errorf("journal = %+v", recs)
	}
	if len(a.Paper.GetFills()) != 1 {
		t.Errorf("paper fills = %d, want 1", len(a.Paper.GetFills()))
	}
}
