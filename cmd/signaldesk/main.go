package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signaldesk/config"
	"signaldesk/internal/api"
	"signaldesk/internal/app"
	"signaldesk/internal/logger"
	"signaldesk/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIGNALDESK_CONFIG"), "path to config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(logger.Options{Service: "signaldesk", Level: level, Format: cfg.Logging.Format}))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	mode := "live"
	if cfg.Trading.Paper {
		mode = "paper"
	}
	health := metrics.NewHealthStatus(mode)

	// ---- Wire services ----
	a, err := app.New(ctx, cfg, app.Options{Metrics: prom, Health: health})
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	probes := metrics.Probes{Broker: func(ctx context.Context) error {
		_, err := a.Alpaca.GetClock(ctx)
		return err
	}}
	if cfg.Alpaca.APIKey == "" {
		// offline paper mode against the local bar store
		probes.Broker = func(context.Context) error { return nil }
	} else {
		acctCtx, acctCancel := context.WithTimeout(ctx, 10*time.Second)
		acct, err := a.Alpaca.GetAccount(acctCtx)
		acctCancel()
		if err != nil {
			slog.Warn("broker credentials check failed", "error", err)
		} else {
			slog.Info("broker account", "status", acct.Status, "currency", acct.Currency,
				"buying_power", acct.BuyingPower, "trading_blocked", acct.TradingBlocked)
		}
	}
	if a.Store != nil {
		health.EnableSQLite()
		probes.SQLite = a.Store.DB()
	}
	if a.Publisher != nil {
		health.EnableRedis()
		probes.Redis = a.Publisher.Client()
	}
	health.StartLivenessChecker(ctx, probes, 15*time.Second)

	var metricsSrv *metrics.Server
	var metricsHandler http.Handler = promhttp.Handler()
	if cfg.HTTP.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.HTTP.MetricsAddr, prometheus.DefaultGatherer, health)
		metricsSrv.Start()
		metricsHandler = nil
	}

	// ---- API ----
	opts := api.Options{
		Runner:     a.Service,
		Health:     health,
		Metrics:    metricsHandler,
		Symbols:    cfg.Analysis.Symbols,
		TOTPSecret: cfg.Trading.TOTPSecret,
		Live:       a.Live,
	}
	if a.Store != nil && cfg.Storage.JournalOrders {
		opts.Orders = a.Store
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(opts),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		slog.Info("signaldesk listening", "addr", cfg.HTTP.Addr, "mode", a.Service.Mode(),
			"bar_source", cfg.Storage.BarSource, "symbols", cfg.Analysis.Symbols)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			slog.Error("metrics shutdown", "error", err)
		}
	}
	slog.Info("signaldesk stopped")
}
