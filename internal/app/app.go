// Package app wires configuration into the services shared by the
// signaldesk binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"signaldesk/config"
	"signaldesk/internal/analysis"
	"signaldesk/internal/bus"
	"signaldesk/internal/execution"
	"signaldesk/internal/marketdata"
	"signaldesk/internal/markethours"
	"signaldesk/internal/metrics"
	"signaldesk/internal/model"
	"signaldesk/internal/notification"
	"signaldesk/internal/strategy"
	redisstore "signaldesk/internal/store/redis"
	sqlitestore "signaldesk/internal/store/sqlite"
	"signaldesk/pkg/alpaca"
)

// App holds the wired collaborators. Close releases the stores.
type App struct {
	Config    *config.Config
	Alpaca    *alpaca.Client
	Store     *sqlitestore.Store       // nil unless the sqlite source or journal is on
	Publisher *redisstore.Publisher    // nil unless redis is enabled
	Live      *bus.Bus
	Executor  execution.Executor
	Paper     *execution.PaperExecutor // set in paper mode
	Service   *analysis.Service
}

// Options tweaks what New builds.
type Options struct {
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	// NoOrders builds the service without an executor.
	NoOrders bool
}

// ProvideAlpacaClient creates the broker client from cfg.
func ProvideAlpacaClient(cfg *config.Config) *alpaca.Client {
	return alpaca.NewClient(alpaca.Config{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
		BaseURL:   cfg.Alpaca.BaseURL,
		DataURL:   cfg.Alpaca.DataURL,
		Feed:      cfg.Alpaca.Feed,
		Timeout:   cfg.Alpaca.Timeout,
		Debug:     cfg.Logging.Level == "debug",
	})
}

// ProvideStore opens the SQLite store, creating its directory.
func ProvideStore(cfg *config.Config) (*sqlitestore.Store, error) {
	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return sqlitestore.New(sqlitestore.Config{DBPath: cfg.Storage.SQLitePath})
}

// ProvideBarSource picks the bar source named by storage.bar_source.
func ProvideBarSource(cfg *config.Config, client *alpaca.Client, store *sqlitestore.Store) (model.BarSource, error) {
	switch cfg.Storage.BarSource {
	case config.SourceSQLite:
		if store == nil {
			return nil, errors.New("sqlite bar source needs an open store")
		}
		return store, nil
	case config.SourceAlpaca, "":
		return marketdata.NewAlpacaSource(client, cfg.Alpaca.Feed), nil
	}
	return nil, fmt.Errorf("unknown bar source %q", cfg.Storage.BarSource)
}

// ProvideExecutor returns the paper or live executor, journaled to store
// when order journaling is on.
func ProvideExecutor(cfg *config.Config, client *alpaca.Client, store *sqlitestore.Store) (execution.Executor, *execution.PaperExecutor) {
	var (
		exec  execution.Executor
		paper *execution.PaperExecutor
	)
	if cfg.Trading.Paper {
		paper = execution.NewPaperExecutor(cfg.Trading.SlippageBps)
		exec = paper
	} else {
		exec = execution.NewBrokerExecutor(client)
	}
	if cfg.Storage.JournalOrders && store != nil {
		exec = execution.WithJournal(exec, store)
	}
	return exec, paper
}

// ProvideLiveFeed creates the in-process alert bus backing the live
// WebSocket feed.
func ProvideLiveFeed(m *metrics.Metrics) *bus.Bus {
	b := bus.New(64, 500)
	b.OnDrop = func(_ *bus.Subscription, _ bus.Event) { m.AlertDropped() }
	b.OnSubscribers = m.SetAlertSubscribers
	return b
}

// ProvideNotifier fans alerts out to every configured channel and to live,
// when non-nil. The Redis publisher, when enabled, is returned as well so
// callers can read alerts back and close it.
func ProvideNotifier(ctx context.Context, cfg *config.Config, m *metrics.Metrics, live *bus.Bus) (notification.Notifier, *redisstore.Publisher, error) {
	var multi notification.Multi
	if live != nil {
		multi = append(multi, live)
	}
	if cfg.Notify.Log {
		multi = append(multi, notification.NewLogNotifier())
	}
	if cfg.Notify.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.Telegram.Enabled {
		multi = append(multi, notification.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}

	var pub *redisstore.Publisher
	if cfg.Redis.Enabled {
		var err error
		pub, err = redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		pub.Breaker().OnStateChange = func(from, to redisstore.State) {
			m.SetBreakerState(int(to))
			slog.Warn("redis circuit breaker state change", "from", from.String(), "to", to.String())
		}
		multi = append(multi, pub)
	}

	if len(multi) == 0 {
		return nil, pub, nil
	}
	return multi, pub, nil
}

// ProvideHours uses the broker clock when credentials are configured and
// the built-in calendar otherwise.
func ProvideHours(cfg *config.Config, client *alpaca.Client) markethours.Checker {
	if cfg.Alpaca.APIKey == "" {
		return markethours.Calendar{}
	}
	return markethours.NewBrokerClock(client)
}

// Defaults converts the analysis and trading sections into run defaults.
func Defaults(cfg *config.Config) (analysis.Defaults, error) {
	tf, err := model.ParseTimeframe(cfg.Analysis.DefaultTimeframe)
	if err != nil {
		return analysis.Defaults{}, err
	}
	d := analysis.Defaults{
		Symbol:        cfg.Analysis.DefaultSymbol,
		Timeframe:     tf,
		LookbackDays:  cfg.Analysis.LookbackDays,
		Indicators:    cfg.Analysis.Indicators,
		Thresholds:    cfg.Thresholds(),
		AutoTrade:     cfg.Trading.AutoTrade,
		Qty:           decimal.NewFromFloat(cfg.Trading.Qty),
		TimeInForce:   model.TimeInForce(cfg.Trading.TimeInForce),
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
	}
	kind, err := strategy.ParseKind(cfg.Analysis.Strategy)
	if err != nil {
		return analysis.Defaults{}, err
	}
	d.Strategy = kind
	return d, nil
}

// New wires every collaborator from cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Alpaca: ProvideAlpacaClient(cfg)}

	if cfg.Storage.BarSource == config.SourceSQLite || cfg.Storage.JournalOrders {
		store, err := ProvideStore(cfg)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	source, err := ProvideBarSource(cfg, a.Alpaca, a.Store)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Live = ProvideLiveFeed(opts.Metrics)
	notifier, pub, err := ProvideNotifier(ctx, cfg, opts.Metrics, a.Live)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Publisher = pub

	if !opts.NoOrders {
		a.Executor, a.Paper = ProvideExecutor(cfg, a.Alpaca, a.Store)
	}

	defaults, err := Defaults(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service, err = analysis.New(analysis.Options{
		Source:   source,
		Executor: a.Executor,
		Notifier: notifier,
		Hours:    ProvideHours(cfg, a.Alpaca),
		Metrics:  opts.Metrics,
		Health:   opts.Health,
		Defaults: defaults,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the Redis and SQLite handles.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
