// cmd/barsync copies historical bars from Alpaca into the local SQLite store
// so analyses can run offline with storage.bar_source=sqlite. Each
// symbol/timeframe resumes from the newest stored bar.
//
// Usage:
//
//	go run ./cmd/barsync --symbols=AAPL,BTC/USD --tf=1Day,1Hour --days=365
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"signaldesk/config"
	"signaldesk/internal/app"
	"signaldesk/internal/logger"
	"signaldesk/internal/marketdata"
	"signaldesk/internal/model"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: analysis.symbols)")
	tfFlag := flag.String("tf", "1Day", "Comma-separated timeframes")
	days := flag.Int("days", 365, "Backfill window for symbols with no stored bars")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config load failed", err)
	}
	cfg.Storage.BarSource = config.SourceAlpaca
	level, _ := logger.ParseLevel(cfg.Logging.Level)
	slog.SetDefault(logger.New(logger.Options{Service: "barsync", Level: level, Format: cfg.Logging.Format}))
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	symbols := cfg.Analysis.Symbols
	if *symbolsFlag != "" {
		symbols = nil
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
	}
	var tfs []model.Timeframe
	for _, s := range strings.Split(*tfFlag, ",") {
		tf, err := model.ParseTimeframe(s)
		if err != nil {
			fatal("bad timeframe", err)
		}
		tfs = append(tfs, tf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	store, err := app.ProvideStore(cfg)
	if err != nil {
		fatal("sqlite open failed", err)
	}
	defer store.Close()
	source := marketdata.NewAlpacaSource(app.ProvideAlpacaClient(cfg), cfg.Alpaca.Feed)

	now := time.Now().UTC()
	total, failed := 0, 0
	for _, sym := range symbols {
		for _, tf := range tfs {
			if ctx.Err() != nil {
				break
			}
			start := now.AddDate(0, 0, -*days)
			if last, ok, err := store.LastTimestamp(ctx, sym, tf); err != nil {
				slog.Error("last timestamp", "symbol", sym, "timeframe", tf.String(), "error", err)
				failed++
				continue
			} else if ok {
				start = last.Add(tf.Duration())
			}
			if !start.Before(now) {
				continue
			}

			bars, err := source.FetchBars(ctx, model.BarsRequest{Symbol: sym, Timeframe: tf, Start: start, End: now})
			if err != nil {
				slog.Error("fetch failed", "symbol", sym, "timeframe", tf.String(), "error", err)
				failed++
				continue
			}
			n, err := store.SaveBars(ctx, sym, tf, bars)
			if err != nil {
				slog.Error("save failed", "symbol", sym, "timeframe", tf.String(), "error", err)
				failed++
				continue
			}
			total += n
			slog.Info("synced", "symbol", sym, "timeframe", tf.String(), "from", start, "bars", n)
		}
	}

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║           BAR SYNC COMPLETE          ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbols:      %-21d ║\n", len(symbols))
	fmt.Printf("║  Timeframes:   %-21d ║\n", len(tfs))
	fmt.Printf("║  Bars saved:   %-21d ║\n", total)
	fmt.Printf("║  Failures:     %-21d ║\n", failed)
	fmt.Println("╚══════════════════════════════════════╝")
	if failed > 0 {
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
