// cmd/analyze runs one analysis from the command line and prints the
// signal history, optionally exporting the full indicator frame.
//
// Usage:
//
//	go run ./cmd/analyze --symbol=TSLA --tf=1Hour --days=30 --strategy=rsi --export=out/tsla
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"signaldesk/config"
	"signaldesk/internal/analysis"
	"signaldesk/internal/app"
	"signaldesk/internal/export"
	"signaldesk/internal/indicator"
	"signaldesk/internal/logger"
	"signaldesk/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	symbol := flag.String("symbol", "", "Symbol, e.g. AAPL or BTC/USD (default: analysis.default_symbol)")
	tf := flag.String("tf", "", "Timeframe: 1Min, 5Min, 15Min, 1Hour, 1Day")
	days := flag.Int("days", 0, "Lookback in calendar days")
	strat := flag.String("strategy", "", "Strategy: "+strings.Join(kindNames(), ", "))
	source := flag.String("source", "", "Bar source: alpaca or sqlite")
	autoTrade := flag.Bool("auto-trade", false, "Submit a market order on an actionable latest signal")
	all := flag.Bool("all", false, "Print HOLD bars as well")
	exportPath := flag.String("export", "", "Write the indicator frame to this path (extension added)")
	exportFormat := flag.String("format", "csv", "Export format: csv, json or parquet")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config load failed", err)
	}
	if *source != "" {
		cfg.Storage.BarSource = *source
	}
	level, _ := logger.ParseLevel(cfg.Logging.Level)
	slog.SetDefault(logger.New(logger.Options{Service: "analyze", Level: level, Format: "text", Output: os.Stderr}))
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	var saver export.Saver
	if *exportPath != "" {
		if saver, err = export.New(*exportFormat); err != nil {
			fatal("export", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	a, err := app.New(ctx, cfg, app.Options{NoOrders: !*autoTrade})
	if err != nil {
		fatal("startup failed", err)
	}
	defer a.Close()

	req := analysis.Request{
		Symbol:       *symbol,
		Timeframe:    *tf,
		LookbackDays: *days,
		Strategy:     *strat,
		IncludeFrame: saver != nil,
		AllBars:      *all,
	}
	if *autoTrade {
		req.AutoTrade = autoTrade
	}

	rep, err := a.Service.Run(ctx, req)
	if err != nil {
		fatal("analysis failed", err)
	}

	rows := rep.Signals
	if *all {
		rows = rep.Decisions
	}
	for _, d := range rows {
		fmt.Printf("  %s  %-4s  close=%-10.2f %s\n", d.TS.Format("2006-01-02 15:04"), d.Signal, d.Close, d.Reason)
	}

	exported := "-"
	if saver != nil && rep.Frame != nil {
		path := *exportPath
		if filepath.Ext(path) == "" {
			path += "." + saver.Extension()
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fatal("export", err)
			}
		}
		if err := saver.Save(export.FromFrame(rep.Frame, rep.Signals), path); err != nil {
			fatal("export", err)
		}
		exported = path
	}

	order := rep.OrderSkipped
	switch {
	case rep.Order != nil:
		order = fmt.Sprintf("%s %s", rep.Order.Status, rep.Order.OrderID)
	case rep.OrderFailure != "":
		order = "error: " + rep.OrderFailure
	case order == "":
		order = "-"
	}

	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║              ANALYSIS COMPLETE                 ║")
	fmt.Println("╠════════════════════════════════════════════════╣")
	fmt.Printf("║  Symbol:       %-31s ║\n", rep.Symbol)
	fmt.Printf("║  Timeframe:    %-31s ║\n", rep.Timeframe)
	fmt.Printf("║  Strategy:     %-31s ║\n", rep.Strategy)
	fmt.Printf("║  Bars:         %-31d ║\n", rep.Bars)
	fmt.Printf("║  Signals:      %-31d ║\n", len(rep.Signals))
	fmt.Printf("║  Last close:   %-31.2f ║\n", rep.Last.Close)
	fmt.Printf("║  BB lower/up:  %-31s ║\n", fmtPoint(rep.Last.BBLower)+" / "+fmtPoint(rep.Last.BBUpper))
	fmt.Printf("║  RSI:          %-31s ║\n", fmtPoint(rep.Last.RSI))
	fmt.Printf("║  Latest:       %-31s ║\n", string(rep.Latest.Signal))
	fmt.Printf("║  Market:       %-31s ║\n", rep.Market)
	fmt.Printf("║  Order:        %-31s ║\n", truncate(order, 31))
	fmt.Printf("║  Export:       %-31s ║\n", truncate(exported, 31))
	fmt.Println("╚════════════════════════════════════════════════╝")
}

func fmtPoint(p indicator.Point) string {
	if !p.Ready {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", p.Value)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func kindNames() []string {
	kinds := strategy.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
