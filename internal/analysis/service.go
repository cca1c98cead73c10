// Package analysis runs one fetch -> compute -> evaluate -> (optional) order
// cycle for a symbol. Runs share no state beyond their collaborators.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"signaldesk/internal/execution"
	"signaldesk/internal/indicator"
	"signaldesk/internal/logger"
	"signaldesk/internal/markethours"
	"signaldesk/internal/metrics"
	"signaldesk/internal/model"
	"signaldesk/internal/notification"
	"signaldesk/internal/strategy"
)

// Report is the outcome of a successful run.
type Report struct {
	TraceID   string          `json:"trace_id"`
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	Strategy  strategy.Kind   `json:"strategy"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Bars      int             `json:"bars"`

	Latest  strategy.Decision   `json:"latest"`
	Signals []strategy.Decision `json:"signals"`
	Last    indicator.Row       `json:"last"`
	Frame   *indicator.Frame    `json:"frame,omitempty"`

	// Decisions holds every bar's verdict, HOLD included, when the request
	// sets AllBars.
	Decisions []strategy.Decision `json:"decisions,omitempty"`

	Market     string `json:"market"`
	MarketOpen bool   `json:"market_open"`

	Notified     bool            `json:"notified"`
	Order        *model.OrderAck `json:"order,omitempty"`
	OrderSkipped string          `json:"order_skipped,omitempty"`
	OrderFailure string          `json:"order_error,omitempty"`
	OrderErr     *OrderError     `json:"-"`
}

// Options wires a Service. Only Source is required; zero Defaults fields
// fall back to DefaultDefaults.
type Options struct {
	Source   model.BarSource
	Executor execution.Executor    // nil disables orders
	Notifier notification.Notifier // nil disables alerts
	Hours    markethours.Checker   // nil: built-in NYSE calendar
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Defaults Defaults
	Logger   *slog.Logger
}

// Service executes analysis runs.
type Service struct {
	source   model.BarSource
	exec     execution.Executor
	notifier notification.Notifier
	hours    markethours.Checker
	prom     *metrics.Metrics
	health   *metrics.HealthStatus
	defaults Defaults
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, errors.New("analysis: bar source is required")
	}
	if opts.Hours == nil {
		opts.Hours = markethours.Calendar{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		source:   opts.Source,
		exec:     opts.Executor,
		notifier: opts.Notifier,
		hours:    opts.Hours,
		prom:     opts.Metrics,
		health:   opts.Health,
		defaults: opts.Defaults.withFallbacks(),
		log:      opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Defaults returns the values applied to empty request fields.
func (s *Service) Defaults() Defaults { return s.defaults }

// Mode returns the executor mode, or "disabled" without one.
func (s *Service) Mode() string {
	if s.exec == nil {
		return "disabled"
	}
	return s.exec.Mode()
}

func (s *Service) finish(outcome string) {
	s.prom.RunFinished(outcome)
	if s.health != nil {
		s.health.RecordRun(outcome)
	}
}

// Run fetches bars for the request window, computes the indicator frame,
// evaluates the strategy on every bar and acts on the latest signal.
//
// Returned errors wrap ErrInvalidRequest or ErrNoData, or are a *FetchError.
// Order and notification failures never fail the run.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	now := s.now()
	p, err := resolve(req, s.defaults, now)
	if err != nil {
		s.finish(metrics.OutcomeInvalid)
		return nil, err
	}

	traceID := logger.GenerateTraceID(p.symbol, now)
	ctx = logger.WithTraceID(ctx, traceID)
	log := logger.FromContext(ctx, s.log)

	start := p.end.AddDate(0, 0, -p.lookback)
	log.Info("analysis started",
		"symbol", p.symbol, "timeframe", p.timeframe.String(), "strategy", p.strategy.Kind(),
		"start", start, "end", p.end, "auto_trade", p.autoTrade)

	fetchStart := time.Now()
	bars, err := s.source.FetchBars(ctx, model.BarsRequest{
		Symbol:    p.symbol,
		Timeframe: p.timeframe,
		Start:     start,
		End:       p.end,
	})
	s.prom.ObserveFetch(time.Since(fetchStart), len(bars))
	if err != nil {
		s.finish(metrics.OutcomeFetchErr)
		log.Error("bar fetch failed", "symbol", p.symbol, "error", err)
		return nil, &FetchError{Symbol: p.symbol, Timeframe: p.timeframe, Err: err}
	}
	if len(bars) == 0 {
		s.finish(metrics.OutcomeNoData)
		log.Warn("no bars returned", "symbol", p.symbol, "start", start, "end", p.end)
		return nil, fmt.Errorf("%w: %s %s from %s to %s", ErrNoData, p.symbol, p.timeframe,
			start.Format(time.DateOnly), p.end.Format(time.DateOnly))
	}

	series, err := model.NewSeries(p.symbol, p.timeframe, bars)
	if err != nil {
		s.finish(metrics.OutcomeFetchErr)
		return nil, &FetchError{Symbol: p.symbol, Timeframe: p.timeframe, Err: err}
	}

	computeStart := time.Now()
	frame, err := indicator.Compute(series, p.indicators)
	if err != nil {
		s.finish(metrics.OutcomeCompute)
		return nil, fmt.Errorf("compute indicators: %w", err)
	}
	ev := strategy.NewEvaluator(p.strategy)
	latest := ev.Latest(frame)
	var decisions, signals []strategy.Decision
	if p.allBars {
		decisions = ev.Each(frame)
		signals = strategy.Actionable(decisions)
	} else {
		signals = ev.Scan(frame)
	}
	s.prom.ObserveCompute(time.Since(computeStart))
	s.prom.Signal(string(latest.Strategy), string(latest.Signal))

	last, _ := frame.Row(frame.Len() - 1)
	rep := &Report{
		TraceID:   traceID,
		Symbol:    p.symbol,
		Timeframe: p.timeframe,
		Strategy:  p.strategy.Kind(),
		Start:     start,
		End:       p.end,
		Bars:      frame.Len(),
		Latest:    latest,
		Signals:   signals,
		Decisions: decisions,
		Last:      last,
		Market:    markethours.Status(model.ClassifySymbol(p.symbol), now),
	}
	if rep.Signals == nil {
		rep.Signals = []strategy.Decision{}
	}
	if p.includeFrame {
		rep.Frame = frame
	}

	class := model.ClassifySymbol(p.symbol)
	rep.MarketOpen = s.hours.IsOpen(ctx, class, now)
	s.prom.SetMarketOpen(string(class), rep.MarketOpen)

	if latest.Signal.Actionable() {
		rep.Notified = s.notifySignal(ctx, log, latest, p.symbol)
	}

	switch {
	case !p.autoTrade:
	case !latest.Signal.Actionable():
		rep.OrderSkipped = "no actionable signal"
	case s.exec == nil:
		rep.OrderSkipped = "order execution disabled"
	case !rep.MarketOpen:
		rep.OrderSkipped = "market closed"
		s.prom.Order(s.exec.Mode(), metrics.OrderMarketClosed)
		log.Info("auto-trade skipped: market closed", "symbol", p.symbol, "signal", latest.Signal)
	default:
		spec := p.order
		spec.Side = sideFor(latest.Signal)
		spec.RefPrice = latest.Close
		ack, oerr := s.submit(ctx, log, spec)
		if oerr != nil {
			rep.OrderErr = oerr
			rep.OrderFailure = oerr.Error()
		} else {
			rep.Order = &ack
		}
	}

	s.finish(metrics.OutcomeOK)
	log.Info("analysis complete",
		"symbol", p.symbol, "bars", rep.Bars, "signal", latest.Signal, "reason", latest.Reason,
		"signals_in_window", len(signals), "market_open", rep.MarketOpen)
	return rep, nil
}

func sideFor(sig strategy.Signal) model.Side {
	if sig == strategy.SignalSell {
		return model.SideSell
	}
	return model.SideBuy
}

// notifySignal sends the latest actionable decision. Failures are logged.
func (s *Service) notifySignal(ctx context.Context, log *slog.Logger, d strategy.Decision, symbol string) bool {
	if s.notifier == nil {
		return false
	}
	alert := notification.Alert{
		Level:    notification.AlertInfo,
		Title:    fmt.Sprintf("%s signal for %s", d.Signal, symbol),
		Message:  fmt.Sprintf("%s at %.2f: %s", d.Strategy, d.Close, d.Reason),
		Symbol:   symbol,
		Signal:   string(d.Signal),
		Strategy: string(d.Strategy),
		Price:    d.Close,
		TS:       d.TS,
	}
	if err := s.notifier.Send(ctx, alert); err != nil {
		s.prom.NotifyFailed()
		log.Warn("signal notification failed", "symbol", symbol, "error", err)
		return false
	}
	return true
}

// submit builds and places one order. Failures come back as *OrderError
// and are also sent as a critical alert.
func (s *Service) submit(ctx context.Context, log *slog.Logger, spec execution.OrderSpec) (model.OrderAck, *OrderError) {
	mode := s.exec.Mode()

	req, err := execution.BuildOrder(spec)
	if err != nil {
		s.prom.Order(mode, metrics.OrderFailed)
		return model.OrderAck{}, &OrderError{Symbol: spec.Symbol, Side: spec.Side, Err: err}
	}

	ack, err := s.exec.Submit(ctx, req)
	if err != nil {
		s.prom.Order(mode, metrics.OrderFailed)
		oerr := &OrderError{Symbol: req.Symbol, Side: req.Side, Err: err}
		log.Error("order failed", "mode", mode, "symbol", req.Symbol, "side", req.Side,
			"client_order_id", req.ClientOrderID, "error", err)
		if s.notifier != nil {
			alert := notification.Alert{
				Level:   notification.AlertCritical,
				Title:   "Order failed",
				Message: oerr.Error(),
				Symbol:  req.Symbol,
				Signal:  string(req.Side),
			}
			if nerr := s.notifier.Send(ctx, alert); nerr != nil {
				s.prom.NotifyFailed()
			}
		}
		return model.OrderAck{}, oerr
	}

	s.prom.Order(mode, metrics.OrderSubmitted)
	log.Info("order placed", "mode", mode, "order_id", ack.OrderID, "symbol", ack.Symbol,
		"side", ack.Side, "qty", ack.Qty.String(), "status", ack.Status)
	return ack, nil
}
