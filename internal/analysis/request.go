package analysis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signaldesk/internal/execution"
	"signaldesk/internal/indicator"
	"signaldesk/internal/model"
	"signaldesk/internal/strategy"
)

// MaxLookbackDays bounds the fetch window of one run.
const MaxLookbackDays = 365

// Request describes one analysis run. Zero fields take the service defaults.
type Request struct {
	Symbol       string               `json:"symbol"`
	Timeframe    string               `json:"timeframe"`
	LookbackDays int                  `json:"lookback_days"`
	Strategy     string               `json:"strategy"`
	Indicators   *indicator.Config    `json:"indicators,omitempty"`
	Thresholds   *strategy.Thresholds `json:"thresholds,omitempty"`
	End          time.Time            `json:"end,omitempty"` // zero: now

	AutoTrade     *bool           `json:"auto_trade,omitempty"`
	Qty           decimal.Decimal `json:"qty"`
	TimeInForce   string          `json:"time_in_force,omitempty"`
	StopLossPct   *float64        `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64        `json:"take_profit_pct,omitempty"`

	IncludeFrame bool `json:"include_frame,omitempty"`
	AllBars      bool `json:"all_bars,omitempty"` // fill Report.Decisions
}

// Defaults are the values a Request falls back to.
type Defaults struct {
	Symbol        string              `json:"symbol"`
	Timeframe     model.Timeframe     `json:"timeframe"`
	LookbackDays  int                 `json:"lookback_days"`
	Strategy      strategy.Kind       `json:"strategy"`
	Indicators    indicator.Config    `json:"indicators"`
	Thresholds    strategy.Thresholds `json:"thresholds"`
	AutoTrade     bool                `json:"auto_trade"`
	Qty           decimal.Decimal     `json:"qty"`
	TimeInForce   model.TimeInForce   `json:"time_in_force,omitempty"`
	StopLossPct   float64             `json:"stop_loss_pct"`
	TakeProfitPct float64             `json:"take_profit_pct"`
}

// DefaultDefaults mirrors the dashboard's initial widget values.
func DefaultDefaults() Defaults {
	return Defaults{
		Symbol:       "AAPL",
		Timeframe:    model.OneDay,
		LookbackDays: 90,
		Strategy:     strategy.KindBollingerTouch,
		Indicators:   indicator.DefaultConfig(),
		Thresholds:   strategy.DefaultThresholds(),
		Qty:          decimal.NewFromInt(1),
	}
}

// withFallbacks fills zero fields of d from DefaultDefaults.
func (d Defaults) withFallbacks() Defaults {
	def := DefaultDefaults()
	if d.Symbol == "" {
		d.Symbol = def.Symbol
	}
	if d.Timeframe == (model.Timeframe{}) {
		d.Timeframe = def.Timeframe
	}
	if d.LookbackDays == 0 {
		d.LookbackDays = def.LookbackDays
	}
	if d.Strategy == "" {
		d.Strategy = def.Strategy
	}
	if d.Indicators == (indicator.Config{}) {
		d.Indicators = def.Indicators
	}
	if d.Thresholds == (strategy.Thresholds{}) {
		d.Thresholds = def.Thresholds
	}
	if d.Qty.IsZero() {
		d.Qty = def.Qty
	}
	return d
}

// plan is a validated Request with every default resolved.
type plan struct {
	symbol     string
	timeframe  model.Timeframe
	lookback   int
	strategy   strategy.Strategy
	thresholds strategy.Thresholds
	indicators indicator.Config
	end        time.Time

	autoTrade bool
	order     execution.OrderSpec

	includeFrame bool
	allBars      bool
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// resolve validates req against d. now stamps the window end when the
// request leaves it open.
func resolve(req Request, d Defaults, now time.Time) (plan, error) {
	p := plan{
		symbol:       model.NormalizeSymbol(req.Symbol),
		timeframe:    d.Timeframe,
		lookback:     req.LookbackDays,
		indicators:   d.Indicators,
		end:          req.End,
		autoTrade:    d.AutoTrade,
		includeFrame: req.IncludeFrame,
		allBars:      req.AllBars,
	}
	if p.symbol == "" {
		p.symbol = d.Symbol
	}
	if p.symbol == "" {
		return plan{}, invalid("symbol is required")
	}

	if req.Timeframe != "" {
		tf, err := model.ParseTimeframe(req.Timeframe)
		if err != nil {
			return plan{}, invalid("%v", err)
		}
		p.timeframe = tf
	}
	if err := p.timeframe.Validate(); err != nil {
		return plan{}, invalid("%v", err)
	}

	if p.lookback == 0 {
		p.lookback = d.LookbackDays
	}
	if p.lookback < 1 || p.lookback > MaxLookbackDays {
		return plan{}, invalid("lookback must be 1-%d days, got %d", MaxLookbackDays, p.lookback)
	}

	if p.end.IsZero() {
		p.end = now
	}

	kind := d.Strategy
	if req.Strategy != "" {
		k, err := strategy.ParseKind(req.Strategy)
		if err != nil {
			return plan{}, invalid("%v", err)
		}
		kind = k
	}
	th := d.Thresholds
	if req.Thresholds != nil {
		th = mergeThresholds(*req.Thresholds, d.Thresholds)
	}
	s, err := strategy.New(kind, th)
	if err != nil {
		return plan{}, invalid("%v", err)
	}
	p.strategy, p.thresholds = s, th

	if req.Indicators != nil {
		p.indicators = mergeIndicators(*req.Indicators, d.Indicators)
	}
	if err := p.indicators.Validate(); err != nil {
		return plan{}, invalid("%v", err)
	}

	if req.AutoTrade != nil {
		p.autoTrade = *req.AutoTrade
	}
	spec, err := orderSpec(p.symbol, "", req.Qty, req.TimeInForce, req.StopLossPct, req.TakeProfitPct, d)
	if err != nil {
		return plan{}, err
	}
	if p.autoTrade && !spec.Qty.IsPositive() {
		return plan{}, invalid("qty must be positive when auto-trade is on, got %s", spec.Qty)
	}
	p.order = spec

	return p, nil
}

// mergeIndicators takes every zero field of c from def, so a request can
// override a single window. A zero band width therefore means the default.
func mergeIndicators(c, def indicator.Config) indicator.Config {
	if c.BollingerWindow == 0 {
		c.BollingerWindow = def.BollingerWindow
	}
	if c.BollingerK == 0 {
		c.BollingerK = def.BollingerK
	}
	if c.ShortMA == 0 {
		c.ShortMA = def.ShortMA
	}
	if c.LongMA == 0 {
		c.LongMA = def.LongMA
	}
	if c.EMASpan == 0 {
		c.EMASpan = def.EMASpan
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = def.RSIPeriod
	}
	if c.RSISmoothing == "" {
		c.RSISmoothing = def.RSISmoothing
	}
	return c
}

// mergeThresholds fills a zero bound from def, so {"oversold": 25} keeps the
// default overbought level.
func mergeThresholds(t, def strategy.Thresholds) strategy.Thresholds {
	if t.Oversold == 0 {
		t.Oversold = def.Oversold
	}
	if t.Overbought == 0 {
		t.Overbought = def.Overbought
	}
	return t
}

// orderSpec applies defaults to the order fields shared by Request and
// OrderCommand. The side is filled in once a signal exists.
func orderSpec(symbol string, side model.Side, qty decimal.Decimal, tif string, sl, tp *float64, d Defaults) (execution.OrderSpec, error) {
	spec := execution.OrderSpec{
		Symbol:        symbol,
		Side:          side,
		Qty:           qty,
		TimeInForce:   d.TimeInForce,
		StopLossPct:   d.StopLossPct,
		TakeProfitPct: d.TakeProfitPct,
	}
	if spec.Qty.IsZero() {
		spec.Qty = d.Qty
	}
	if spec.Qty.IsNegative() {
		return execution.OrderSpec{}, invalid("qty must be positive, got %s", spec.Qty)
	}
	if tif != "" {
		t, err := model.ParseTimeInForce(tif)
		if err != nil {
			return execution.OrderSpec{}, invalid("%v", err)
		}
		spec.TimeInForce = t
	}
	if model.ClassifySymbol(symbol) == model.AssetCrypto {
		// Configured equity defaults do not carry over to crypto, where day
		// orders and exit legs are rejected. Explicit values are left to
		// BuildOrder.
		if tif == "" {
			spec.TimeInForce = ""
		}
		spec.StopLossPct, spec.TakeProfitPct = 0, 0
	}
	if sl != nil {
		spec.StopLossPct = *sl
	}
	if tp != nil {
		spec.TakeProfitPct = *tp
	}
	if spec.StopLossPct < 0 || spec.StopLossPct >= 100 || spec.TakeProfitPct < 0 {
		return execution.OrderSpec{}, invalid("stop-loss %% must be in [0,100) and take-profit %% >= 0")
	}
	return spec, nil
}
