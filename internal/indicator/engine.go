package indicator

import (
	"errors"
	"fmt"
	"time"

	"signaldesk/internal/model"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid indicator config")

// MaxWindow caps every window, span and period. A year of minute bars is
// far shorter than a window this size.
const MaxWindow = 10000

// Config holds the indicator parameters for one analysis run.
type Config struct {
	BollingerWindow int       `json:"bollinger_window" mapstructure:"bollinger_window"`
	BollingerK      float64   `json:"bollinger_k" mapstructure:"bollinger_k"`
	ShortMA         int       `json:"short_ma" mapstructure:"short_ma"`
	LongMA          int       `json:"long_ma" mapstructure:"long_ma"`
	EMASpan         int       `json:"ema_span" mapstructure:"ema_span"`
	RSIPeriod       int       `json:"rsi_period" mapstructure:"rsi_period"`
	RSISmoothing    Smoothing `json:"rsi_smoothing" mapstructure:"rsi_smoothing"`
}

// DefaultConfig returns 20/2 bands, 20/50 moving averages, EMA 20 and RSI 14.
func DefaultConfig() Config {
	return Config{
		BollingerWindow: DefaultBollingerWindow,
		BollingerK:      DefaultBollingerK,
		ShortMA:         20,
		LongMA:          50,
		EMASpan:         20,
		RSIPeriod:       14,
		RSISmoothing:    SmoothingSimple,
	}
}

// Validate rejects windows outside [1, MaxWindow], a negative band width and
// a short MA that is not shorter than the long MA.
func (c Config) Validate() error {
	for _, w := range []struct {
		name string
		n    int
	}{
		{"bollinger window", c.BollingerWindow},
		{"short MA", c.ShortMA},
		{"long MA", c.LongMA},
		{"EMA span", c.EMASpan},
		{"RSI period", c.RSIPeriod},
	} {
		if w.n > MaxWindow {
			return fmt.Errorf("%w: %s must be <= %d, got %d", ErrInvalidConfig, w.name, MaxWindow, w.n)
		}
	}
	switch {
	case c.BollingerWindow <= 0:
		return fmt.Errorf("%w: bollinger window must be > 0, got %d", ErrInvalidConfig, c.BollingerWindow)
	case c.BollingerK < 0:
		return fmt.Errorf("%w: bollinger k must be >= 0, got %g", ErrInvalidConfig, c.BollingerK)
	case c.ShortMA <= 0 || c.LongMA <= 0:
		return fmt.Errorf("%w: moving average windows must be > 0, got %d/%d", ErrInvalidConfig, c.ShortMA, c.LongMA)
	case c.ShortMA >= c.LongMA:
		return fmt.Errorf("%w: short MA (%d) must be shorter than long MA (%d)", ErrInvalidConfig, c.ShortMA, c.LongMA)
	case c.EMASpan <= 0:
		return fmt.Errorf("%w: EMA span must be > 0, got %d", ErrInvalidConfig, c.EMASpan)
	case c.RSIPeriod <= 0:
		return fmt.Errorf("%w: RSI period must be > 0, got %d", ErrInvalidConfig, c.RSIPeriod)
	}
	if _, err := ParseSmoothing(string(c.RSISmoothing)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Frame is a bar series augmented with every indicator column.
// All columns have the same length as Bars.
type Frame struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	Config    Config          `json:"config"`

	Bars  []model.Bar `json:"bars"`
	Close []float64   `json:"close"`

	BBMid   Series `json:"bb_mid"`
	BBUpper Series `json:"bb_upper"`
	BBLower Series `json:"bb_lower"`
	ShortMA Series `json:"short_ma"`
	LongMA  Series `json:"long_ma"`
	EMA     Series `json:"ema"`
	RSI     Series `json:"rsi"`
}

// Row is a single-bar view of a Frame.
type Row struct {
	Index   int       `json:"index"`
	TS      time.Time `json:"ts"`
	Close   float64   `json:"close"`
	BBMid   Point     `json:"bb_mid"`
	BBUpper Point     `json:"bb_upper"`
	BBLower Point     `json:"bb_lower"`
	ShortMA Point     `json:"short_ma"`
	LongMA  Point     `json:"long_ma"`
	EMA     Point     `json:"ema"`
	RSI     Point     `json:"rsi"`
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int { return len(f.Bars) }

// Row returns the row view for bar i.
func (f *Frame) Row(i int) (Row, error) {
	if i < 0 || i >= len(f.Bars) {
		return Row{}, fmt.Errorf("row index %d out of range [0,%d)", i, len(f.Bars))
	}
	return Row{
		Index:   i,
		TS:      f.Bars[i].TS,
		Close:   f.Close[i],
		BBMid:   f.BBMid[i],
		BBUpper: f.BBUpper[i],
		BBLower: f.BBLower[i],
		ShortMA: f.ShortMA[i],
		LongMA:  f.LongMA[i],
		EMA:     f.EMA[i],
		RSI:     f.RSI[i],
	}, nil
}

// Compute builds the augmented frame for series. It is a pure function of
// (series, cfg); the only error is an invalid config. An empty series yields
// an empty frame.
func Compute(series model.Series, cfg Config) (*Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	closes := series.Closes()
	bands := BollingerBands(closes, cfg.BollingerWindow, cfg.BollingerK)

	bars := make([]model.Bar, len(series.Bars))
	copy(bars, series.Bars)

	return &Frame{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Config:    cfg,
		Bars:      bars,
		Close:     closes,
		BBMid:     bands.Mid,
		BBUpper:   bands.Upper,
		BBLower:   bands.Lower,
		ShortMA:   SMASeries(closes, cfg.ShortMA),
		LongMA:    SMASeries(closes, cfg.LongMA),
		EMA:       EMASeries(closes, cfg.EMASpan),
		RSI:       RSISeries(closes, cfg.RSIPeriod, cfg.RSISmoothing),
	}, nil
}
