package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is one OHLCV observation for a fixed interval.
type Bar struct {
	TS     time.Time `json:"ts"` // bar start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

var (
	// ErrNegativeValue is returned for bars carrying a negative price or volume.
	ErrNegativeValue = errors.New("bar has negative value")
	// ErrNonFinite is returned for bars carrying NaN or an infinity.
	ErrNonFinite = errors.New("bar has non-finite value")
)

// Validate checks that all numerics are finite and non-negative.
func (b Bar) Validate() error {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w at %s", ErrNonFinite, b.TS.Format(time.RFC3339))
		}
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
		return fmt.Errorf("%w at %s", ErrNegativeValue, b.TS.Format(time.RFC3339))
	}
	return nil
}

// Series is the ordered bar history for a single symbol.
// Bars are ascending by timestamp with no duplicates.
type Series struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Bars      []Bar     `json:"bars"`
}

// NewSeries copies bars into a Series, sorting them by timestamp and dropping
// duplicate timestamps (the first occurrence wins).
func NewSeries(symbol string, tf Timeframe, bars []Bar) (Series, error) {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })

	out := sorted[:0]
	for i, b := range sorted {
		if err := b.Validate(); err != nil {
			return Series{}, err
		}
		if i > 0 && len(out) > 0 && b.TS.Equal(out[len(out)-1].TS) {
			continue
		}
		out = append(out, b)
	}
	return Series{Symbol: symbol, Timeframe: tf, Bars: out}, nil
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Closes returns the close price vector in bar order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar. ok is false for an empty series.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}
