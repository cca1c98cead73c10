// Package strategy turns an indicator frame into BUY/SELL/HOLD signals.
//
// Each Strategy reads the current and previous rows of a Frame. A rule only
// fires when every value it references is defined; otherwise it holds.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"signaldesk/internal/indicator"
)

// Signal is the discrete trading recommendation for one bar.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Actionable reports whether the signal asks for a trade.
func (s Signal) Actionable() bool { return s == SignalBuy || s == SignalSell }

// Verdict is a strategy's answer for one State.
type Verdict struct {
	Signal Signal `json:"signal"`
	Reason string `json:"reason"`
}

func hold(reason string) Verdict { return Verdict{Signal: SignalHold, Reason: reason} }

// State is the evaluation context: the row being evaluated and, when it
// exists, the row before it.
type State struct {
	Current     indicator.Row
	Previous    indicator.Row
	HasPrevious bool
}

// NewState builds the State for bar current of f.
func NewState(f *indicator.Frame, current int) (State, error) {
	cur, err := f.Row(current)
	if err != nil {
		return State{}, err
	}
	st := State{Current: cur}
	if current > 0 {
		prev, err := f.Row(current - 1)
		if err != nil {
			return State{}, err
		}
		st.Previous = prev
		st.HasPrevious = true
	}
	return st, nil
}

// Strategy is the interface that all signal rules implement.
type Strategy interface {
	// Kind returns the strategy identifier.
	Kind() Kind

	// Evaluate returns the verdict for st. A bar where both the BUY and SELL
	// conditions hold resolves to HOLD (see outcome.verdict); the Evaluator
	// only logs it.
	Evaluate(st State) Verdict
}

// ErrInvalidThresholds is returned when oversold is not below overbought.
var ErrInvalidThresholds = errors.New("invalid RSI thresholds")

// Thresholds are the RSI levels used by the RSI-based rules.
type Thresholds struct {
	Oversold   float64 `json:"oversold" mapstructure:"oversold"`
	Overbought float64 `json:"overbought" mapstructure:"overbought"`
}

// DefaultThresholds returns 30/70.
func DefaultThresholds() Thresholds {
	return Thresholds{Oversold: 30, Overbought: 70}
}

// Validate requires 0 <= oversold < overbought <= 100.
func (t Thresholds) Validate() error {
	if t.Oversold < 0 || t.Overbought > 100 || t.Oversold >= t.Overbought {
		return fmt.Errorf("%w: oversold %.2f must be below overbought %.2f within [0,100]",
			ErrInvalidThresholds, t.Oversold, t.Overbought)
	}
	return nil
}

// Kind identifies a strategy variant.
type Kind string

const (
	KindBollingerTouch Kind = "bollinger_touch"
	KindBollingerCross Kind = "bollinger_cross"
	KindRSI            Kind = "rsi"
	KindMACrossover    Kind = "ma_crossover"
	KindEMATrend       Kind = "ema_trend"
	KindBollingerRSI   Kind = "bollinger_rsi"
)

var kinds = []Kind{
	KindBollingerTouch,
	KindBollingerCross,
	KindRSI,
	KindMACrossover,
	KindEMATrend,
	KindBollingerRSI,
}

// Kinds lists every supported strategy kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ErrUnknownKind is returned for an unrecognised strategy name.
var ErrUnknownKind = errors.New("unknown strategy")

// ParseKind resolves a strategy name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// New creates the strategy for kind.
func New(kind Kind, th Thresholds) (Strategy, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	switch kind {
	case KindBollingerTouch:
		return BollingerTouch{}, nil
	case KindBollingerCross:
		return BollingerCross{}, nil
	case KindRSI:
		return RSIThreshold{th: th}, nil
	case KindMACrossover:
		return MACrossover{th: th}, nil
	case KindEMATrend:
		return EMATrend{}, nil
	case KindBollingerRSI:
		return BollingerRSI{th: th}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// outcome is what a rule reports before conflict resolution.
type outcome struct {
	buy, sell bool
	buyWhy    string
	sellWhy   string
	holdWhy   string
}

func (o outcome) verdict(kind Kind) Verdict {
	switch {
	case o.buy && o.sell:
		return Verdict{Signal: SignalHold, Reason: conflictReason(kind)}
	case o.buy:
		return Verdict{Signal: SignalBuy, Reason: o.buyWhy}
	case o.sell:
		return Verdict{Signal: SignalSell, Reason: o.sellWhy}
	}
	if o.holdWhy == "" {
		return hold("no rule triggered")
	}
	return hold(o.holdWhy)
}

const conflictPrefix = "conflict: "

func conflictReason(kind Kind) string {
	return conflictPrefix + string(kind) + " matched both BUY and SELL"
}

// IsConflict reports whether v is the HOLD produced by a BUY/SELL conflict.
func IsConflict(v Verdict) bool {
	return v.Signal == SignalHold && strings.HasPrefix(v.Reason, conflictPrefix)
}

const reasonWarmup = "insufficient history"
