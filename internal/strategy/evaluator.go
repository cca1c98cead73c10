package strategy

import (
	"log/slog"
	"time"

	"signaldesk/internal/indicator"
)

// Decision is a verdict pinned to a bar.
type Decision struct {
	Strategy Kind      `json:"strategy"`
	Signal   Signal    `json:"signal"`
	Reason   string    `json:"reason"`
	Index    int       `json:"index"`
	TS       time.Time `json:"ts"`
	Close    float64   `json:"close"`
}

// Evaluator applies one strategy to frames.
type Evaluator struct {
	strategy Strategy
}

// NewEvaluator wraps s.
func NewEvaluator(s Strategy) *Evaluator {
	return &Evaluator{strategy: s}
}

// Strategy returns the wrapped strategy.
func (e *Evaluator) Strategy() Strategy { return e.strategy }

// At evaluates bar i of f.
func (e *Evaluator) At(f *indicator.Frame, i int) (Decision, error) {
	st, err := NewState(f, i)
	if err != nil {
		return Decision{}, err
	}
	v := e.strategy.Evaluate(st)
	if IsConflict(v) {
		slog.Warn("strategy produced conflicting signals",
			"strategy", e.strategy.Kind(), "symbol", f.Symbol, "index", i, "ts", st.Current.TS)
	}
	return Decision{
		Strategy: e.strategy.Kind(),
		Signal:   v.Signal,
		Reason:   v.Reason,
		Index:    i,
		TS:       st.Current.TS,
		Close:    st.Current.Close,
	}, nil
}

// Latest evaluates the last bar. An empty frame yields HOLD at index -1.
func (e *Evaluator) Latest(f *indicator.Frame) Decision {
	if f.Len() == 0 {
		return Decision{Strategy: e.strategy.Kind(), Signal: SignalHold, Reason: "no data", Index: -1}
	}
	d, _ := e.At(f, f.Len()-1)
	return d
}

// Each evaluates every bar in order, HOLD included.
func (e *Evaluator) Each(f *indicator.Frame) []Decision {
	out := make([]Decision, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		d, err := e.At(f, i)
		if err != nil {
			break
		}
		out = append(out, d)
	}
	return out
}

// Scan evaluates every bar and returns the actionable decisions in bar order.
func (e *Evaluator) Scan(f *indicator.Frame) []Decision {
	return Actionable(e.Each(f))
}

// Actionable keeps the BUY and SELL decisions of ds.
func Actionable(ds []Decision) []Decision {
	var out []Decision
	for _, d := range ds {
		if d.Signal.Actionable() {
			out = append(out, d)
		}
	}
	return out
}
