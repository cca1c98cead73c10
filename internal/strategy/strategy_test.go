package strategy

import (
	"errors"
	"testing"
	"time"

	"signaldesk/internal/indicator"
	"signaldesk/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func pt(v float64) indicator.Point { return indicator.Point{Value: v, Ready: true} }

var undef = indicator.Point{}

// row describes one handcrafted bar; zero Points are undefined.
type row struct {
	close               float64
	lower, mid, upper   indicator.Point
	short, long, ema, r indicator.Point
}

func buildFrame(rows ...row) *indicator.Frame {
	f := &indicator.Frame{Symbol: "AAPL", Timeframe: model.OneMinute}
	for i, r := range rows {
		f.Bars = append(f.Bars, model.Bar{TS: t0.Add(time.Duration(i) * time.Minute), Close: r.close})
		f.Close = append(f.Close, r.close)
		f.BBLower = append(f.BBLower, r.lower)
		f.BBMid = append(f.BBMid, r.mid)
		f.BBUpper = append(f.BBUpper, r.upper)
		f.ShortMA = append(f.ShortMA, r.short)
		f.LongMA = append(f.LongMA, r.long)
		f.EMA = append(f.EMA, r.ema)
		f.RSI = append(f.RSI, r.r)
	}
	return f
}

func evalLast(t *testing.T, kind Kind, f *indicator.Frame) Verdict {
	t.Helper()
	s, err := New(kind, DefaultThresholds())
	if err != nil {
		t.Fatalf("New(%s): %v", kind, err)
	}
	st, err := NewState(f, f.Len()-1)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s.Evaluate(st)
}

// ────────────────────────────────────────────────────────────
// Rule tables
// ────────────────────────────────────────────────────────────

func TestStrategies_Rules(t *testing.T) {
	bands := func(close float64) row {
		return row{close: close, lower: pt(95), mid: pt(100), upper: pt(105)}
	}
	withRSI := func(r row, v float64) row { r.r = pt(v); return r }

	tests := []struct {
		name string
		kind Kind
		rows []row
		want Signal
	}{
		{"touch buy", KindBollingerTouch, []row{bands(94)}, SignalBuy},
		{"touch sell", KindBollingerTouch, []row{bands(106)}, SignalSell},
		{"touch inside", KindBollingerTouch, []row{bands(100)}, SignalHold},
		{"touch on band", KindBollingerTouch, []row{bands(95)}, SignalHold},
		{"touch warmup", KindBollingerTouch, []row{{close: 10}}, SignalHold},

		{"cross buy", KindBollingerCross, []row{bands(95), bands(94)}, SignalBuy},
		{"cross sell", KindBollingerCross, []row{bands(105), bands(106)}, SignalSell},
		{"cross already outside", KindBollingerCross, []row{bands(94), bands(93)}, SignalHold},
		{"cross no previous", KindBollingerCross, []row{bands(94)}, SignalHold},
		{"cross previous undefined", KindBollingerCross, []row{{close: 100}, bands(94)}, SignalHold},

		{"rsi buy", KindRSI, []row{{close: 1, r: pt(25)}}, SignalBuy},
		{"rsi sell", KindRSI, []row{{close: 1, r: pt(75)}}, SignalSell},
		{"rsi at oversold", KindRSI, []row{{close: 1, r: pt(30)}}, SignalHold},
		{"rsi at overbought", KindRSI, []row{{close: 1, r: pt(70)}}, SignalHold},
		{"rsi undefined", KindRSI, []row{{close: 1}}, SignalHold},

		{"ema buy", KindEMATrend, []row{{close: 101, ema: pt(100)}}, SignalBuy},
		{"ema sell", KindEMATrend, []row{{close: 99, ema: pt(100)}}, SignalSell},
		{"ema equal", KindEMATrend, []row{{close: 100, ema: pt(100)}}, SignalHold},

		{"combined buy", KindBollingerRSI, []row{withRSI(bands(94), 25)}, SignalBuy},
		{"combined sell", KindBollingerRSI, []row{withRSI(bands(106), 80)}, SignalSell},
		{"combined band only", KindBollingerRSI, []row{withRSI(bands(94), 45)}, SignalHold},
		{"combined rsi only", KindBollingerRSI, []row{withRSI(bands(100), 20)}, SignalHold},
		{"combined rsi undefined", KindBollingerRSI, []row{bands(94)}, SignalHold},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := evalLast(t, tc.kind, buildFrame(tc.rows...))
			if v.Signal != tc.want {
				t.Errorf("got %s (%s), want %s", v.Signal, v.Reason, tc.want)
			}
			if v.Reason == "" {
				t.Error("verdict reason should not be empty")
			}
		})
	}
}

func TestMACrossover_Rules(t *testing.T) {
	ma := func(short, long, rsi float64) row {
		return row{close: 100, short: pt(short), long: pt(long), r: pt(rsi)}
	}
	tests := []struct {
		name string
		rows []row
		want Signal
	}{
		{"golden cross", []row{ma(99, 100, 50), ma(101, 100, 50)}, SignalBuy},
		{"golden from equal", []row{ma(100, 100, 50), ma(101, 100, 50)}, SignalBuy},
		{"golden filtered overbought", []row{ma(99, 100, 50), ma(101, 100, 75)}, SignalHold},
		{"death cross", []row{ma(101, 100, 50), ma(99, 100, 50)}, SignalSell},
		{"death filtered oversold", []row{ma(101, 100, 50), ma(99, 100, 25)}, SignalHold},
		{"stays above", []row{ma(101, 100, 50), ma(102, 100, 50)}, SignalHold},
		{"single row", []row{ma(101, 100, 50)}, SignalHold},
		{"rsi undefined", []row{ma(99, 100, 50), {close: 100, short: pt(101), long: pt(100)}}, SignalHold},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := evalLast(t, KindMACrossover, buildFrame(tc.rows...))
			if v.Signal != tc.want {
				t.Errorf("got %s (%s), want %s", v.Signal, v.Reason, tc.want)
			}
		})
	}
}

func TestConflict_IsHold(t *testing.T) {
	// Inverted bands make both touch rules true at once.
	f := buildFrame(row{close: 100, lower: pt(105), upper: pt(95)})
	v := evalLast(t, KindBollingerTouch, f)
	if v.Signal != SignalHold || !IsConflict(v) {
		t.Errorf("got %+v, want conflict HOLD", v)
	}
}

// ────────────────────────────────────────────────────────────
// State, factory, thresholds
// ────────────────────────────────────────────────────────────

func TestNewState(t *testing.T) {
	f := buildFrame(row{close: 1}, row{close: 2})
	st, err := NewState(f, 0)
	if err != nil || st.HasPrevious || st.Current.Close != 1 {
		t.Errorf("NewState(0) = %+v, %v", st, err)
	}
	st, err = NewState(f, 1)
	if err != nil || !st.HasPrevious || st.Previous.Close != 1 || st.Current.Close != 2 {
		t.Errorf("NewState(1) = %+v, %v", st, err)
	}
	if _, err := NewState(f, 2); err == nil {
		t.Error("NewState(2) should error")
	}
	if _, err := NewState(buildFrame(), 0); err == nil {
		t.Error("NewState on empty frame should error")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(" " + string(k) + " ")
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if got, err := ParseKind("RSI"); err != nil || got != KindRSI {
		t.Errorf("ParseKind(RSI) = %q, %v", got, err)
	}
	if _, err := ParseKind("macd"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(macd) err = %v", err)
	}
	if len(Kinds()) != 6 {
		t.Errorf("Kinds() = %v", Kinds())
	}
}

func TestNew(t *testing.T) {
	for _, k := range Kinds() {
		s, err := New(k, DefaultThresholds())
		if err != nil {
			t.Fatalf("New(%s): %v", k, err)
		}
		if s.Kind() != k {
			t.Errorf("New(%s).Kind() = %s", k, s.Kind())
		}
	}
	if _, err := New("macd", DefaultThresholds()); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind err = %v", err)
	}
	if _, err := New(KindRSI, Thresholds{Oversold: 70, Overbought: 30}); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("inverted thresholds err = %v", err)
	}
}

func TestCustomThresholds(t *testing.T) {
	s, err := New(KindRSI, Thresholds{Oversold: 20, Overbought: 80})
	if err != nil {
		t.Fatal(err)
	}
	st, _ := NewState(buildFrame(row{close: 1, r: pt(25)}), 0)
	if v := s.Evaluate(st); v.Signal != SignalHold {
		t.Errorf("RSI 25 with oversold 20: got %s", v.Signal)
	}
}
