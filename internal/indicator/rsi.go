package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"signaldesk/internal/ringbuf"
)

// Smoothing selects how RSI averages gains and losses.
type Smoothing string

const (
	// SmoothingSimple uses the rolling mean of the last period gains/losses.
	SmoothingSimple Smoothing = "simple"
	// SmoothingWilder seeds with the simple mean, then applies
	// avg = (prev*(period-1) + x) / period.
	SmoothingWilder Smoothing = "wilder"
)

// ParseSmoothing accepts "simple" or "wilder"; empty means simple.
func ParseSmoothing(s string) (Smoothing, error) {
	switch sm := Smoothing(strings.ToLower(strings.TrimSpace(s))); sm {
	case "", SmoothingSimple:
		return SmoothingSimple, nil
	case SmoothingWilder:
		return sm, nil
	}
	return "", fmt.Errorf("unknown RSI smoothing %q", s)
}

// RSI calculates the Relative Strength Index. It becomes ready after
// period price changes, i.e. on the (period+1)-th close. A zero average loss
// yields 100, including a perfectly flat series.
type RSI struct {
	period    int
	smoothing Smoothing
	count     int
	prevClose float64
	gains     *ringbuf.Window
	losses    *ringbuf.Window
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int, smoothing Smoothing) *RSI {
	if smoothing == "" {
		smoothing = SmoothingSimple
	}
	return &RSI{
		period:    period,
		smoothing: smoothing,
		gains:     ringbuf.New(period),
		losses:    ringbuf.New(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First close: no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else if delta < 0 {
		loss = -delta
	}

	p := float64(r.period)
	if r.smoothing == SmoothingWilder && r.count > r.period+1 {
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
		r.current = rsiFromAverages(r.avgGain, r.avgLoss)
		return
	}

	r.gains.Push(gain)
	r.losses.Push(loss)
	if !r.gains.Full() {
		return
	}
	r.avgGain = r.gains.Sum() / p
	r.avgLoss = r.losses.Sum() / p
	r.current = rsiFromAverages(r.avgGain, r.avgLoss)
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// Reset clears the RSI state for reuse.
func (r *RSI) Reset() {
	r.count = 0
	r.prevClose = 0
	r.gains.Reset()
	r.losses.Reset()
	r.avgGain = 0
	r.avgLoss = 0
	r.current = 0
}

// RSISeries returns the RSI series of closes for period p.
func RSISeries(closes []float64, p int, smoothing Smoothing) Series {
	return run(NewRSI(p, smoothing), closes)
}
