package indicator

import (
	"math"
	"strconv"

	"signaldesk/internal/ringbuf"
)

// StdDev is the rolling sample standard deviation (N-1 denominator).
// A window shorter than 2 never becomes ready.
type StdDev struct {
	period  int
	win     *ringbuf.Window
	current float64
}

// NewStdDev creates a rolling standard deviation over period values.
func NewStdDev(period int) *StdDev {
	return &StdDev{
		period: period,
		win:    ringbuf.New(period),
	}
}

func (s *StdDev) Name() string { return "STD_" + strconv.Itoa(s.period) }

func (s *StdDev) Update(price float64) {
	s.win.Push(price)
	if !s.Ready() {
		return
	}

	n := float64(s.period)
	mean := s.win.Sum() / n
	first := s.win.At(0)
	constant := true
	ss := 0.0
	for i := 0; i < s.win.Len(); i++ {
		v := s.win.At(i)
		if v != first {
			constant = false
		}
		d := v - mean
		ss += d * d
	}
	if constant {
		// a flat window has zero spread even when the mean rounds
		s.current = 0
		return
	}
	s.current = math.Sqrt(ss / (n - 1))
}

func (s *StdDev) Value() float64 { return s.current }
func (s *StdDev) Ready() bool    { return s.period >= 2 && s.win.Full() }

// Reset clears the state for reuse.
func (s *StdDev) Reset() {
	s.win.Reset()
	s.current = 0
}

// RollingStd returns the rolling sample standard deviation series over window w.
func RollingStd(closes []float64, w int) Series {
	return run(NewStdDev(w), closes)
}
