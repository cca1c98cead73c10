package indicator

import (
	"strconv"

	"signaldesk/internal/ringbuf"
)

// SMA calculates Simple Moving Average over a rolling window.
// The window sum is recomputed oldest-to-newest on every update so the
// result equals a fresh mean of the window, bit for bit.
type SMA struct {
	period  int
	win     *ringbuf.Window
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		win:    ringbuf.New(period),
	}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMA) Update(price float64) {
	s.win.Push(price)
	if s.win.Full() {
		s.current = s.win.Sum() / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.win.Full() }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.win.Reset()
	s.current = 0
}

// SMASeries returns the simple moving average series of closes over window w.
func SMASeries(closes []float64, w int) Series {
	return run(NewSMA(w), closes)
}
