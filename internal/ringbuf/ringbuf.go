// Package ringbuf provides a fixed-capacity FIFO window of float64 values.
// Indicators use it to hold the last N observations of a rolling window.
// A Window is not safe for concurrent use.
package ringbuf

// Window keeps the most recent Cap() values pushed into it.
// Once full, every Push evicts the oldest value.
type Window struct {
	buf   []float64
	head  int // next write position
	count int
}

// New creates a window of the given capacity. Capacity below 1 is raised to 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v and returns the evicted value, if any.
func (w *Window) Push(v float64) (evicted float64, ok bool) {
	if w.count == len(w.buf) {
		evicted, ok = w.buf[w.head], true
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	return evicted, ok
}

// At returns the i-th value, oldest first. Panics when i is out of range.
func (w *Window) At(i int) float64 {
	if i < 0 || i >= w.count {
		panic("ringbuf: index out of range")
	}
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	return w.buf[(start+i)%len(w.buf)]
}

// Sum adds the stored values from oldest to newest.
// The fixed order keeps results reproducible to the last bit.
func (w *Window) Sum() float64 {
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.At(i)
	}
	return sum
}

// Values copies the stored values, oldest first, into dst and returns it.
func (w *Window) Values(dst []float64) []float64 {
	dst = dst[:0]
	for i := 0; i < w.count; i++ {
		dst = append(dst, w.At(i))
	}
	return dst
}

// Len returns the number of stored values.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap() values.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Reset empties the window.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}
