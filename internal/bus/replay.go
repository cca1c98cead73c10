package bus

import "sync"

// replayBuffer is a fixed-size circular buffer of recent events, oldest
// overwritten first.
type replayBuffer struct {
	mu   sync.RWMutex
	buf  []Event
	pos  int // next write position
	full bool
}

func newReplayBuffer(capacity int) *replayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &replayBuffer{buf: make([]Event, capacity)}
}

func (rb *replayBuffer) push(ev Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.pos] = ev
	rb.pos = (rb.pos + 1) % len(rb.buf)
	if rb.pos == 0 {
		rb.full = true
	}
}

// after returns the stored events with Seq > seq in seq order.
func (rb *replayBuffer) after(seq int64) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []Event
	for i := 0; i < rb.len(); i++ {
		if ev := rb.buf[rb.index(i)]; ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (rb *replayBuffer) len() int {
	if rb.full {
		return len(rb.buf)
	}
	return rb.pos
}

// index converts a logical index (0 = oldest) to a physical one.
func (rb *replayBuffer) index(logical int) int {
	if rb.full {
		return (rb.pos + logical) % len(rb.buf)
	}
	return logical
}
