// Package bus fans alerts out to in-process live subscribers and keeps a
// short sequenced history so reconnecting clients can backfill gaps.
package bus

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"signaldesk/internal/notification"
)

// Event is one alert stamped with its bus sequence number.
type Event struct {
	Seq   int64              `json:"seq"`
	Alert notification.Alert `json:"alert"`
}

// Subscription receives events for one symbol, or for every symbol when
// Symbol is empty. C is closed by Unsubscribe.
type Subscription struct {
	C      <-chan Event
	Symbol string

	ch chan Event
}

func (s *Subscription) matches(symbol string) bool {
	return s.Symbol == "" || strings.EqualFold(s.Symbol, symbol)
}

// Bus broadcasts alerts to subscribers. A subscriber whose buffer is full
// misses the event rather than blocking Send; it can recover the gap with
// Since. Bus implements notification.Notifier.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	seq     int64
	history *replayBuffer
	bufSize int

	// OnDrop is called when an event is dropped for a slow subscriber.
	OnDrop func(sub *Subscription, ev Event)
	// OnSubscribers is called with the subscriber count after it changes.
	OnSubscribers func(n int)
}

// New creates a Bus with per-subscriber buffers of bufSize events and a
// replay history of historySize events.
func New(bufSize, historySize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		history: newReplayBuffer(historySize),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber for symbol ("" for all).
func (b *Bus) Subscribe(symbol string) *Subscription {
	ch := make(chan Event, b.bufSize)
	sub := &Subscription{C: ch, Symbol: strings.ToUpper(strings.TrimSpace(symbol)), ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	if b.OnSubscribers != nil {
		b.OnSubscribers(n)
	}
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	n := len(b.subs)
	b.mu.Unlock()

	if b.OnSubscribers != nil {
		b.OnSubscribers(n)
	}
}

// Send stamps alert with the next sequence number, records it in the
// history and delivers it to every matching subscriber without blocking.
func (b *Bus) Send(_ context.Context, alert notification.Alert) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev := Event{Seq: b.seq, Alert: alert}
	b.history.push(ev)

	for sub := range b.subs {
		if !sub.matches(alert.Symbol) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			if b.OnDrop != nil {
				b.OnDrop(sub, ev)
			} else {
				slog.Warn("live subscriber full, dropping alert", "seq", ev.Seq, "symbol", alert.Symbol)
			}
		}
	}
	return nil
}

// Since returns the buffered events after seq for symbol ("" for all),
// oldest first. Events older than the history window are gone.
func (b *Bus) Since(seq int64, symbol string) []Event {
	symbol = strings.TrimSpace(symbol)
	var out []Event
	for _, ev := range b.history.after(seq) {
		if symbol == "" || strings.EqualFold(symbol, ev.Alert.Symbol) {
			out = append(out, ev)
		}
	}
	return out
}

// Seq returns the sequence number of the last event sent.
func (b *Bus) Seq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
