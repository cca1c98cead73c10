package markethours

import (
	"context"
	"log/slog"
	"time"

	"signaldesk/internal/model"
	"signaldesk/pkg/alpaca"
)

// Checker decides whether an asset class can trade right now.
type Checker interface {
	IsOpen(ctx context.Context, class model.AssetClass, t time.Time) bool
}

// Calendar answers from the built-in NYSE calendar.
type Calendar struct{}

func (Calendar) IsOpen(_ context.Context, class model.AssetClass, t time.Time) bool {
	return IsOpen(class, t)
}

// ClockReader is the part of the Alpaca client that reads the market clock.
type ClockReader interface {
	GetClock(ctx context.Context) (*alpaca.Clock, error)
}

// BrokerClock asks the broker's market clock for equities and falls back to
// the built-in calendar when the broker cannot be reached.
type BrokerClock struct {
	client ClockReader
}

// NewBrokerClock wraps client.
func NewBrokerClock(client ClockReader) *BrokerClock {
	return &BrokerClock{client: client}
}

func (b *BrokerClock) IsOpen(ctx context.Context, class model.AssetClass, t time.Time) bool {
	if class == model.AssetCrypto {
		return true
	}
	clk, err := b.client.GetClock(ctx)
	if err != nil {
		slog.Warn("market clock unavailable, using calendar", "error", err)
		return IsMarketOpen(t)
	}
	return clk.IsOpen
}
