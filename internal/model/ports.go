package model

import (
	"context"
	"time"
)

// BarsRequest selects a bar window for one symbol.
type BarsRequest struct {
	Symbol    string
	Timeframe Timeframe
	Start     time.Time
	End       time.Time
}

// BarSource fetches historical bars. An empty slice with a nil error means
// the source has no data for the window.
type BarSource interface {
	FetchBars(ctx context.Context, req BarsRequest) ([]Bar, error)
}
