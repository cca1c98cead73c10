// Package marketdata adapts brokerage market data APIs to model.BarSource.
package marketdata

import (
	"context"
	"fmt"

	"signaldesk/internal/model"
	"signaldesk/pkg/alpaca"
)

// BarsClient is the part of the Alpaca client the source needs.
type BarsClient interface {
	GetBars(ctx context.Context, p alpaca.BarsParams) ([]alpaca.Bar, error)
}

// AlpacaSource fetches historical bars from the Alpaca data API.
type AlpacaSource struct {
	client BarsClient
	feed   string
}

// NewAlpacaSource wraps client. feed selects the stock data feed; empty
// uses the client default.
func NewAlpacaSource(client BarsClient, feed string) *AlpacaSource {
	return &AlpacaSource{client: client, feed: feed}
}

// FetchBars implements model.BarSource.
func (s *AlpacaSource) FetchBars(ctx context.Context, req model.BarsRequest) ([]model.Bar, error) {
	raw, err := s.client.GetBars(ctx, alpaca.BarsParams{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe.String(),
		Start:     req.Start,
		End:       req.End,
		Feed:      s.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s %s: %w", req.Symbol, req.Timeframe, err)
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, model.Bar{
			TS:     b.Timestamp.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}
