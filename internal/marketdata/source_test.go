package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"signaldesk/internal/model"
	"signaldesk/pkg/alpaca"
)

type fakeBarsClient struct {
	got  alpaca.BarsParams
	bars []alpaca.Bar
	err  error
}

func (f *fakeBarsClient) GetBars(_ context.Context, p alpaca.BarsParams) ([]alpaca.Bar, error) {
	f.got = p
	return f.bars, f.err
}

func TestAlpacaSource_FetchBars(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, ny)
	fc := &fakeBarsClient{bars: []alpaca.Bar{{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}}
	src := NewAlpacaSource(fc, "sip")

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bars, err := src.FetchBars(context.Background(), model.BarsRequest{
		Symbol: "AAPL", Timeframe: model.FiveMinutes, Start: start, End: start.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if fc.got.Timeframe != "5Min" || fc.got.Feed != "sip" || fc.got.Symbol != "AAPL" || !fc.got.Start.Equal(start) {
		t.Errorf("params = %+v", fc.got)
	}
	if len(bars) != 1 || bars[0].Close != 1.5 || bars[0].TS.Location() != time.UTC || !bars[0].TS.Equal(ts) {
		t.Errorf("bars = %+v", bars)
	}
}

func TestAlpacaSource_Error(t *testing.T) {
	apiErr := &alpaca.APIError{StatusCode: 401, Message: "unauthorized"}
	src := NewAlpacaSource(&fakeBarsClient{err: apiErr}, "")
	_, err := src.FetchBars(context.Background(), model.BarsRequest{Symbol: "AAPL", Timeframe: model.OneDay})
	var got *alpaca.APIError
	if !errors.As(err, &got) || got.StatusCode != 401 {
		t.Errorf("err = %v", err)
	}
}

func TestAlpacaSource_Empty(t *testing.T) {
	src := NewAlpacaSource(&fakeBarsClient{}, "")
	bars, err := src.FetchBars(context.Background(), model.BarsRequest{Symbol: "TSLA", Timeframe: model.OneDay})
	if err != nil || len(bars) != 0 {
		t.Errorf("bars=%v err=%v", bars, err)
	}
}
