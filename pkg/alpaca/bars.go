package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLCV bar as returned by the data API.
type Bar struct {
	Timestamp  time.Time `json:"t"`
	Open       float64   `json:"o"`
	High       float64   `json:"h"`
	Low        float64   `json:"l"`
	Close      float64   `json:"c"`
	Volume     float64   `json:"v"`
	TradeCount uint64    `json:"n"`
	VWAP       float64   `json:"vw"`
}

// BarsParams selects a bar range. Symbols containing "/" are crypto pairs.
type BarsParams struct {
	Symbol     string
	Timeframe  string // e.g. "1Min", "15Min", "1Hour", "1Day"
	Start      time.Time
	End        time.Time
	Feed       string // stocks only; defaults to the client feed
	Adjustment string // stocks only: raw, split, dividend, all
	PageLimit  int    // per-page limit; 0 means the maximum
}

// IsCrypto reports whether symbol names a crypto pair.
func IsCrypto(symbol string) bool { return strings.Contains(symbol, "/") }

type stockBarsPage struct {
	Bars          []Bar   `json:"bars"`
	Symbol        string  `json:"symbol"`
	NextPageToken *string `json:"next_page_token"`
}

type cryptoBarsPage struct {
	Bars          map[string][]Bar `json:"bars"`
	NextPageToken *string          `json:"next_page_token"`
}

// GetBars returns every bar in [Start, End], following pagination.
func (c *Client) GetBars(ctx context.Context, p BarsParams) ([]Bar, error) {
	if p.Symbol == "" || p.Timeframe == "" {
		return nil, fmt.Errorf("symbol and timeframe are required")
	}
	limit := p.PageLimit
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	q := url.Values{}
	q.Set("timeframe", p.Timeframe)
	q.Set("limit", strconv.Itoa(limit))
	if !p.Start.IsZero() {
		q.Set("start", p.Start.UTC().Format(time.RFC3339))
	}
	if !p.End.IsZero() {
		q.Set("end", p.End.UTC().Format(time.RFC3339))
	}

	crypto := IsCrypto(p.Symbol)
	var (
		reqURL string
		err    error
	)
	if crypto {
		q.Set("symbols", p.Symbol)
		reqURL, err = buildURL(c.dataURL, "crypto.bars", nil)
	} else {
		feed := p.Feed
		if feed == "" {
			feed = c.feed
		}
		q.Set("feed", feed)
		if p.Adjustment != "" {
			q.Set("adjustment", p.Adjustment)
		}
		reqURL, err = buildURL(c.dataURL, "stock.bars", map[string]string{"symbol": p.Symbol})
	}
	if err != nil {
		return nil, err
	}

	var out []Bar
	for {
		var next *string
		if crypto {
			var page cryptoBarsPage
			if err := c.doRequest(ctx, http.MethodGet, reqURL, q, nil, &page); err != nil {
				return nil, err
			}
			out = append(out, page.Bars[p.Symbol]...)
			next = page.NextPageToken
		} else {
			var page stockBarsPage
			if err := c.doRequest(ctx, http.MethodGet, reqURL, q, nil, &page); err != nil {
				return nil, err
			}
			out = append(out, page.Bars...)
			next = page.NextPageToken
		}
		if next == nil || *next == "" {
			return out, nil
		}
		q.Set("page_token", *next)
	}
}
