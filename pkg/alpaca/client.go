// Package alpaca is a small client for the Alpaca trading and market data REST APIs.
// It mirrors the routes, auth headers and request helpers needed to pull
// historical bars, submit market orders and read the market clock.
//
// Usage example:
//
//	c := alpaca.NewClient(alpaca.Config{APIKey: "key", APISecret: "secret"})
//	bars, err := c.GetBars(ctx, alpaca.BarsParams{Symbol: "AAPL", Timeframe: "1Min", Start: start, End: end})
//	if err != nil { log.Fatal(err) }
//	ack, err := c.PlaceOrder(ctx, alpaca.OrderParams{Symbol: "AAPL", Qty: decimal.NewFromInt(1), Side: "buy", TimeInForce: "day"})
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ---- Config & client ----

type Config struct {
	APIKey    string
	APISecret string

	BaseURL string        // trading API, default: https://paper-api.alpaca.markets
	DataURL string        // market data API, default: https://data.alpaca.markets
	Feed    string        // stock data feed, default: iex
	Timeout time.Duration // default: 10s
	Debug   bool

	HTTPClient *http.Client // optional, overrides Timeout
}

type Client struct {
	apiKey    string
	apiSecret string

	baseURL string
	dataURL string
	feed    string
	debug   bool

	httpClient *http.Client
}

const (
	DefaultBaseURL = "https://paper-api.alpaca.markets"
	DefaultDataURL = "https://data.alpaca.markets"
	DefaultFeed    = "iex"

	// maxPageLimit is the largest page the bars endpoints accept.
	maxPageLimit = 10000
)

var routes = map[string]string{
	"order.place":  "/v2/orders",
	"clock":        "/v2/clock",
	"stock.bars":   "/v2/stocks/{symbol}/bars",
	"crypto.bars":  "/v1beta3/crypto/us/bars",
	"account.info": "/v2/account",
}

// NewClient initializes the client, filling defaults for empty fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = DefaultDataURL
	}
	if cfg.Feed == "" {
		cfg.Feed = DefaultFeed
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
		feed:       cfg.Feed,
		debug:      cfg.Debug,
		httpClient: hc,
	}
}

// ---- Errors ----

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("alpaca: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("alpaca: HTTP %d: %s", e.StatusCode, e.Message)
}

// ---- Helpers ----

func (c *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("APCA-API-KEY-ID", c.apiKey)
	h.Set("APCA-API-SECRET-KEY", c.apiSecret)
	return h
}

func buildURL(root, route string, pathParams map[string]string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	for k, v := range pathParams {
		uri = strings.ReplaceAll(uri, "{"+k+"}", url.PathEscape(v))
	}
	return root + uri, nil
}

// doRequest sends one request and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) doRequest(ctx context.Context, method, reqURL string, query url.Values, payload, out any) error {
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	req.Header = c.requestHeaders()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.debug {
		slog.Debug("alpaca request", "method", method, "url", reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, reqURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if c.debug {
		slog.Debug("alpaca response", "status", resp.StatusCode, "bytes", len(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	return nil
}
