package alpaca

import (
	"context"
	"net/http"
	"time"
)

// Clock is the market clock as reported by the trading API.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// GetClock returns the current market clock.
func (c *Client) GetClock(ctx context.Context) (*Clock, error) {
	reqURL, err := buildURL(c.baseURL, "clock", nil)
	if err != nil {
		return nil, err
	}
	var out Clock
	if err := c.doRequest(ctx, http.MethodGet, reqURL, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Account is the subset of account fields used for a credentials check.
type Account struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	BuyingPower    string `json:"buying_power"`
	TradingBlocked bool   `json:"trading_blocked"`
}

// GetAccount returns the authenticated account.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	reqURL, err := buildURL(c.baseURL, "account.info", nil)
	if err != nil {
		return nil, err
	}
	var out Account
	if err := c.doRequest(ctx, http.MethodGet, reqURL, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
