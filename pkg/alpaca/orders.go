package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// OrderParams describes a market order, optionally with bracket legs.
type OrderParams struct {
	Symbol        string
	Qty           decimal.Decimal
	Side          string // buy | sell
	TimeInForce   string // day | gtc | ioc | fok
	ClientOrderID string
	TakeProfit    *decimal.Decimal // limit price of the take-profit leg
	StopLoss      *decimal.Decimal // stop price of the stop-loss leg
}

type takeProfitLeg struct {
	LimitPrice decimal.Decimal `json:"limit_price"`
}

type stopLossLeg struct {
	StopPrice decimal.Decimal `json:"stop_price"`
}

type orderPayload struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	TimeInForce   string          `json:"time_in_force"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	OrderClass    string          `json:"order_class,omitempty"`
	TakeProfit    *takeProfitLeg  `json:"take_profit,omitempty"`
	StopLoss      *stopLossLeg    `json:"stop_loss,omitempty"`
}

// Order is the subset of the order object the service consumes.
type Order struct {
	ID             string           `json:"id"`
	ClientOrderID  string           `json:"client_order_id"`
	Status         string           `json:"status"`
	Symbol         string           `json:"symbol"`
	Side           string           `json:"side"`
	Type           string           `json:"type"`
	OrderClass     string           `json:"order_class"`
	Qty            decimal.Decimal  `json:"qty"`
	FilledQty      decimal.Decimal  `json:"filled_qty"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price"`
	SubmittedAt    time.Time        `json:"submitted_at"`
}

// PlaceOrder submits a market order. With either leg set the order is
// sent as a bracket.
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (*Order, error) {
	if p.Symbol == "" || p.Side == "" {
		return nil, fmt.Errorf("symbol and side are required")
	}
	if !p.Qty.IsPositive() {
		return nil, fmt.Errorf("qty must be positive, got %s", p.Qty)
	}
	tif := p.TimeInForce
	if tif == "" {
		tif = "day"
	}

	payload := orderPayload{
		Symbol:        p.Symbol,
		Qty:           p.Qty,
		Side:          p.Side,
		Type:          "market",
		TimeInForce:   tif,
		ClientOrderID: p.ClientOrderID,
	}
	if p.TakeProfit != nil {
		payload.TakeProfit = &takeProfitLeg{LimitPrice: *p.TakeProfit}
	}
	if p.StopLoss != nil {
		payload.StopLoss = &stopLossLeg{StopPrice: *p.StopLoss}
	}
	switch {
	case payload.TakeProfit != nil && payload.StopLoss != nil:
		payload.OrderClass = "bracket"
	case payload.TakeProfit != nil || payload.StopLoss != nil:
		payload.OrderClass = "oto"
	}

	reqURL, err := buildURL(c.baseURL, "order.place", nil)
	if err != nil {
		return nil, err
	}
	var out Order
	if err := c.doRequest(ctx, http.MethodPost, reqURL, nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
