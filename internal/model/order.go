package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TimeInForce controls how long an order stays working at the broker.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
	TIFFOK TimeInForce = "fok"
)

// ParseTimeInForce accepts day, gtc, ioc and fok (case-insensitive).
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch tif := TimeInForce(strings.ToLower(strings.TrimSpace(s))); tif {
	case TIFDay, TIFGTC, TIFIOC, TIFFOK:
		return tif, nil
	}
	return "", fmt.Errorf("unknown time in force %q", s)
}

// OrderRequest is a market order to be submitted to the broker.
type OrderRequest struct {
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Qty           decimal.Decimal  `json:"qty"`
	TimeInForce   TimeInForce      `json:"time_in_force"`
	ClientOrderID string           `json:"client_order_id"`
	TakeProfit    *decimal.Decimal `json:"take_profit,omitempty"` // limit price of the take-profit leg
	StopLoss      *decimal.Decimal `json:"stop_loss,omitempty"`   // stop price of the stop-loss leg
	RefPrice      float64          `json:"ref_price,omitempty"`   // last close used to derive legs
}

// Bracket reports whether the order carries exit legs.
func (o OrderRequest) Bracket() bool {
	return o.TakeProfit != nil || o.StopLoss != nil
}

// OrderAck is the broker's acknowledgement of a submitted order.
type OrderAck struct {
	OrderID        string           `json:"order_id"`
	ClientOrderID  string           `json:"client_order_id"`
	Status         string           `json:"status"` // accepted, new, filled, ...
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"side"`
	Qty            decimal.Decimal  `json:"qty"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price,omitempty"`
}

// OrderRecord is one journaled order submission, successful or not.
type OrderRecord struct {
	ClientOrderID string    `json:"client_order_id"`
	OrderID       string    `json:"order_id,omitempty"`
	Mode          string    `json:"mode"` // live | paper
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Qty           string    `json:"qty"`
	Status        string    `json:"status"`
	RefPrice      float64   `json:"ref_price,omitempty"`
	FillPrice     string    `json:"fill_price,omitempty"`
	Error         string    `json:"error,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
