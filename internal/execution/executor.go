// Package execution places orders through the broker API (Alpaca) or a
// simulated paper book.
//
// The Executor receives fully built order requests and returns the broker's
// acknowledgement. No retries: a failed submission is reported to the caller.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signaldesk/internal/model"
	"signaldesk/pkg/alpaca"
)

// Executor submits market orders.
type Executor interface {
	// Submit sends req and returns the acknowledgement.
	Submit(ctx context.Context, req model.OrderRequest) (model.OrderAck, error)

	// Mode returns "live" or "paper".
	Mode() string
}

// ErrInvalidOrder is wrapped by every BuildOrder validation failure.
var ErrInvalidOrder = errors.New("invalid order")

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// OrderSpec is the user-level description of a market order.
type OrderSpec struct {
	Symbol        string
	Side          model.Side
	Qty           decimal.Decimal
	TimeInForce   model.TimeInForce // empty: day for equities, gtc for crypto
	RefPrice      float64           // last close; required for exit legs
	StopLossPct   float64           // percent below (buy) / above (sell) the reference
	TakeProfitPct float64           // percent above (buy) / below (sell) the reference
}

// BuildOrder validates spec and turns it into an OrderRequest with a fresh
// client order id. Exit legs are attached when a percentage is set and the
// reference price is known; leg prices are rounded to cents.
func BuildOrder(spec OrderSpec) (model.OrderRequest, error) {
	symbol := model.NormalizeSymbol(spec.Symbol)
	if symbol == "" {
		return model.OrderRequest{}, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if spec.Side != model.SideBuy && spec.Side != model.SideSell {
		return model.OrderRequest{}, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, spec.Side)
	}
	if !spec.Qty.IsPositive() {
		return model.OrderRequest{}, fmt.Errorf("%w: qty must be positive, got %s", ErrInvalidOrder, spec.Qty)
	}
	if spec.StopLossPct < 0 || spec.StopLossPct >= 100 || spec.TakeProfitPct < 0 {
		return model.OrderRequest{}, fmt.Errorf("%w: stop-loss %% must be in [0,100) and take-profit %% >= 0", ErrInvalidOrder)
	}

	class := model.ClassifySymbol(symbol)
	tif := spec.TimeInForce
	if tif == "" {
		tif = model.TIFDay
		if class == model.AssetCrypto {
			tif = model.TIFGTC
		}
	}
	if _, err := model.ParseTimeInForce(string(tif)); err != nil {
		return model.OrderRequest{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	req := model.OrderRequest{
		Symbol:        symbol,
		Side:          spec.Side,
		Qty:           spec.Qty,
		TimeInForce:   tif,
		ClientOrderID: uuid.NewString(),
		RefPrice:      spec.RefPrice,
	}

	if spec.RefPrice > 0 && (spec.StopLossPct > 0 || spec.TakeProfitPct > 0) {
		if class == model.AssetCrypto {
			return model.OrderRequest{}, fmt.Errorf("%w: exit legs are not supported for crypto", ErrInvalidOrder)
		}
		ref := decimal.NewFromFloat(spec.RefPrice)
		up := func(pct float64) decimal.Decimal {
			return ref.Mul(one.Add(decimal.NewFromFloat(pct).Div(hundred))).Round(2)
		}
		down := func(pct float64) decimal.Decimal {
			return ref.Mul(one.Sub(decimal.NewFromFloat(pct).Div(hundred))).Round(2)
		}
		if spec.TakeProfitPct > 0 {
			tp := up(spec.TakeProfitPct)
			if spec.Side == model.SideSell {
				tp = down(spec.TakeProfitPct)
			}
			req.TakeProfit = &tp
		}
		if spec.StopLossPct > 0 {
			sl := down(spec.StopLossPct)
			if spec.Side == model.SideSell {
				sl = up(spec.StopLossPct)
			}
			req.StopLoss = &sl
		}
	}
	return req, nil
}

// OrderPlacer is the part of the Alpaca client the broker executor needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, p alpaca.OrderParams) (*alpaca.Order, error)
}

// BrokerExecutor submits orders to Alpaca.
type BrokerExecutor struct {
	client OrderPlacer
}

// NewBrokerExecutor creates a live executor.
func NewBrokerExecutor(client OrderPlacer) *BrokerExecutor {
	return &BrokerExecutor{client: client}
}

func (b *BrokerExecutor) Mode() string { return "live" }

// Submit places req as a market order.
func (b *BrokerExecutor) Submit(ctx context.Context, req model.OrderRequest) (model.OrderAck, error) {
	o, err := b.client.PlaceOrder(ctx, alpaca.OrderParams{
		Symbol:        req.Symbol,
		Qty:           req.Qty,
		Side:          string(req.Side),
		TimeInForce:   string(req.TimeInForce),
		ClientOrderID: req.ClientOrderID,
		TakeProfit:    req.TakeProfit,
		StopLoss:      req.StopLoss,
	})
	if err != nil {
		return model.OrderAck{}, fmt.Errorf("place order %s %s: %w", req.Side, req.Symbol, err)
	}

	slog.Info("order submitted",
		"order_id", o.ID, "client_order_id", o.ClientOrderID, "symbol", o.Symbol,
		"side", o.Side, "qty", o.Qty.String(), "status", o.Status, "bracket", req.Bracket())

	submitted := o.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	return model.OrderAck{
		OrderID:        o.ID,
		ClientOrderID:  o.ClientOrderID,
		Status:         o.Status,
		Symbol:         o.Symbol,
		Side:           model.Side(strings.ToLower(o.Side)),
		Qty:            o.Qty,
		SubmittedAt:    submitted,
		FilledAvgPrice: o.FilledAvgPrice,
	}, nil
}
