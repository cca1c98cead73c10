package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"signaldesk/internal/model"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string             `json:"order_id"`
	Request   model.OrderRequest `json:"request"`
	FillPrice decimal.Decimal    `json:"fill_price"`
	Slippage  decimal.Decimal    `json:"slippage"` // per-unit price slippage
	FilledAt  time.Time          `json:"filled_at"`
}

// PaperExecutor simulates order execution without real broker calls.
// Orders fill immediately at the reference price adjusted by slippage.
// Fills are kept in memory for the life of the process.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64
	now      func() time.Time

	// Simulation parameters
	slippageBps int64 // basis points of slippage (e.g., 5 = 0.05%)
}

// NewPaperExecutor creates a paper trading executor.
// slippageBps controls simulated slippage in basis points.
func NewPaperExecutor(slippageBps int64) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]Fill, 0, 64),
		slippageBps: slippageBps,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (p *PaperExecutor) Mode() string { return "paper" }

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Submit fills req at its reference price. Buys fill higher and sells lower
// by the configured slippage.
func (p *PaperExecutor) Submit(ctx context.Context, req model.OrderRequest) (model.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderAck{}, err
	}
	if req.RefPrice <= 0 {
		return model.OrderAck{}, fmt.Errorf("paper fill %s: no reference price", req.Symbol)
	}

	ref := decimal.NewFromFloat(req.RefPrice)
	slippage := ref.Mul(decimal.NewFromInt(p.slippageBps)).Div(decimal.NewFromInt(10000)).Round(4)
	fillPrice := ref.Add(slippage) // buy higher
	if req.Side == model.SideSell {
		fillPrice = ref.Sub(slippage) // sell lower
	}

	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	fill := Fill{
		OrderID:   orderID,
		Request:   req,
		FillPrice: fillPrice,
		Slippage:  slippage,
		FilledAt:  p.now(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	slog.Info("paper fill",
		"order_id", orderID, "symbol", req.Symbol, "side", req.Side, "qty", req.Qty.String(),
		"price", fillPrice.String(), "slippage", slippage.String(), "bracket", req.Bracket())

	return model.OrderAck{
		OrderID:        orderID,
		ClientOrderID:  req.ClientOrderID,
		Status:         "filled",
		Symbol:         req.Symbol,
		Side:           req.Side,
		Qty:            req.Qty,
		SubmittedAt:    fill.FilledAt,
		FilledAvgPrice: &fillPrice,
	}, nil
}
