package analysis

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"signaldesk/internal/logger"
	"signaldesk/internal/model"
)

// OrderCommand is a manual "trade now" request. Nil percentages take the
// service defaults.
type OrderCommand struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
	TimeInForce   string          `json:"time_in_force,omitempty"`
	RefPrice      float64         `json:"ref_price,omitempty"`
	StopLossPct   *float64        `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64        `json:"take_profit_pct,omitempty"`
}

func parseSide(s string) (model.Side, error) {
	switch model.Side(strings.ToLower(strings.TrimSpace(s))) {
	case model.SideBuy:
		return model.SideBuy, nil
	case model.SideSell:
		return model.SideSell, nil
	}
	return "", invalid("side must be buy or sell, got %q", s)
}

// PlaceOrder submits a market order outside of an analysis run. Invalid
// commands wrap ErrInvalidRequest; broker failures are *OrderError.
func (s *Service) PlaceOrder(ctx context.Context, cmd OrderCommand) (model.OrderAck, error) {
	if s.exec == nil {
		return model.OrderAck{}, invalid("order execution is disabled")
	}
	symbol := model.NormalizeSymbol(cmd.Symbol)
	if symbol == "" {
		return model.OrderAck{}, invalid("symbol is required")
	}
	side, err := parseSide(cmd.Side)
	if err != nil {
		return model.OrderAck{}, err
	}
	if cmd.RefPrice < 0 {
		return model.OrderAck{}, invalid("ref_price must not be negative")
	}

	spec, err := orderSpec(symbol, side, cmd.Qty, cmd.TimeInForce, cmd.StopLossPct, cmd.TakeProfitPct, s.defaults)
	if err != nil {
		return model.OrderAck{}, err
	}
	if !spec.Qty.IsPositive() {
		return model.OrderAck{}, invalid("qty must be positive, got %s", spec.Qty)
	}
	spec.RefPrice = cmd.RefPrice

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(symbol, s.now()))
	ack, oerr := s.submit(ctx, logger.FromContext(ctx, s.log), spec)
	if oerr != nil {
		return model.OrderAck{}, oerr
	}
	return ack, nil
}
