package execution

import (
	"context"
	"log/slog"
	"time"

	"signaldesk/internal/model"
)

// Journal persists order submissions for audit.
type Journal interface {
	RecordOrder(ctx context.Context, rec model.OrderRecord) error
}

// journaled records every submission made through an Executor.
type journaled struct {
	Executor
	journal Journal
}

// WithJournal wraps exec so each Submit outcome is written to j.
// Journal failures are logged and never fail the submission.
func WithJournal(exec Executor, j Journal) Executor {
	if j == nil {
		return exec
	}
	return &journaled{Executor: exec, journal: j}
}

func (e *journaled) Submit(ctx context.Context, req model.OrderRequest) (model.OrderAck, error) {
	ack, err := e.Executor.Submit(ctx, req)

	rec := model.OrderRecord{
		ClientOrderID: req.ClientOrderID,
		OrderID:       ack.OrderID,
		Mode:          e.Mode(),
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           req.Qty.String(),
		Status:        ack.Status,
		RefPrice:      req.RefPrice,
		SubmittedAt:   ack.SubmittedAt,
	}
	if ack.FilledAvgPrice != nil {
		rec.FillPrice = ack.FilledAvgPrice.String()
	}
	if err != nil {
		rec.Status = "error"
		rec.Error = err.Error()
		rec.SubmittedAt = time.Now().UTC()
	}
	if jerr := e.journal.RecordOrder(ctx, rec); jerr != nil {
		slog.Warn("order journal write failed", "client_order_id", req.ClientOrderID, "error", jerr)
	}
	return ack, err
}
