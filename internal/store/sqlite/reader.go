package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"signaldesk/internal/model"
)

// FetchBars implements model.BarSource. Results are ordered by timestamp
// ascending; zero Start/End leave that side of the window open.
func (s *Store) FetchBars(ctx context.Context, req model.BarsRequest) ([]model.Bar, error) {
	from := int64(0)
	if !req.Start.IsZero() {
		from = req.Start.Unix()
	}
	to := int64(math.MaxInt64)
	if !req.End.IsZero() {
		to = req.End.Unix()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, req.Symbol, req.Timeframe.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LastTimestamp returns the newest stored bar time for symbol/timeframe.
// ok is false when nothing is stored.
func (s *Store) LastTimestamp(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE symbol = ? AND timeframe = ?`,
		symbol, tf.String(),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// ListOrders returns the most recent journaled orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]model.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_order_id, COALESCE(order_id, ''), mode, symbol, side, qty, status,
		       COALESCE(ref_price, 0), COALESCE(fill_price, ''), COALESCE(error, ''), submitted_at
		FROM orders
		ORDER BY submitted_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query orders: %w", err)
	}
	defer rows.Close()

	var out []model.OrderRecord
	for rows.Next() {
		var r model.OrderRecord
		var side string
		var ms int64
		if err := rows.Scan(&r.ClientOrderID, &r.OrderID, &r.Mode, &r.Symbol, &side, &r.Qty, &r.Status,
			&r.RefPrice, &r.FillPrice, &r.Error, &ms); err != nil {
			return nil, fmt.Errorf("sqlite scan orders: %w", err)
		}
		r.Side = model.Side(side)
		r.SubmittedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
