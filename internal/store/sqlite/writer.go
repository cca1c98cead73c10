// Package sqlite is the offline bar store and order journal.
//
// Bars are keyed by (symbol, timeframe, ts) so repeated syncs overwrite
// instead of duplicating. The store implements model.BarSource and
// execution.Journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signaldesk/internal/model"
)

const defaultBatchSize = 500

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signaldesk.db"
}

// Store is a SQLite-backed bar store and order journal.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "path", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			client_order_id TEXT    NOT NULL,
			order_id        TEXT,
			mode            TEXT    NOT NULL,
			symbol          TEXT    NOT NULL,
			side            TEXT    NOT NULL,
			qty             TEXT    NOT NULL,
			status          TEXT    NOT NULL,
			ref_price       REAL,
			fill_price      TEXT,
			error           TEXT,
			submitted_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
		CREATE INDEX IF NOT EXISTS idx_orders_submitted_at ON orders(submitted_at);
	`)
	return err
}

// SaveBars upserts bars for symbol/timeframe in batched transactions and
// returns how many rows were written.
func (s *Store) SaveBars(ctx context.Context, symbol string, tf model.Timeframe, bars []model.Bar) (int, error) {
	written := 0
	for start := 0; start < len(bars); start += defaultBatchSize {
		end := start + defaultBatchSize
		if end > len(bars) {
			end = len(bars)
		}
		t0 := time.Now()
		if err := s.insertBatch(ctx, symbol, tf, bars[start:end]); err != nil {
			return written, fmt.Errorf("sqlite save bars %s %s: %w", symbol, tf, err)
		}
		written += end - start
		slog.Debug("sqlite committed bars", "symbol", symbol, "timeframe", tf.String(), "count", end-start, "took", time.Since(t0))
	}
	return written, nil
}

// insertBatch inserts a batch of bars in a single transaction.
func (s *Store) insertBatch(ctx context.Context, symbol string, tf model.Timeframe, bars []model.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if err := b.Validate(); err != nil {
			tx.Rollback()
			return err
		}
		_, err := stmt.ExecContext(ctx, symbol, tf.String(), b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RecordOrder implements execution.Journal.
func (s *Store) RecordOrder(ctx context.Context, rec model.OrderRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (client_order_id, order_id, mode, symbol, side, qty, status, ref_price, fill_price, error, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ClientOrderID, rec.OrderID, rec.Mode, rec.Symbol, string(rec.Side), rec.Qty, rec.Status,
		rec.RefPrice, rec.FillPrice, rec.Error, rec.SubmittedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite record order: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
