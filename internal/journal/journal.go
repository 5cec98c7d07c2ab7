// Package journal persists trades and backtest result snapshots to SQLite
// for audit and offline reporting.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/backtest"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// Journal is a single-writer SQLite store. Decimal quantities are stored
// as TEXT to keep exact values across the round trip.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the journal database.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          TEXT PRIMARY KEY,
		ts          DATETIME NOT NULL,
		side        TEXT NOT NULL,
		price       TEXT NOT NULL,
		size        TEXT NOT NULL,
		fee         TEXT NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		position_id TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
	CREATE INDEX IF NOT EXISTS idx_trades_position ON trades(position_id);

	CREATE TABLE IF NOT EXISTS backtests (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol          TEXT NOT NULL,
		start_time      DATETIME NOT NULL,
		end_time        DATETIME NOT NULL,
		bars            INTEGER NOT NULL,
		initial_balance TEXT NOT NULL,
		final_balance   TEXT NOT NULL,
		return_percent  TEXT NOT NULL,
		total_trades    INTEGER NOT NULL,
		win_rate        TEXT NOT NULL,
		sharpe_ratio    TEXT NOT NULL,
		max_drawdown    TEXT NOT NULL,
		data            TEXT NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("trade journal opened", "path", path)
	return &Journal{db: db}, nil
}

// RecordTrade persists one trade log entry.
func (j *Journal) RecordTrade(t model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (id, ts, side, price, size, fee, status, error, position_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Timestamp.Format(time.RFC3339Nano),
		string(t.Side),
		t.Price.String(),
		t.Size.String(),
		t.Fee.String(),
		string(t.Status),
		t.Error,
		t.PositionID,
	)
	return err
}

// RecentTrades returns the last N trades, newest first.
func (j *Journal) RecentTrades(limit int) ([]model.Trade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, ts, side, price, size, fee, status, error, position_id
		 FROM trades ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var (
			t                model.Trade
			ts, side, status string
			price, size, fee string
			errMsg, posID    sql.NullString
		)
		if err := rows.Scan(&t.ID, &ts, &side, &price, &size, &fee, &status, &errMsg, &posID); err != nil {
			continue
		}
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		t.Side = model.TradeSide(side)
		t.Status = model.TradeStatus(status)
		t.Error = errMsg.String
		t.PositionID = posID.String
		if t.Price, err = decimal.NewFromString(price); err != nil {
			continue
		}
		if t.Size, err = decimal.NewFromString(size); err != nil {
			continue
		}
		if t.Fee, err = decimal.NewFromString(fee); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecordBacktest persists a result snapshot: summary columns for querying
// plus the full JSON document. Returns the row id.
func (j *Journal) RecordBacktest(r *backtest.Result) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := r.JSON()
	if err != nil {
		return 0, fmt.Errorf("marshal result: %w", err)
	}

	res, err := j.db.Exec(
		`INSERT INTO backtests (symbol, start_time, end_time, bars, initial_balance, final_balance,
		                        return_percent, total_trades, win_rate, sharpe_ratio, max_drawdown, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Symbol,
		r.StartTime.Format(time.RFC3339),
		r.EndTime.Format(time.RFC3339),
		r.Bars,
		r.InitialBalance.String(),
		r.FinalBalance.String(),
		r.ReturnPercent.String(),
		r.TotalTrades,
		r.WinRate.String(),
		r.SharpeRatio.String(),
		r.MaxDrawdown.String(),
		string(data),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
