package feed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// BarStore persists bar history to SQLite. Prices are stored as TEXT so
// the decimal round trip is exact.
type BarStore struct {
	db *sql.DB
}

// OpenBarStore opens (or creates) the bar database with WAL mode and a
// single-writer connection pool.
func OpenBarStore(path string) (*BarStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   TEXT    NOT NULL,
			high   TEXT    NOT NULL,
			low    TEXT    NOT NULL,
			close  TEXT    NOT NULL,
			volume TEXT    NOT NULL,
			source TEXT,
			PRIMARY KEY (symbol, ts)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("bar store opened", "path", path)
	return &BarStore{db: db}, nil
}

// SaveBars inserts a batch in a single transaction, replacing any bar
// already stored for the same timestamp.
func (s *BarStore) SaveBars(symbol string, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(symbol, b.TS.Unix(),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(),
			b.Volume.String(), b.Source)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// History returns up to limit bars for the symbol, ascending by time.
func (s *BarStore) History(symbol string, limit int) ([]model.PriceBar, error) {
	rows, err := s.db.Query(`
		SELECT ts, open, high, low, close, volume, source FROM (
			SELECT * FROM bars WHERE symbol = ? ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC
	`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []model.PriceBar
	for rows.Next() {
		var (
			ts     int64
			o, h   string
			l, c   string
			v      string
			source sql.NullString
		)
		if err := rows.Scan(&ts, &o, &h, &l, &c, &v, &source); err != nil {
			return nil, err
		}
		bar, err := barFromStrings(ts, o, h, l, c, v, source.String)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// Provider wraps the store as a pull-based PriceProvider for one symbol.
func (s *BarStore) Provider(symbol string, limit int) model.PriceProvider {
	return &storeProvider{store: s, symbol: symbol, limit: limit}
}

// Close closes the database.
func (s *BarStore) Close() error {
	return s.db.Close()
}

type storeProvider struct {
	store  *BarStore
	symbol string
	limit  int
}

func (p *storeProvider) GetPriceHistory(ctx context.Context) ([]model.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.store.History(p.symbol, p.limit)
}

func (p *storeProvider) GetCurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	bars, err := p.store.History(p.symbol, 1)
	if err != nil {
		return decimal.Zero, err
	}
	if len(bars) == 0 {
		return decimal.Zero, ErrNoBars
	}
	return bars[len(bars)-1].Close, nil
}

func barFromStrings(ts int64, o, h, l, c, v, source string) (model.PriceBar, error) {
	bar := model.PriceBar{TS: time.Unix(ts, 0).UTC(), Source: source}
	var err error
	if bar.Open, err = decimal.NewFromString(o); err != nil {
		return bar, fmt.Errorf("parse open: %w", err)
	}
	if bar.High, err = decimal.NewFromString(h); err != nil {
		return bar, fmt.Errorf("parse high: %w", err)
	}
	if bar.Low, err = decimal.NewFromString(l); err != nil {
		return bar, fmt.Errorf("parse low: %w", err)
	}
	if bar.Close, err = decimal.NewFromString(c); err != nil {
		return bar, fmt.Errorf("parse close: %w", err)
	}
	if bar.Volume, err = decimal.NewFromString(v); err != nil {
		return bar, fmt.Errorf("parse volume: %w", err)
	}
	return bar, nil
}
