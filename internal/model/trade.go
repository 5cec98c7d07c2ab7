package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide is the direction of an executed trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// TradeStatus is the outcome of a trade attempt.
type TradeStatus string

const (
	TradePending TradeStatus = "PENDING"
	TradeSuccess TradeStatus = "SUCCESS"
	TradeFailed  TradeStatus = "FAILED"
)

// Trade is an append-only log entry for one trade attempt.
// Never mutated after creation; failed attempts are recorded too so the
// trade log keeps a complete audit trail.
type Trade struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Side       TradeSide       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Fee        decimal.Decimal `json:"fee"`
	Status     TradeStatus     `json:"status"`
	Error      string          `json:"error,omitempty"`
	PositionID string          `json:"position_id,omitempty"`
}

// NewTrade creates a trade record with a fresh ID.
func NewTrade(side TradeSide, price, size, fee decimal.Decimal, ts time.Time) Trade {
	return Trade{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Side:      side,
		Price:     price,
		Size:      size,
		Fee:       fee,
		Status:    TradePending,
	}
}

// Notional returns price × size.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Size)
}
