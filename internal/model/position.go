package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionSide is the direction of a position.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// PositionStatus is the lifecycle state of a position.
// A position transitions PENDING → OPEN → CLOSED exactly once;
// after CLOSED it is immutable history.
type PositionStatus string

const (
	PositionPending PositionStatus = "PENDING"
	PositionOpen    PositionStatus = "OPEN"
	PositionClosed  PositionStatus = "CLOSED"
)

// Position represents a tracked trading position.
// CurrentPrice, PnL and PnLPercent are refreshed every cycle while OPEN
// via MarkPrice; for CLOSED positions they are fixed at the closing
// price's values and never recomputed.
type Position struct {
	ID           string          `json:"id"`
	Side         PositionSide    `json:"side"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	EntryTime    time.Time       `json:"entry_time"`
	Size         decimal.Decimal `json:"size"`
	StopLoss     decimal.Decimal `json:"stop_loss,omitempty"`   // zero = not set
	TakeProfit   decimal.Decimal `json:"take_profit,omitempty"` // zero = not set
	CurrentPrice decimal.Decimal `json:"current_price,omitempty"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
	Status       PositionStatus  `json:"status"`
	ExitTime     time.Time       `json:"exit_time,omitempty"`
}

// NewPosition creates an OPEN position with a fresh ID.
func NewPosition(side PositionSide, entryPrice, size decimal.Decimal, entryTime time.Time) *Position {
	return &Position{
		ID:         uuid.NewString(),
		Side:       side,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
		Size:       size,
		Status:     PositionOpen,
	}
}

// MarkPrice refreshes CurrentPrice, PnL and PnLPercent against the given
// market price. No-op unless the position is OPEN.
func (p *Position) MarkPrice(price decimal.Decimal) {
	if p.Status != PositionOpen {
		return
	}
	p.CurrentPrice = price
	p.PnL = p.pnlAt(price)
	p.PnLPercent = p.pnlPercentAt(price)
}

// Close transitions the position to CLOSED, fixing PnL at the exit price.
// No-op if the position is already CLOSED.
func (p *Position) Close(exitPrice decimal.Decimal, exitTime time.Time) {
	if p.Status == PositionClosed {
		return
	}
	p.CurrentPrice = exitPrice
	p.PnL = p.pnlAt(exitPrice)
	p.PnLPercent = p.pnlPercentAt(exitPrice)
	p.Status = PositionClosed
	p.ExitTime = exitTime
}

// Marked reports whether a current price has been set, i.e. whether
// PnL/PnLPercent are defined.
func (p *Position) Marked() bool {
	return !p.CurrentPrice.IsZero()
}

// CurrentValue returns the mark-to-market notional of the position,
// falling back to the entry price when no mark is available.
func (p *Position) CurrentValue() decimal.Decimal {
	if p.Marked() {
		return p.CurrentPrice.Mul(p.Size)
	}
	return p.EntryPrice.Mul(p.Size)
}

// Age returns how long the position has been held as of now.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

func (p *Position) pnlAt(price decimal.Decimal) decimal.Decimal {
	if p.Side == SideShort {
		return p.EntryPrice.Sub(price).Mul(p.Size)
	}
	return price.Sub(p.EntryPrice).Mul(p.Size)
}

func (p *Position) pnlPercentAt(price decimal.Decimal) decimal.Decimal {
	basis := p.EntryPrice.Mul(p.Size)
	if basis.IsZero() {
		return decimal.Zero
	}
	return p.pnlAt(price).Div(basis).Mul(decimal.NewFromInt(100))
}
