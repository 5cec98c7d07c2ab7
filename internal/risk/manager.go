// Package risk validates proposed trades against account-level risk limits
// and evaluates exit conditions for open positions.
//
// The manager holds no positions itself (they are passed in) but tracks
// two running counters across calls: the daily realized loss and the
// peak-balance/drawdown pair. All checks run serially within one trading
// cycle; the mutex only guards against misuse from monitoring goroutines.
package risk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/strategy"
)

// Policy constants. These are the risk layer's own floors, deliberately
// stricter than the signal engine's.
var (
	exposureCap   = decimal.NewFromFloat(0.5)  // max total exposure as fraction of balance
	riskStopWidth = decimal.NewFromFloat(0.05) // assumed stop distance for risk-based sizing
	dustFloor     = decimal.NewFromInt(10)     // minimum trade notional in quote currency
	minStrength   = decimal.NewFromFloat(0.4)
	emergencyStop = decimal.NewFromInt(-10) // percent
	maxHoldTime   = 24 * time.Hour
)

// Limits defines configurable risk management thresholds.
type Limits struct {
	MaxOpenPositions int             `json:"max_open_positions"`
	MaxDailyLoss     decimal.Decimal `json:"max_daily_loss"` // quote currency
	MaxDrawdown      decimal.Decimal `json:"max_drawdown"`   // fraction of peak balance
	MaxPositionSize  decimal.Decimal `json:"max_position_size"`
	RiskPerTrade     decimal.Decimal `json:"risk_per_trade"`
}

// State is the manager's process-duration counters, reset explicitly
// (new trading day or manual reset), never implicitly.
type State struct {
	DailyLoss           decimal.Decimal `json:"daily_loss"`
	DailyLossResetAt    time.Time       `json:"daily_loss_reset_at"`
	PeakBalance         decimal.Decimal `json:"peak_balance"`
	MaxDrawdownObserved decimal.Decimal `json:"max_drawdown_observed"`
}

// Assessment is the outcome of a trade validation.
type Assessment struct {
	Allowed  bool
	Size     decimal.Decimal // approved size, possibly reduced
	Adjusted bool
	Reason   string
}

// Manager is the risk state machine over one account context.
type Manager struct {
	mu     sync.Mutex
	limits Limits

	dailyLoss        decimal.Decimal
	dailyLossResetAt time.Time
	peakBalance      decimal.Decimal
	maxDrawdownSeen  decimal.Decimal
}

// NewManager creates a Manager with the given limits.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// ValidateTrade runs the ordered risk checks against a proposed trade.
// The first failing check wins. asOf is the decision time, wall clock in
// live operation and bar time in a backtest, and drives the daily-loss
// calendar rollover.
func (m *Manager) ValidateTrade(sig *strategy.Signal, proposedSize, balance decimal.Decimal, openPositions []*model.Position, asOf time.Time) Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked(asOf)

	// 1. Position count cap.
	openCount := 0
	for _, p := range openPositions {
		if p.Status == model.PositionOpen {
			openCount++
		}
	}
	if openCount >= m.limits.MaxOpenPositions {
		return reject("max open positions reached")
	}

	// 2. Daily loss cap.
	if m.dailyLoss.GreaterThanOrEqual(m.limits.MaxDailyLoss) {
		return reject("daily loss limit reached")
	}

	// 3. Drawdown cap, re-derived fresh from the current balance.
	if balance.GreaterThan(m.peakBalance) {
		m.peakBalance = balance
	}
	if m.peakBalance.IsPositive() {
		drawdown := m.peakBalance.Sub(balance).Div(m.peakBalance)
		if drawdown.GreaterThan(m.limits.MaxDrawdown) {
			return reject("max drawdown exceeded")
		}
	}

	size := proposedSize
	adjusted := false
	adjustReason := ""

	// 4. Exposure cap: open value plus proposed notional within 50% of balance.
	exposure := decimal.Zero
	for _, p := range openPositions {
		if p.Status == model.PositionOpen {
			exposure = exposure.Add(p.CurrentValue())
		}
	}
	maxExposure := balance.Mul(exposureCap)
	headroom := maxExposure.Sub(exposure)
	if !headroom.IsPositive() {
		return reject("exposure limit reached")
	}
	if sig.Price.Mul(size).GreaterThan(headroom) {
		size = headroom.Div(sig.Price)
		adjusted = true
		adjustReason = "size reduced to exposure headroom"
	}

	// 5. Risk-based sizing ceiling.
	if sig.Price.IsPositive() {
		riskSize := balance.Mul(m.limits.RiskPerTrade).Div(sig.Price.Mul(riskStopWidth))
		capped := decimal.Min(size, riskSize, m.limits.MaxPositionSize)
		if capped.LessThan(size) {
			size = capped
			adjusted = true
			if adjustReason != "" {
				adjustReason += "; "
			}
			adjustReason += "size capped by risk-per-trade"
		}
	}

	// 6. Dust floor.
	if sig.Price.Mul(size).LessThan(dustFloor) {
		return reject("trade notional below minimum")
	}

	// 7. The risk layer's own strength floor, stricter than the engine's.
	if sig.Strength.LessThan(minStrength) {
		return reject("signal strength below risk floor")
	}

	if adjusted {
		slog.Debug("trade size adjusted", "proposed", proposedSize, "approved", size, "reason", adjustReason)
		return Assessment{Allowed: true, Size: size, Adjusted: true, Reason: adjustReason}
	}
	return Assessment{Allowed: true, Size: size}
}

func reject(reason string) Assessment {
	return Assessment{Allowed: false, Size: decimal.Zero, Reason: reason}
}

// ShouldClosePosition evaluates exit conditions for an OPEN position with a
// known current price, in priority order: stop-loss breach, take-profit
// breach, holding time, then the emergency stop. The first true condition
// wins; the returned reason is for observability.
func (m *Manager) ShouldClosePosition(p *model.Position, asOf time.Time) (bool, string) {
	if p.Status != model.PositionOpen || !p.Marked() {
		return false, ""
	}

	if !p.StopLoss.IsZero() {
		if p.Side == model.SideLong && p.CurrentPrice.LessThanOrEqual(p.StopLoss) {
			return true, "stop loss hit"
		}
		if p.Side == model.SideShort && p.CurrentPrice.GreaterThanOrEqual(p.StopLoss) {
			return true, "stop loss hit"
		}
	}

	if !p.TakeProfit.IsZero() {
		if p.Side == model.SideLong && p.CurrentPrice.GreaterThanOrEqual(p.TakeProfit) {
			return true, "take profit hit"
		}
		if p.Side == model.SideShort && p.CurrentPrice.LessThanOrEqual(p.TakeProfit) {
			return true, "take profit hit"
		}
	}

	if p.Age(asOf) > maxHoldTime {
		return true, "max holding time exceeded"
	}

	// Secondary safety net, independent of the configured stop-loss.
	if p.PnLPercent.LessThan(emergencyStop) {
		return true, "emergency stop"
	}

	return false, ""
}

// RecordPnL feeds a realized trade result into the daily-loss counter.
// Profits do not offset accumulated losses.
func (m *Manager) RecordPnL(pnl decimal.Decimal, asOf time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(asOf)
	if pnl.IsNegative() {
		m.dailyLoss = m.dailyLoss.Add(pnl.Neg())
	}
}

// UpdateEquity tracks the peak balance and the running maximum drawdown
// against total equity (cash plus mark-to-market open value).
func (m *Manager) UpdateEquity(equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if equity.GreaterThan(m.peakBalance) {
		m.peakBalance = equity
	}
	if m.peakBalance.IsPositive() {
		drawdown := m.peakBalance.Sub(equity).Div(m.peakBalance)
		if drawdown.GreaterThan(m.maxDrawdownSeen) {
			m.maxDrawdownSeen = drawdown
		}
	}
}

// Drawdown returns the current drawdown from peak for the given equity.
func (m *Manager) Drawdown(equity decimal.Decimal) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.peakBalance.IsPositive() {
		return decimal.Zero
	}
	return m.peakBalance.Sub(equity).Div(m.peakBalance)
}

// ResetDaily zeroes the daily-loss counter (manual reset).
func (m *Manager) ResetDaily(asOf time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyLoss = decimal.Zero
	m.dailyLossResetAt = asOf
}

// GetState returns a snapshot of the manager's counters.
func (m *Manager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		DailyLoss:           m.dailyLoss,
		DailyLossResetAt:    m.dailyLossResetAt,
		PeakBalance:         m.peakBalance,
		MaxDrawdownObserved: m.maxDrawdownSeen,
	}
}

// rolloverLocked resets the daily-loss counter the first time a check
// crosses a local calendar day boundary. Caller holds the mutex.
func (m *Manager) rolloverLocked(asOf time.Time) {
	if m.dailyLossResetAt.IsZero() {
		m.dailyLossResetAt = asOf
		return
	}
	cy, cm, cd := m.dailyLossResetAt.Local().Date()
	ny, nm, nd := asOf.Local().Date()
	if cy != ny || cm != nm || cd != nd {
		m.dailyLoss = decimal.Zero
		m.dailyLossResetAt = asOf
	}
}
