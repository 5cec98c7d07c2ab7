package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// balanceBuffer keeps 5% of the balance out of reach of any single entry
// so fees and slippage never overdraw the account.
var balanceBuffer = decimal.NewFromFloat(0.95)

// PositionSize computes the trade size for a signal of the given strength.
// Three ceilings hold simultaneously: the strength-scaled maximum position,
// the risk-based size (risk amount over stop-loss distance), and the
// affordable size under the balance buffer. The smallest wins.
func (e *Engine) PositionSize(balance, price, strength decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}

	strengthSize := e.params.MaxPositionSize.Mul(strength)

	riskAmount := balance.Mul(e.params.RiskPerTrade)
	stopLossDistance := price.Mul(e.params.StopLossPercent)
	riskSize := strengthSize
	if stopLossDistance.IsPositive() {
		riskSize = riskAmount.Div(stopLossDistance)
	}

	affordableSize := balance.Mul(balanceBuffer).Div(price)

	return decimal.Min(strengthSize, riskSize, affordableSize)
}

// ProtectiveLevels returns the stop-loss and take-profit prices for an
// entry at the given price. For a LONG the stop sits below and the target
// above; mirrored for a SHORT.
func (e *Engine) ProtectiveLevels(side model.PositionSide, entry decimal.Decimal) (stopLoss, takeProfit decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if side == model.SideShort {
		stopLoss = entry.Mul(one.Add(e.params.StopLossPercent))
		takeProfit = entry.Mul(one.Sub(e.params.TakeProfitPercent))
		return stopLoss, takeProfit
	}
	stopLoss = entry.Mul(one.Sub(e.params.StopLossPercent))
	takeProfit = entry.Mul(one.Add(e.params.TakeProfitPercent))
	return stopLoss, takeProfit
}
