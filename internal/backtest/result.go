package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// Result is the aggregate snapshot of one simulation run. Computed once
// after the final bar and read-only afterward.
type Result struct {
	Symbol    string    `json:"symbol"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Bars      int       `json:"bars"`

	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	ReturnPercent  decimal.Decimal `json:"return_percent"`

	TotalTrades   int             `json:"total_trades"` // closed round trips
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"` // percent

	AverageWin   decimal.Decimal `json:"average_win"`
	AverageLoss  decimal.Decimal `json:"average_loss"` // magnitude, positive
	ProfitFactor decimal.Decimal `json:"profit_factor"`
	SharpeRatio  decimal.Decimal `json:"sharpe_ratio"`
	MaxDrawdown  decimal.Decimal `json:"max_drawdown"`
	TotalFees    decimal.Decimal `json:"total_fees"`

	Trades []model.Trade `json:"trades"`
}

// JSON serializes the result for offline reporting.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

var hundred = decimal.NewFromInt(100)

// buildStats fills the aggregate fields from the closed positions.
// Win rate counts pnl > 0; break-even round trips count as losses for
// the rate but join neither average.
func (r *Result) buildStats(closed []*model.Position) {
	if r.InitialBalance.IsPositive() {
		r.ReturnPercent = r.FinalBalance.Sub(r.InitialBalance).Div(r.InitialBalance).Mul(hundred)
	}

	r.TotalTrades = len(closed)
	if r.TotalTrades == 0 {
		return
	}

	var (
		winSum, lossSum decimal.Decimal
		returns         []decimal.Decimal
	)
	for _, p := range closed {
		switch {
		case p.PnL.IsPositive():
			r.WinningTrades++
			winSum = winSum.Add(p.PnL)
		case p.PnL.IsNegative():
			r.LosingTrades++
			lossSum = lossSum.Add(p.PnL.Neg())
		}
		returns = append(returns, p.PnLPercent)
	}

	r.WinRate = decimal.NewFromInt(int64(r.WinningTrades)).Div(decimal.NewFromInt(int64(r.TotalTrades))).Mul(hundred)
	if r.WinningTrades > 0 {
		r.AverageWin = winSum.Div(decimal.NewFromInt(int64(r.WinningTrades)))
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = lossSum.Div(decimal.NewFromInt(int64(r.LosingTrades)))
	}
	if r.LosingTrades > 0 && r.AverageLoss.IsPositive() {
		r.ProfitFactor = r.AverageWin.Div(r.AverageLoss)
	}
	r.SharpeRatio = sharpe(returns)
}

// sharpe is the simplified trade-level ratio: mean over population
// standard deviation of per-trade percent returns. Zero when fewer than
// two trades or the returns do not vary.
func sharpe(returns []decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(len(returns)))
	sum := decimal.Zero
	for _, v := range returns {
		sum = sum.Add(v)
	}
	mean := sum.Div(n)

	sq := decimal.Zero
	for _, v := range returns {
		d := v.Sub(mean)
		sq = sq.Add(d.Mul(d))
	}
	variance := sq.Div(n)
	if variance.IsZero() {
		return decimal.Zero
	}
	stdev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
	if stdev.IsZero() {
		return decimal.Zero
	}
	return mean.Div(stdev)
}
