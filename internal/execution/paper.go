// Package execution provides the simulated execution sink used for paper
// trading. Fills are immediate at the requested price plus configurable
// slippage; no real orders leave the process.
package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

var bpsDivisor = decimal.NewFromInt(10000)

// PaperConfig tunes the simulated fill model.
type PaperConfig struct {
	FeePercent  decimal.Decimal // fraction of notional, e.g. 0.003
	SlippageBps int64           // basis points against the taker, e.g. 5 = 0.05%
}

// PaperExecutor fills every trade instantly and keeps an in-memory fill
// log for inspection.
type PaperExecutor struct {
	mu    sync.RWMutex
	cfg   PaperConfig
	fills []model.Trade
}

// NewPaperExecutor creates a paper trading executor.
func NewPaperExecutor(cfg PaperConfig) *PaperExecutor {
	return &PaperExecutor{cfg: cfg}
}

// ExecuteTrade simulates a fill. Slippage moves the price against the
// taker: buys fill higher, sells fill lower. Invalid requests come back
// as FAILED trades rather than errors so the caller's cycle continues.
func (p *PaperExecutor) ExecuteTrade(ctx context.Context, side model.TradeSide, price, size decimal.Decimal) (*model.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !price.IsPositive() || !size.IsPositive() {
		t := model.NewTrade(side, price, size, decimal.Zero, time.Now())
		t.Status = model.TradeFailed
		t.Error = "non-positive price or size"
		p.record(t)
		return &t, nil
	}

	fillPrice := price
	if p.cfg.SlippageBps > 0 {
		slip := price.Mul(decimal.NewFromInt(p.cfg.SlippageBps)).Div(bpsDivisor)
		if side == model.TradeBuy {
			fillPrice = fillPrice.Add(slip)
		} else {
			fillPrice = fillPrice.Sub(slip)
		}
	}
	fee := fillPrice.Mul(size).Mul(p.cfg.FeePercent)

	t := model.NewTrade(side, fillPrice, size, fee, time.Now())
	t.Status = model.TradeSuccess
	p.record(t)

	slog.Info("paper fill",
		"id", t.ID, "side", side, "price", fillPrice, "size", size, "fee", fee,
	)
	return &t, nil
}

// Fills returns a snapshot of all recorded fills, oldest first.
func (p *PaperExecutor) Fills() []model.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Trade, len(p.fills))
	copy(cp, p.fills)
	return cp
}

func (p *PaperExecutor) record(t model.Trade) {
	p.mu.Lock()
	p.fills = append(p.fills, t)
	p.mu.Unlock()
}

var _ model.ExecutionSink = (*PaperExecutor)(nil)
