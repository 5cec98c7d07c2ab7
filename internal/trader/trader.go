// Package trader runs the live trading cycle: pull bars, analyze, manage
// exits, and route approved trades to an execution sink. The cycle body is
// the same decision path the backtest simulator drives, so paper results
// and live behavior stay comparable.
package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/config"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/risk"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/strategy"
)

// Trader owns the account ledger for one instrument. All state is mutated
// only from the cycle goroutine; accessors return copies.
type Trader struct {
	cfg      *config.Config
	engine   *strategy.Engine
	risk     *risk.Manager
	dedup    *strategy.Dedup
	provider model.PriceProvider
	sink     model.ExecutionSink
	metrics  model.MetricsSink

	onTrade func(model.Trade)
	onCycle func(time.Duration, error)

	balance   decimal.Decimal
	positions []*model.Position
}

// New creates a Trader from validated configuration.
func New(cfg *config.Config, provider model.PriceProvider, sink model.ExecutionSink) *Trader {
	return &Trader{
		cfg: cfg,
		engine: strategy.NewEngine(strategy.Params{
			MAPeriod:          cfg.MAPeriod,
			StdDevMultiplier:  cfg.StdDevMultiplier,
			EntryThreshold:    cfg.EntryThreshold,
			ExitThreshold:     cfg.ExitThreshold,
			MinVolume:         cfg.MinVolume,
			MaxPositionSize:   cfg.MaxPositionSize,
			RiskPerTrade:      cfg.RiskPerTrade,
			StopLossPercent:   cfg.StopLossPercent,
			TakeProfitPercent: cfg.TakeProfitPercent,
		}),
		risk: risk.NewManager(risk.Limits{
			MaxOpenPositions: cfg.MaxOpenPositions,
			MaxDailyLoss:     cfg.MaxDailyLoss,
			MaxDrawdown:      cfg.MaxDrawdown,
			MaxPositionSize:  cfg.MaxPositionSize,
			RiskPerTrade:     cfg.RiskPerTrade,
		}),
		dedup:    strategy.NewDedup(cfg.CycleInterval * 5),
		provider: provider,
		sink:     sink,
		metrics:  model.NopMetrics{},
		balance:  cfg.InitialBalance,
	}
}

// SetMetrics routes observations to the given sink.
func (t *Trader) SetMetrics(m model.MetricsSink) {
	if m != nil {
		t.metrics = m
	}
}

// OnTrade registers a callback invoked for every trade attempt, including
// failed ones. Used to journal the audit log.
func (t *Trader) OnTrade(fn func(model.Trade)) { t.onTrade = fn }

// OnCycle registers a callback invoked after every cycle with its
// duration and outcome.
func (t *Trader) OnCycle(fn func(time.Duration, error)) { t.onCycle = fn }

// Balance returns the current cash balance.
func (t *Trader) Balance() decimal.Decimal { return t.balance }

// OpenPositions returns a snapshot of the OPEN positions.
func (t *Trader) OpenPositions() []*model.Position {
	var open []*model.Position
	for _, p := range t.positions {
		if p.Status == model.PositionOpen {
			cp := *p
			open = append(open, &cp)
		}
	}
	return open
}

// Run executes cycles at the configured interval until ctx is cancelled.
// Cycles never overlap: a slow cycle delays the next tick rather than
// running concurrently with it. A failed cycle is logged and the loop
// continues.
func (t *Trader) Run(ctx context.Context) error {
	slog.Info("trader started",
		"symbol", t.cfg.Symbol,
		"interval", t.cfg.CycleInterval,
		"balance", t.balance,
	)

	ticker := time.NewTicker(t.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("trader stopped", "balance", t.balance)
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			err := t.RunCycle(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("cycle failed", "err", err)
			}
			if t.onCycle != nil {
				t.onCycle(time.Since(start), err)
			}
		}
	}
}

// RunCycle executes one analysis cycle against the current market state.
func (t *Trader) RunCycle(ctx context.Context) error {
	bars, err := t.provider.GetPriceHistory(ctx)
	if err != nil {
		return fmt.Errorf("fetch price history: %w", err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("price provider returned no bars")
	}

	now := time.Now()
	price := bars[len(bars)-1].Close

	for _, p := range t.positions {
		p.MarkPrice(price)
	}
	for _, p := range t.positions {
		if p.Status != model.PositionOpen {
			continue
		}
		if ok, reason := t.risk.ShouldClosePosition(p, now); ok {
			t.closePosition(ctx, p, price, reason)
		}
	}

	if sig := t.engine.Analyze(bars); sig != nil && sig.Type != strategy.SignalHold && t.dedup.Allow(sig) {
		t.metrics.ObserveSignal(string(sig.Type), sig.Strength.InexactFloat64())
		slog.Info("signal",
			"type", sig.Type, "strength", sig.Strength, "price", sig.Price, "reason", sig.Reason,
		)
		switch sig.Type {
		case strategy.SignalBuy:
			t.tryOpen(ctx, sig, now)
		case strategy.SignalSell:
			for _, p := range t.positions {
				if p.Status == model.PositionOpen {
					t.closePosition(ctx, p, price, "sell signal")
					break
				}
			}
		}
	}

	equity := t.balance
	for _, p := range t.positions {
		if p.Status == model.PositionOpen {
			equity = equity.Add(p.CurrentValue())
		}
	}
	t.risk.UpdateEquity(equity)
	t.metrics.ObserveRisk(equity, t.risk.Drawdown(equity), t.risk.GetState().DailyLoss)
	return nil
}

func (t *Trader) tryOpen(ctx context.Context, sig *strategy.Signal, now time.Time) {
	proposed := t.engine.PositionSize(t.balance, sig.Price, sig.Strength)
	if !proposed.IsPositive() {
		return
	}

	assessment := t.risk.ValidateTrade(sig, proposed, t.balance, t.positions, now)
	if !assessment.Allowed {
		t.metrics.ObserveRejection(assessment.Reason)
		slog.Info("trade rejected", "reason", assessment.Reason)
		return
	}

	trade, err := t.sink.ExecuteTrade(ctx, model.TradeBuy, sig.Price, assessment.Size)
	if err != nil {
		slog.Error("buy execution error", "err", err)
		return
	}
	if trade == nil || trade.Status != model.TradeSuccess {
		t.recordTrade(trade)
		slog.Warn("buy not filled", "status", tradeStatus(trade))
		return
	}

	cost := trade.Price.Mul(trade.Size).Add(trade.Fee)
	if cost.GreaterThan(t.balance) {
		slog.Warn("fill exceeds balance, ignoring", "cost", cost, "balance", t.balance)
		t.recordTrade(trade)
		return
	}
	t.balance = t.balance.Sub(cost)

	pos := model.NewPosition(model.SideLong, trade.Price, trade.Size, now)
	pos.StopLoss, pos.TakeProfit = t.engine.ProtectiveLevels(model.SideLong, trade.Price)
	pos.MarkPrice(trade.Price)
	t.positions = append(t.positions, pos)
	trade.PositionID = pos.ID
	t.recordTrade(trade)

	slog.Info("position opened",
		"id", pos.ID, "price", trade.Price, "size", trade.Size,
		"stop_loss", pos.StopLoss, "take_profit", pos.TakeProfit,
	)
}

func (t *Trader) closePosition(ctx context.Context, p *model.Position, price decimal.Decimal, reason string) {
	trade, err := t.sink.ExecuteTrade(ctx, model.TradeSell, price, p.Size)
	if err != nil {
		slog.Error("sell execution error", "id", p.ID, "err", err)
		return
	}
	if trade != nil {
		trade.PositionID = p.ID
	}
	t.recordTrade(trade)
	if trade == nil || trade.Status != model.TradeSuccess {
		slog.Warn("sell not filled, position stays open", "id", p.ID, "status", tradeStatus(trade))
		return
	}

	t.balance = t.balance.Add(trade.Price.Mul(trade.Size).Sub(trade.Fee))
	p.Close(trade.Price, trade.Timestamp)
	t.risk.RecordPnL(p.PnL, trade.Timestamp)

	slog.Info("position closed",
		"id", p.ID, "price", trade.Price, "pnl", p.PnL, "reason", reason,
	)
}

func (t *Trader) recordTrade(trade *model.Trade) {
	if trade == nil {
		return
	}
	t.metrics.ObserveTrade(*trade)
	if t.onTrade != nil {
		t.onTrade(*trade)
	}
}

func tradeStatus(t *model.Trade) string {
	if t == nil {
		return "nil"
	}
	return string(t.Status)
}
