// Package backtest replays historical price bars through the same signal
// engine and risk manager used live, against a simulated ledger. Decision
// logic is shared with live operation; only execution is simulated.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/config"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/risk"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/strategy"
)

// ErrNoHistoricalData is returned when the price provider yields no bars
// at all. Every other per-bar anomaly is skipped and the run continues.
var ErrNoHistoricalData = errors.New("backtest: no historical data")

// Simulator drives one backtest run. Not safe for concurrent runs; create
// one per run or call Run serially.
type Simulator struct {
	cfg     *config.Config
	engine  *strategy.Engine
	metrics model.MetricsSink

	risk      *risk.Manager
	balance   decimal.Decimal
	positions []*model.Position
	trades    []model.Trade
	totalFees decimal.Decimal
}

// New creates a Simulator from validated configuration.
func New(cfg *config.Config) *Simulator {
	return &Simulator{
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
		metrics: model.NopMetrics{},
	}
}

// SetMetrics routes signal/trade observations to the given sink.
func (s *Simulator) SetMetrics(m model.MetricsSink) {
	if m != nil {
		s.metrics = m
	}
}

// Run fetches history from the provider and simulates it.
func (s *Simulator) Run(ctx context.Context, provider model.PriceProvider) (*Result, error) {
	bars, err := provider.GetPriceHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch price history: %w", err)
	}
	return s.RunBars(bars)
}

// RunBars simulates an ordered bar sequence. The ledger is reset at the
// start of every run.
func (s *Simulator) RunBars(bars []model.PriceBar) (*Result, error) {
	if len(bars) == 0 {
		return nil, ErrNoHistoricalData
	}

	s.risk = risk.NewManager(risk.Limits{
		MaxOpenPositions: s.cfg.MaxOpenPositions,
		MaxDailyLoss:     s.cfg.MaxDailyLoss,
		MaxDrawdown:      s.cfg.MaxDrawdown,
		MaxPositionSize:  s.cfg.MaxPositionSize,
		RiskPerTrade:     s.cfg.RiskPerTrade,
	})
	s.balance = s.cfg.InitialBalance
	s.positions = nil
	s.trades = nil
	s.totalFees = decimal.Zero

	slog.Info("backtest started",
		"symbol", s.cfg.Symbol,
		"bars", len(bars),
		"initial_balance", s.cfg.InitialBalance,
		"ma_period", s.cfg.MAPeriod,
	)

	windowCap := 2 * s.cfg.MAPeriod
	var window []model.PriceBar

	for i := range bars {
		bar := bars[i]
		window = append(window, bar)
		if len(window) > windowCap {
			window = window[len(window)-windowCap:]
		}
		if len(window) < s.cfg.MAPeriod {
			continue
		}
		s.step(window, bar)
	}

	// Remaining exposure is settled at the last close so every opened
	// position is accounted for exactly once.
	final := bars[len(bars)-1]
	for _, p := range s.positions {
		if p.Status == model.PositionOpen {
			s.closePosition(p, final.Close, final, "end of simulation")
		}
	}

	result := &Result{
		Symbol:         s.cfg.Symbol,
		StartTime:      bars[0].TS,
		EndTime:        final.TS,
		Bars:           len(bars),
		InitialBalance: s.cfg.InitialBalance,
		FinalBalance:   s.balance,
		MaxDrawdown:    s.risk.GetState().MaxDrawdownObserved,
		TotalFees:      s.totalFees,
		Trades:         s.trades,
	}
	result.buildStats(s.closedPositions())

	slog.Info("backtest finished",
		"final_balance", result.FinalBalance,
		"return_percent", result.ReturnPercent,
		"trades", result.TotalTrades,
		"win_rate", result.WinRate,
		"max_drawdown", result.MaxDrawdown,
	)
	return result, nil
}

// step runs one bar through the mark/exit/signal/equity cycle.
func (s *Simulator) step(window []model.PriceBar, bar model.PriceBar) {
	price := bar.Close

	for _, p := range s.positions {
		p.MarkPrice(price)
	}

	for _, p := range s.positions {
		if p.Status != model.PositionOpen {
			continue
		}
		if ok, reason := s.risk.ShouldClosePosition(p, bar.TS); ok {
			s.closePosition(p, price, bar, reason)
		}
	}

	if sig := s.engine.Analyze(window); sig != nil && sig.Type != strategy.SignalHold {
		s.metrics.ObserveSignal(string(sig.Type), sig.Strength.InexactFloat64())
		switch sig.Type {
		case strategy.SignalBuy:
			s.tryOpen(sig, bar)
		case strategy.SignalSell:
			// A sell signal targets the earliest open position only.
			for _, p := range s.positions {
				if p.Status == model.PositionOpen {
					s.closePosition(p, price, bar, "sell signal")
					break
				}
			}
		}
	}

	equity := s.balance
	for _, p := range s.positions {
		if p.Status == model.PositionOpen {
			equity = equity.Add(p.CurrentValue())
		}
	}
	s.risk.UpdateEquity(equity)
}

// tryOpen sizes, validates and opens a LONG position for a buy signal.
// A rejected or unaffordable trade skips the bar; the run continues.
func (s *Simulator) tryOpen(sig *strategy.Signal, bar model.PriceBar) {
	proposed := s.engine.PositionSize(s.balance, sig.Price, sig.Strength)
	if !proposed.IsPositive() {
		return
	}

	assessment := s.risk.ValidateTrade(sig, proposed, s.balance, s.positions, bar.TS)
	if !assessment.Allowed {
		s.metrics.ObserveRejection(assessment.Reason)
		slog.Debug("trade rejected", "reason", assessment.Reason, "time", bar.TS)
		return
	}

	size := assessment.Size
	notional := sig.Price.Mul(size)
	fee := notional.Mul(s.cfg.TradeFeePercent)
	cost := notional.Add(fee)
	if cost.GreaterThan(s.balance) {
		s.metrics.ObserveRejection("insufficient cash")
		return
	}

	s.balance = s.balance.Sub(cost)
	s.totalFees = s.totalFees.Add(fee)

	pos := model.NewPosition(model.SideLong, sig.Price, size, bar.TS)
	pos.StopLoss, pos.TakeProfit = s.engine.ProtectiveLevels(model.SideLong, sig.Price)
	pos.MarkPrice(sig.Price)
	s.positions = append(s.positions, pos)

	trade := model.NewTrade(model.TradeBuy, sig.Price, size, fee, bar.TS)
	trade.Status = model.TradeSuccess
	trade.PositionID = pos.ID
	s.trades = append(s.trades, trade)
	s.metrics.ObserveTrade(trade)

	slog.Debug("position opened",
		"id", pos.ID, "price", sig.Price, "size", size,
		"stop_loss", pos.StopLoss, "take_profit", pos.TakeProfit,
	)
}

// closePosition settles an open position at the given price: proceeds net
// of fee are credited, the position is fixed CLOSED, and realized pnl
// feeds the daily-loss counter.
func (s *Simulator) closePosition(p *model.Position, price decimal.Decimal, bar model.PriceBar, reason string) {
	notional := price.Mul(p.Size)
	fee := notional.Mul(s.cfg.TradeFeePercent)
	s.balance = s.balance.Add(notional.Sub(fee))
	s.totalFees = s.totalFees.Add(fee)

	p.Close(price, bar.TS)
	s.risk.RecordPnL(p.PnL, bar.TS)

	trade := model.NewTrade(model.TradeSell, price, p.Size, fee, bar.TS)
	trade.Status = model.TradeSuccess
	trade.PositionID = p.ID
	s.trades = append(s.trades, trade)
	s.metrics.ObserveTrade(trade)

	slog.Debug("position closed",
		"id", p.ID, "price", price, "pnl", p.PnL, "reason", reason,
	)
}

func (s *Simulator) closedPositions() []*model.Position {
	var closed []*model.Position
	for _, p := range s.positions {
		if p.Status == model.PositionClosed {
			closed = append(closed, p)
		}
	}
	return closed
}
