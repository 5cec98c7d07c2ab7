package model

import (
	"context"

	"github.com/shopspring/decimal"
)

// ── External Collaborator Ports ──
// These interfaces decouple the decision core from the excluded I/O glue
// (data feeds, order routing, dashboards). Each implementation satisfies
// one or more of these interfaces.

// PriceProvider serves historical bars and the latest price.
// The core treats it as read-only and pull-based.
type PriceProvider interface {
	// GetPriceHistory returns an ordered bar sequence
	// (ascending timestamp, no gaps assumed).
	GetPriceHistory(ctx context.Context) ([]PriceBar, error)

	// GetCurrentPrice returns the most recent traded price.
	GetCurrentPrice(ctx context.Context) (decimal.Decimal, error)
}

// ExecutionSink submits an approved trade to a market.
// A nil Trade or a FAILED status signals a non-fatal failure the caller
// logs and moves past.
type ExecutionSink interface {
	ExecuteTrade(ctx context.Context, side TradeSide, price, size decimal.Decimal) (*Trade, error)
}

// MetricsSink accepts signal, trade, and periodic risk-metric events.
// Fire-and-forget: implementations must never affect core control flow.
type MetricsSink interface {
	// ObserveSignal records an emitted trading signal.
	ObserveSignal(signalType string, strength float64)

	// ObserveTrade records an executed or failed trade.
	ObserveTrade(t Trade)

	// ObserveRejection records a trade rejected by risk policy.
	ObserveRejection(reason string)

	// ObserveRisk records the periodic risk snapshot.
	ObserveRisk(equity, drawdown, dailyLoss decimal.Decimal)
}

// NopMetrics is a MetricsSink that discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveSignal(string, float64)       {}
func (NopMetrics) ObserveTrade(Trade)                  {}
func (NopMetrics) ObserveRejection(string)             {}
func (NopMetrics) ObserveRisk(_, _, _ decimal.Decimal) {}

var _ MetricsSink = NopMetrics{}
