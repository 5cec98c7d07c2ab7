// Package strategy provides the mean-reversion signal engine.
//
// The engine maps (current price, indicators, volume) to a typed trading
// signal with a strength score and a human-readable rationale. Output is
// deterministic given identical inputs; the engine holds no mutable state
// beyond its configured parameters.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/indicator"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// SignalType classifies a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal represents one analysis cycle's trading decision.
// Produced once per cycle and consumed immediately or discarded.
type Signal struct {
	Type       SignalType         `json:"type"`
	Strength   decimal.Decimal    `json:"strength"` // [0,1]
	Price      decimal.Decimal    `json:"price"`
	Timestamp  time.Time          `json:"timestamp"`
	Indicators indicator.Snapshot `json:"indicators"`
	Reason     string             `json:"reason"`
}

// Params are the engine's configured parameters. Immutable after
// construction; pass a fresh Params to build a different engine.
type Params struct {
	MAPeriod          int
	StdDevMultiplier  decimal.Decimal // strong-signal z-score threshold
	EntryThreshold    decimal.Decimal // moderate-signal z-score threshold
	ExitThreshold     decimal.Decimal // below this |z| the market is neutral
	MinVolume         decimal.Decimal
	MaxPositionSize   decimal.Decimal
	RiskPerTrade      decimal.Decimal
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
}

// Strength bounds and floors.
var (
	strengthCap     = decimal.NewFromInt(1)
	strongCapDiv    = decimal.NewFromInt(3)
	moderateCapDiv  = decimal.NewFromInt(2)
	moderateCeiling = decimal.NewFromFloat(0.7)
	holdStrength    = decimal.NewFromFloat(0.1)
	actionableFloor = decimal.NewFromFloat(0.3)

	rsiOversold   = decimal.NewFromInt(30)
	rsiOverbought = decimal.NewFromInt(70)

	boostRSI  = decimal.NewFromFloat(0.2)
	boostBand = decimal.NewFromFloat(0.1)
	boostEMA  = decimal.NewFromFloat(0.05)
)

// Engine is the mean-reversion signal engine.
type Engine struct {
	params Params
	calc   *indicator.Calculator
}

// NewEngine creates a signal engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{
		params: params,
		calc:   indicator.NewCalculator(params.MAPeriod, params.StdDevMultiplier),
	}
}

// Params returns the engine's configured parameters.
func (e *Engine) Params() Params { return e.params }

// Analyze runs the mean-reversion decision policy against the trailing bar
// window. Returns nil when there is no actionable outcome: insufficient
// data, an illiquid tick, a z-score outside every classified band, or a
// BUY/SELL whose final strength falls below the actionable floor.
func (e *Engine) Analyze(bars []model.PriceBar) *Signal {
	if len(bars) == 0 {
		return nil
	}
	last := bars[len(bars)-1]

	// Illiquid ticks are not acted on.
	if last.Volume.LessThan(e.params.MinVolume) {
		return nil
	}

	snap, err := e.calc.Compute(model.Closes(bars))
	if err != nil {
		return nil
	}
	// Zero variance: no z-score exists, nothing to classify.
	if snap.StdDev.IsZero() {
		return nil
	}

	z := snap.ZScore
	absZ := z.Abs()

	var sigType SignalType
	var strength decimal.Decimal
	var reason string

	switch {
	case z.LessThanOrEqual(e.params.StdDevMultiplier.Neg()):
		sigType = SignalBuy
		strength = decimal.Min(absZ.Div(strongCapDiv), strengthCap)
		reason = "strong oversold"
	case z.GreaterThanOrEqual(e.params.StdDevMultiplier):
		sigType = SignalSell
		strength = decimal.Min(absZ.Div(strongCapDiv), strengthCap)
		reason = "strong overbought"
	case z.LessThanOrEqual(e.params.EntryThreshold.Neg()):
		sigType = SignalBuy
		strength = decimal.Min(absZ.Div(moderateCapDiv), moderateCeiling)
		reason = "moderate oversold"
	case z.GreaterThanOrEqual(e.params.EntryThreshold):
		sigType = SignalSell
		strength = decimal.Min(absZ.Div(moderateCapDiv), moderateCeiling)
		reason = "moderate overbought"
	case absZ.LessThan(e.params.ExitThreshold):
		// Informative only; exit logic lives in the risk manager.
		return &Signal{
			Type:       SignalHold,
			Strength:   holdStrength,
			Price:      last.Close,
			Timestamp:  last.TS,
			Indicators: *snap,
			Reason:     "neutral zone",
		}
	default:
		// Between the neutral zone and the entry threshold: no signal.
		return nil
	}

	strength, reason = e.applyConfirmations(sigType, last.Close, snap, strength, reason)

	// Floor for an actionable signal.
	if strength.LessThan(actionableFloor) {
		return nil
	}

	return &Signal{
		Type:       sigType,
		Strength:   strength,
		Price:      last.Close,
		Timestamp:  last.TS,
		Indicators: *snap,
		Reason:     reason,
	}
}

// applyConfirmations walks the ordered list of scoring adjustments,
// applying each only when its indicator is available. Boosts are additive
// and the result is capped at 1.0.
func (e *Engine) applyConfirmations(sigType SignalType, price decimal.Decimal, snap *indicator.Snapshot, strength decimal.Decimal, reason string) (decimal.Decimal, string) {
	for _, conf := range confirmations {
		boost, note, ok := conf(sigType, price, snap)
		if !ok {
			continue
		}
		strength = decimal.Min(strength.Add(boost), strengthCap)
		reason += ", " + note
	}
	return strength, reason
}

// confirmation inspects the snapshot and reports a strength boost when its
// condition holds. ok=false means the condition did not fire (or the
// indicator was unavailable).
type confirmation func(sigType SignalType, price decimal.Decimal, snap *indicator.Snapshot) (boost decimal.Decimal, note string, ok bool)

// confirmations in application order: RSI extremes, band breaches, then the
// EMA trend check. The EMA boost rewards counter-trend reversion setups.
var confirmations = []confirmation{
	func(sigType SignalType, _ decimal.Decimal, snap *indicator.Snapshot) (decimal.Decimal, string, bool) {
		if !snap.RSIReady {
			return decimal.Zero, "", false
		}
		if sigType == SignalBuy && snap.RSI.LessThan(rsiOversold) {
			return boostRSI, "rsi oversold", true
		}
		if sigType == SignalSell && snap.RSI.GreaterThan(rsiOverbought) {
			return boostRSI, "rsi overbought", true
		}
		return decimal.Zero, "", false
	},
	func(sigType SignalType, price decimal.Decimal, snap *indicator.Snapshot) (decimal.Decimal, string, bool) {
		if sigType == SignalBuy && price.LessThan(snap.LowerBand) {
			return boostBand, "below lower band", true
		}
		if sigType == SignalSell && price.GreaterThan(snap.UpperBand) {
			return boostBand, "above upper band", true
		}
		return decimal.Zero, "", false
	},
	func(sigType SignalType, price decimal.Decimal, snap *indicator.Snapshot) (decimal.Decimal, string, bool) {
		if !snap.EMAReady {
			return decimal.Zero, "", false
		}
		if sigType == SignalBuy && price.LessThan(snap.EMA) {
			return boostEMA, "counter-trend entry", true
		}
		if sigType == SignalSell && price.GreaterThan(snap.EMA) {
			return boostEMA, "counter-trend entry", true
		}
		return decimal.Zero, "", false
	},
}
