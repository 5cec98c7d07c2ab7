// Package indicator computes statistical indicators over a trailing window
// of closing prices.
//
// All arithmetic is decimal; the only float round-trip is the square root
// inside the standard deviation, which never feeds back into ledger math.
// The calculator is a pure function of its input window: no side effects,
// nothing persisted.
package indicator

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData is returned when the price window is shorter than
// the configured moving-average period.
var ErrInsufficientData = errors.New("indicator: insufficient data")

// Periods for the optional confirmation indicators. Their absence does not
// block signal generation.
const (
	RSIPeriod = 14
	EMAPeriod = 20
)

var hundred = decimal.NewFromInt(100)

// Snapshot holds the derived indicator values for one analysis cycle.
// Ephemeral: recomputed every cycle from the trailing window, never stored.
type Snapshot struct {
	SMA       decimal.Decimal `json:"sma"`
	StdDev    decimal.Decimal `json:"std_dev"`
	UpperBand decimal.Decimal `json:"upper_band"`
	LowerBand decimal.Decimal `json:"lower_band"`
	ZScore    decimal.Decimal `json:"z_score"` // zero when StdDev is zero

	RSI      decimal.Decimal `json:"rsi,omitempty"`
	RSIReady bool            `json:"rsi_ready"`
	EMA      decimal.Decimal `json:"ema,omitempty"`
	EMAReady bool            `json:"ema_ready"`
}

// Calculator computes indicator snapshots for a fixed configuration.
type Calculator struct {
	maPeriod int
	bandMult decimal.Decimal
}

// NewCalculator creates a Calculator for the given moving-average period
// and Bollinger band multiplier.
func NewCalculator(maPeriod int, bandMult decimal.Decimal) *Calculator {
	return &Calculator{maPeriod: maPeriod, bandMult: bandMult}
}

// Compute derives a Snapshot from an ordered sequence of closing prices.
// Returns ErrInsufficientData when fewer than maPeriod closes are given.
func (c *Calculator) Compute(closes []decimal.Decimal) (*Snapshot, error) {
	if len(closes) < c.maPeriod {
		return nil, ErrInsufficientData
	}

	window := closes[len(closes)-c.maPeriod:]
	sma := mean(window)
	std := populationStdDev(window, sma)

	snap := &Snapshot{
		SMA:       sma,
		StdDev:    std,
		UpperBand: sma.Add(std.Mul(c.bandMult)),
		LowerBand: sma.Sub(std.Mul(c.bandMult)),
	}

	if !std.IsZero() {
		last := closes[len(closes)-1]
		snap.ZScore = last.Sub(sma).Div(std)
	}

	if len(closes) >= RSIPeriod {
		snap.RSI = rsi(closes[len(closes)-RSIPeriod:])
		snap.RSIReady = true
	}
	if len(closes) >= EMAPeriod {
		snap.EMA = ema(closes, EMAPeriod)
		snap.EMAReady = true
	}

	return snap, nil
}

func mean(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// populationStdDev divides by N, not N-1. Deliberate: tighter bands than
// sample stdev, and downstream consumers depend on this exact convention.
func populationStdDev(values []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	sumSq := decimal.Zero
	for _, v := range values {
		d := v.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(len(values))))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// rsi computes the Relative Strength Index over the given window using the
// simple average of gains and losses across its deltas.
func rsi(window []decimal.Decimal) decimal.Decimal {
	gains, losses := decimal.Zero, decimal.Zero
	for i := 1; i < len(window); i++ {
		delta := window[i].Sub(window[i-1])
		if delta.IsPositive() {
			gains = gains.Add(delta)
		} else {
			losses = losses.Sub(delta)
		}
	}
	if losses.IsZero() {
		return hundred
	}
	n := decimal.NewFromInt(int64(len(window) - 1))
	rs := gains.Div(n).Div(losses.Div(n))
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// ema computes an exponential moving average over the full window,
// seeded with the SMA of the first period closes.
func ema(closes []decimal.Decimal, period int) decimal.Decimal {
	seed := mean(closes[:period])
	if len(closes) == period {
		return seed
	}
	mult := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	oneMinus := decimal.NewFromInt(1).Sub(mult)
	cur := seed
	for _, price := range closes[period:] {
		cur = price.Mul(mult).Add(cur.Mul(oneMinus))
	}
	return cur
}
