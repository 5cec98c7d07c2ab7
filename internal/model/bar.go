package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents a single OHLCV observation for the traded instrument.
// All prices use decimal.Decimal to avoid floating-point drift across
// thousands of simulated ticks. Bars are immutable once produced and are
// assumed ordered by non-decreasing timestamp.
type PriceBar struct {
	TS     time.Time       `json:"ts"` // bar start time (UTC)
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Source string          `json:"source"` // data source identifier, e.g. "csv", "redis"
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *PriceBar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// Closes extracts closing prices from an ordered bar sequence.
func Closes(bars []PriceBar) []decimal.Decimal {
	closes := make([]decimal.Decimal, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}
	return closes
}
