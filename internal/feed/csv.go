// Package feed provides PriceProvider implementations over CSV files,
// SQLite history, and a Redis rolling bar cache.
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// ErrNoBars is returned when a provider has nothing to serve.
var ErrNoBars = fmt.Errorf("feed: no bars available")

// CSVProvider serves a fixed bar sequence loaded from a CSV file.
// Columns: timestamp,open,high,low,close,volume. Timestamps are unix
// seconds or RFC 3339; a header row is detected and skipped.
type CSVProvider struct {
	bars []model.PriceBar
}

// LoadCSV reads and validates a bar file. Bars must arrive in
// non-decreasing timestamp order.
func LoadCSV(path string) (*CSVProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	r.TrimLeadingSpace = true

	var bars []model.PriceBar
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++

		if line == 1 && strings.EqualFold(record[0], "timestamp") {
			continue
		}

		bar, err := parseBar(record)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if n := len(bars); n > 0 && bar.TS.Before(bars[n-1].TS) {
			return nil, fmt.Errorf("csv line %d: timestamp %s out of order", line, bar.TS)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	return &CSVProvider{bars: bars}, nil
}

// Bars returns the number of loaded bars.
func (p *CSVProvider) Bars() int { return len(p.bars) }

func (p *CSVProvider) GetPriceHistory(ctx context.Context) ([]model.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.PriceBar, len(p.bars))
	copy(out, p.bars)
	return out, nil
}

func (p *CSVProvider) GetCurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return p.bars[len(p.bars)-1].Close, nil
}

func parseBar(record []string) (model.PriceBar, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return model.PriceBar{}, err
	}

	fields := [5]decimal.Decimal{}
	for i, name := range [5]string{"open", "high", "low", "close", "volume"} {
		v, err := decimal.NewFromString(strings.TrimSpace(record[i+1]))
		if err != nil {
			return model.PriceBar{}, fmt.Errorf("parse %s %q: %w", name, record[i+1], err)
		}
		fields[i] = v
	}

	return model.PriceBar{
		TS:     ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
		Source: "csv",
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

var _ model.PriceProvider = (*CSVProvider)(nil)
