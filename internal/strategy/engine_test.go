package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// mkBars builds one bar per close, a minute apart, all with the same volume.
func mkBars(volume string, closes ...string) []model.PriceBar {
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		px := dec(c)
		bars[i] = model.PriceBar{
			TS:     baseTime.Add(time.Duration(i) * time.Minute),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: dec(volume),
			Source: "test",
		}
	}
	return bars
}

func flatBars(n int, price, volume string) []model.PriceBar {
	closes := make([]string, n)
	for i := range closes {
		closes[i] = price
	}
	return mkBars(volume, closes...)
}

func testParams() Params {
	return Params{
		MAPeriod:          20,
		StdDevMultiplier:  dec("2"),
		EntryThreshold:    dec("1"),
		ExitThreshold:     dec("0.5"),
		MinVolume:         dec("10"),
		MaxPositionSize:   dec("100"),
		RiskPerTrade:      dec("0.02"),
		StopLossPercent:   dec("0.05"),
		TakeProfitPercent: dec("0.1"),
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	engine := NewEngine(testParams())
	for n := 0; n < 20; n++ {
		if sig := engine.Analyze(flatBars(n, "100", "1000")); sig != nil {
			t.Fatalf("window of %d bars: expected nil signal, got %+v", n, sig)
		}
	}
}

func TestAnalyzeVolumeFloor(t *testing.T) {
	engine := NewEngine(testParams())
	bars := append(flatBars(25, "100", "1000"), mkBars("5", "80")...) // final bar illiquid
	if sig := engine.Analyze(bars); sig != nil {
		t.Fatalf("expected nil signal on illiquid tick, got %+v", sig)
	}
}

func TestAnalyzeFlatSeriesNoSignal(t *testing.T) {
	engine := NewEngine(testParams())
	if sig := engine.Analyze(flatBars(30, "100", "1000")); sig != nil {
		t.Fatalf("zero-variance series must produce no signal, got %+v", sig)
	}
}

func TestAnalyzeStrongOversoldBuy(t *testing.T) {
	// 25 bars of constant 100 followed by one at 80: SMA near 100,
	// stdDev > 0, the 80 bar must yield a BUY with strength > 0.3.
	engine := NewEngine(testParams())
	bars := append(flatBars(25, "100", "1000"), mkBars("1000", "80")...)

	sig := engine.Analyze(bars)
	if sig == nil {
		t.Fatal("expected a BUY signal, got nil")
	}
	if sig.Type != SignalBuy {
		t.Errorf("Type = %s, want BUY", sig.Type)
	}
	if !sig.Strength.GreaterThan(dec("0.3")) {
		t.Errorf("Strength = %s, want > 0.3", sig.Strength)
	}
	if !sig.Strength.LessThanOrEqual(dec("1")) {
		t.Errorf("Strength = %s, want <= 1", sig.Strength)
	}
	if !sig.Price.Equal(dec("80")) {
		t.Errorf("Price = %s, want 80", sig.Price)
	}
	if sig.Indicators.ZScore.GreaterThanOrEqual(decimal.Zero) {
		t.Errorf("ZScore = %s, want negative", sig.Indicators.ZScore)
	}
}

func TestAnalyzeStrongOverboughtSell(t *testing.T) {
	engine := NewEngine(testParams())
	bars := append(flatBars(25, "100", "1000"), mkBars("1000", "120")...)

	sig := engine.Analyze(bars)
	if sig == nil {
		t.Fatal("expected a SELL signal, got nil")
	}
	if sig.Type != SignalSell {
		t.Errorf("Type = %s, want SELL", sig.Type)
	}
	if !sig.Strength.GreaterThan(dec("0.3")) {
		t.Errorf("Strength = %s, want > 0.3", sig.Strength)
	}
}

func TestAnalyzeStrengthClampedAtOne(t *testing.T) {
	// An extreme move produces a huge |z| score; strength must stay <= 1.
	engine := NewEngine(testParams())
	bars := append(flatBars(25, "100", "1000"), mkBars("1000", "1")...)

	sig := engine.Analyze(bars)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if !sig.Strength.Equal(dec("1")) {
		t.Errorf("Strength = %s, want exactly 1 for an extreme move", sig.Strength)
	}
}

func TestAnalyzeNeutralZoneHold(t *testing.T) {
	engine := NewEngine(testParams())
	// Trailing 20 closes: ten 90s, nine 110s, one 101.
	// SMA=99.55, stdDev≈9.74, z≈0.15, inside the neutral zone (|z|<0.5).
	closes := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		closes = append(closes, "90")
	}
	for i := 0; i < 9; i++ {
		closes = append(closes, "110")
	}
	closes = append(closes, "101")

	sig := engine.Analyze(mkBars("1000", closes...))
	if sig == nil {
		t.Fatal("expected a HOLD signal in the neutral zone")
	}
	if sig.Type != SignalHold {
		t.Fatalf("Type = %s, want HOLD (z=%s)", sig.Type, sig.Indicators.ZScore)
	}
	if !sig.Strength.Equal(dec("0.1")) {
		t.Errorf("Strength = %s, want 0.1", sig.Strength)
	}
	if sig.Reason != "neutral zone" {
		t.Errorf("Reason = %q, want %q", sig.Reason, "neutral zone")
	}
}

func TestAnalyzeGapBetweenExitAndEntry(t *testing.T) {
	engine := NewEngine(testParams())
	// Same base window with a last close engineered for z ≈ 0.76:
	// above the neutral zone (0.5) but below the entry threshold (1).
	closes := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		closes = append(closes, "90")
	}
	for i := 0; i < 9; i++ {
		closes = append(closes, "110")
	}
	closes = append(closes, "107")

	if sig := engine.Analyze(mkBars("1000", closes...)); sig != nil {
		t.Fatalf("expected nil signal between exit and entry thresholds, got %s (z=%s)",
			sig.Type, sig.Indicators.ZScore)
	}
}

func TestAnalyzeConfirmationBoosts(t *testing.T) {
	// With only 20 bars neither RSI nor EMA history beyond the window is
	// special, but a sharp drop makes RSI oversold and price breach the
	// lower band, so the reason string carries the confirmations.
	engine := NewEngine(testParams())
	bars := append(flatBars(25, "100", "1000"), mkBars("1000", "80")...)

	sig := engine.Analyze(bars)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	wantNotes := []string{"strong oversold", "rsi oversold", "below lower band", "counter-trend entry"}
	for _, note := range wantNotes {
		if !strings.Contains(sig.Reason, note) {
			t.Errorf("Reason %q missing %q", sig.Reason, note)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	engine := NewEngine(testParams())
	bars := append(flatBars(25, "100", "1000"), mkBars("1000", "85")...)

	first := engine.Analyze(bars)
	second := engine.Analyze(bars)
	if first == nil || second == nil {
		t.Fatal("expected signals from both runs")
	}
	if first.Type != second.Type || !first.Strength.Equal(second.Strength) || first.Reason != second.Reason {
		t.Errorf("engine output not deterministic: %+v vs %+v", first, second)
	}
}

func TestPositionSizeThreeWayMin(t *testing.T) {
	engine := NewEngine(testParams())
	balance := dec("10000")
	price := dec("100")

	// strengthSize=100×1=100, riskSize=(10000×0.02)/(100×0.05)=40,
	// affordable=10000×0.95/100=95 → risk-based ceiling wins.
	size := engine.PositionSize(balance, price, dec("1"))
	if !size.Equal(dec("40")) {
		t.Errorf("size = %s, want 40 (risk ceiling)", size)
	}

	// Low strength: strengthSize=100×0.1=10 wins.
	size = engine.PositionSize(balance, price, dec("0.1"))
	if !size.Equal(dec("10")) {
		t.Errorf("size = %s, want 10 (strength ceiling)", size)
	}
}

func TestPositionSizeAffordabilityCeiling(t *testing.T) {
	p := testParams()
	p.RiskPerTrade = dec("0.1")
	p.StopLossPercent = dec("0.01")
	engine := NewEngine(p)

	// riskSize=(1000×0.1)/(100×0.01)=100, strengthSize=100,
	// affordable=1000×0.95/100=9.5 → affordability wins.
	size := engine.PositionSize(dec("1000"), dec("100"), dec("1"))
	if !size.Equal(dec("9.5")) {
		t.Errorf("size = %s, want 9.5 (affordability ceiling)", size)
	}
}

func TestPositionSizeDegenerateInputs(t *testing.T) {
	engine := NewEngine(testParams())
	if s := engine.PositionSize(decimal.Zero, dec("100"), dec("1")); !s.IsZero() {
		t.Errorf("zero balance: size = %s, want 0", s)
	}
	if s := engine.PositionSize(dec("1000"), decimal.Zero, dec("1")); !s.IsZero() {
		t.Errorf("zero price: size = %s, want 0", s)
	}
}

func TestProtectiveLevels(t *testing.T) {
	engine := NewEngine(testParams())

	stop, take := engine.ProtectiveLevels(model.SideLong, dec("100"))
	if !stop.Equal(dec("95")) {
		t.Errorf("long stop = %s, want 95", stop)
	}
	if !take.Equal(dec("110")) {
		t.Errorf("long take-profit = %s, want 110", take)
	}

	stop, take = engine.ProtectiveLevels(model.SideShort, dec("100"))
	if !stop.Equal(dec("105")) {
		t.Errorf("short stop = %s, want 105", stop)
	}
	if !take.Equal(dec("90")) {
		t.Errorf("short take-profit = %s, want 90", take)
	}
}

func TestDedup(t *testing.T) {
	d := NewDedup(5 * time.Minute)

	buy := &Signal{Type: SignalBuy, Timestamp: baseTime}
	if !d.Allow(buy) {
		t.Fatal("first BUY should be allowed")
	}

	repeat := &Signal{Type: SignalBuy, Timestamp: baseTime.Add(time.Minute)}
	if d.Allow(repeat) {
		t.Error("repeat BUY within window should be suppressed")
	}

	sell := &Signal{Type: SignalSell, Timestamp: baseTime.Add(2 * time.Minute)}
	if !d.Allow(sell) {
		t.Error("different type should be allowed")
	}

	lateBuy := &Signal{Type: SignalBuy, Timestamp: baseTime.Add(20 * time.Minute)}
	if !d.Allow(lateBuy) {
		t.Error("BUY after the window should be allowed")
	}

	hold := &Signal{Type: SignalHold, Timestamp: baseTime.Add(21 * time.Minute)}
	if !d.Allow(hold) {
		t.Error("HOLD should always be allowed")
	}
}
