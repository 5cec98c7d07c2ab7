package indicator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decs(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = dec(v)
	}
	return out
}

func constantCloses(n int, price string) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = dec(price)
	}
	return out
}

func TestComputeInsufficientData(t *testing.T) {
	calc := NewCalculator(20, dec("2"))
	for n := 0; n < 20; n++ {
		_, err := calc.Compute(constantCloses(n, "100"))
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("window of %d closes: expected ErrInsufficientData, got %v", n, err)
		}
	}
}

func TestComputeSMA(t *testing.T) {
	calc := NewCalculator(5, dec("2"))
	snap, err := calc.Compute(decs("10", "20", "30", "40", "50"))
	if err != nil {
		t.Fatal(err)
	}
	if !snap.SMA.Equal(dec("30")) {
		t.Errorf("SMA = %s, want 30", snap.SMA)
	}
}

func TestComputeUsesTrailingWindow(t *testing.T) {
	calc := NewCalculator(3, dec("2"))
	// Leading closes must not influence the trailing-3 SMA.
	snap, err := calc.Compute(decs("1000", "1000", "10", "20", "30"))
	if err != nil {
		t.Fatal(err)
	}
	if !snap.SMA.Equal(dec("20")) {
		t.Errorf("SMA = %s, want 20 (trailing window only)", snap.SMA)
	}
}

func TestPopulationStdDev(t *testing.T) {
	calc := NewCalculator(4, dec("2"))
	// Values 2,4,4,8: mean=4.5, population variance=(6.25+0.25+0.25+12.25)/4=4.75
	snap, err := calc.Compute(decs("2", "4", "4", "8"))
	if err != nil {
		t.Fatal(err)
	}
	want := 2.179449 // sqrt(4.75)
	got := snap.StdDev.InexactFloat64()
	if got < want-0.0001 || got > want+0.0001 {
		t.Errorf("StdDev = %v, want ~%v (divide by N, not N-1)", got, want)
	}
}

func TestBollingerBands(t *testing.T) {
	calc := NewCalculator(4, dec("2"))
	snap, err := calc.Compute(decs("2", "4", "4", "8"))
	if err != nil {
		t.Fatal(err)
	}
	wantUpper := snap.SMA.Add(snap.StdDev.Mul(dec("2")))
	wantLower := snap.SMA.Sub(snap.StdDev.Mul(dec("2")))
	if !snap.UpperBand.Equal(wantUpper) {
		t.Errorf("UpperBand = %s, want %s", snap.UpperBand, wantUpper)
	}
	if !snap.LowerBand.Equal(wantLower) {
		t.Errorf("LowerBand = %s, want %s", snap.LowerBand, wantLower)
	}
}

func TestFlatSeriesZeroStdDevNoZScore(t *testing.T) {
	calc := NewCalculator(20, dec("2"))
	snap, err := calc.Compute(constantCloses(25, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if !snap.StdDev.IsZero() {
		t.Errorf("StdDev = %s, want 0 on flat series", snap.StdDev)
	}
	if !snap.ZScore.IsZero() {
		t.Errorf("ZScore = %s, want 0 when StdDev is 0 (no division by zero)", snap.ZScore)
	}
	if !snap.UpperBand.Equal(snap.LowerBand) {
		t.Errorf("bands should collapse to SMA on flat series")
	}
}

func TestZScoreSign(t *testing.T) {
	calc := NewCalculator(20, dec("2"))

	// 25 flat bars at 100 then a drop to 80: SMA near 100, z-score strongly negative.
	closes := append(constantCloses(25, "100"), dec("80"))
	snap, err := calc.Compute(closes)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.ZScore.IsNegative() {
		t.Errorf("ZScore = %s, want negative after price drop", snap.ZScore)
	}

	// Mirror: spike to 120 gives a positive z-score.
	closes = append(constantCloses(25, "100"), dec("120"))
	snap, err = calc.Compute(closes)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.ZScore.IsPositive() {
		t.Errorf("ZScore = %s, want positive after price spike", snap.ZScore)
	}
}

func TestRSIOptionalGate(t *testing.T) {
	calc := NewCalculator(5, dec("2"))

	snap, err := calc.Compute(constantCloses(13, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.RSIReady {
		t.Error("RSI should not be ready with 13 closes")
	}

	snap, err = calc.Compute(constantCloses(14, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if !snap.RSIReady {
		t.Error("RSI should be ready with 14 closes")
	}
}

func TestRSIValues(t *testing.T) {
	calc := NewCalculator(5, dec("2"))

	// Strictly rising closes: no losses, RSI = 100.
	rising := make([]decimal.Decimal, 14)
	for i := range rising {
		rising[i] = decimal.NewFromInt(int64(100 + i))
	}
	snap, err := calc.Compute(rising)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.RSI.Equal(dec("100")) {
		t.Errorf("RSI = %s, want 100 for strictly rising closes", snap.RSI)
	}

	// Strictly falling closes: no gains, RSI = 0.
	falling := make([]decimal.Decimal, 14)
	for i := range falling {
		falling[i] = decimal.NewFromInt(int64(200 - i))
	}
	snap, err = calc.Compute(falling)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.RSI.IsZero() {
		t.Errorf("RSI = %s, want 0 for strictly falling closes", snap.RSI)
	}
}

func TestEMAOptionalGate(t *testing.T) {
	calc := NewCalculator(5, dec("2"))

	snap, err := calc.Compute(constantCloses(19, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.EMAReady {
		t.Error("EMA should not be ready with 19 closes")
	}

	snap, err = calc.Compute(constantCloses(20, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if !snap.EMAReady {
		t.Error("EMA should be ready with 20 closes")
	}
	if !snap.EMA.Equal(dec("100")) {
		t.Errorf("EMA = %s, want 100 on flat series", snap.EMA)
	}
}

func TestEMATracksRecentPrices(t *testing.T) {
	calc := NewCalculator(5, dec("2"))
	// 20 closes at 100, then 10 at 110: EMA should move above 100 toward 110.
	closes := append(constantCloses(20, "100"), constantCloses(10, "110")...)
	snap, err := calc.Compute(closes)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.EMA.GreaterThan(dec("100")) || !snap.EMA.LessThan(dec("110")) {
		t.Errorf("EMA = %s, want in (100,110)", snap.EMA)
	}
}
