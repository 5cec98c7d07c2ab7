package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/config"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() *config.Config {
	return &config.Config{
		MAPeriod:          20,
		StdDevMultiplier:  dec("2"),
		EntryThreshold:    dec("1"),
		ExitThreshold:     dec("0.5"),
		StopLossPercent:   dec("0.05"),
		TakeProfitPercent: dec("0.1"),
		MinVolume:         dec("1"),
		MaxPositionSize:   dec("100"),
		RiskPerTrade:      dec("0.02"),
		MaxOpenPositions:  3,
		MaxDailyLoss:      dec("100000"),
		MaxDrawdown:       dec("0.9"),
		InitialBalance:    dec("10000"),
		TradeFeePercent:   dec("0"),
		Symbol:            "TEST",
	}
}

func mkBars(closes ...string) []model.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		px := dec(c)
		bars[i] = model.PriceBar{
			TS:     start.Add(time.Duration(i) * time.Hour),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: dec("1000"),
			Source: "test",
		}
	}
	return bars
}

func repeatCloses(n int, c string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestRunBarsNoData(t *testing.T) {
	sim := New(testConfig())
	if _, err := sim.RunBars(nil); !errors.Is(err, ErrNoHistoricalData) {
		t.Fatalf("expected ErrNoHistoricalData, got %v", err)
	}
}

func TestFlatSeriesProducesNoTrades(t *testing.T) {
	sim := New(testConfig())
	res, err := sim.RunBars(mkBars(repeatCloses(100, "100")...))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades != 0 || len(res.Trades) != 0 {
		t.Fatalf("flat series must not trade, got %d round trips, %d log entries", res.TotalTrades, len(res.Trades))
	}
	if !res.FinalBalance.Equal(res.InitialBalance) {
		t.Fatalf("balance must be untouched, got %s", res.FinalBalance)
	}
	if !res.ReturnPercent.IsZero() {
		t.Fatalf("expected zero return, got %s", res.ReturnPercent)
	}
}

func TestDipTriggersBuyAndForceClose(t *testing.T) {
	closes := append(repeatCloses(25, "100"), "80")
	sim := New(testConfig())
	res, err := sim.RunBars(mkBars(closes...))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades == 0 {
		t.Fatal("expected the 80 bar to open a position")
	}
	for _, p := range sim.positions {
		if p.Status != model.PositionClosed {
			t.Fatalf("position %s still %s after final bar", p.ID, p.Status)
		}
	}
	if len(res.Trades) != 2*res.TotalTrades {
		t.Fatalf("expected one buy and one sell per round trip, got %d entries for %d round trips", len(res.Trades), res.TotalTrades)
	}
}

func TestOpenedPositionCarriesProtectiveLevels(t *testing.T) {
	closes := append(repeatCloses(25, "100"), "80")
	sim := New(testConfig())
	if _, err := sim.RunBars(mkBars(closes...)); err != nil {
		t.Fatal(err)
	}
	if len(sim.positions) == 0 {
		t.Fatal("expected at least one position")
	}
	p := sim.positions[0]
	wantStop := p.EntryPrice.Mul(dec("0.95"))
	wantTake := p.EntryPrice.Mul(dec("1.1"))
	if !p.StopLoss.Equal(wantStop) || !p.TakeProfit.Equal(wantTake) {
		t.Fatalf("got stop=%s take=%s, want stop=%s take=%s", p.StopLoss, p.TakeProfit, wantStop, wantTake)
	}
}

func TestEveryPositionAccountedOnce(t *testing.T) {
	// Repeated dip-recover cycles: each dip can open, each recovery can
	// close via take profit or sell signal.
	var closes []string
	for i := 0; i < 30; i++ {
		closes = append(closes, repeatCloses(24, "100")...)
		closes = append(closes, "80", "95")
	}
	sim := New(testConfig())
	res, err := sim.RunBars(mkBars(closes...))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades == 0 {
		t.Fatal("expected trades from dip cycles")
	}

	sells := map[string]int{}
	for _, tr := range res.Trades {
		if tr.Side == model.TradeSell {
			sells[tr.PositionID]++
		}
	}
	for _, p := range sim.positions {
		if p.Status != model.PositionClosed {
			t.Fatalf("position %s not closed", p.ID)
		}
		if sells[p.ID] != 1 {
			t.Fatalf("position %s settled %d times, want exactly once", p.ID, sells[p.ID])
		}
	}
}

func TestLedgerReconciles(t *testing.T) {
	cfg := testConfig()
	cfg.TradeFeePercent = dec("0.003")

	var closes []string
	for i := 0; i < 50; i++ {
		closes = append(closes, repeatCloses(24, "100")...)
		closes = append(closes, "80", "95")
	}
	sim := New(cfg)
	res, err := sim.RunBars(mkBars(closes...))
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades == 0 {
		t.Fatal("expected trades")
	}

	pnlSum := decimal.Zero
	for _, p := range sim.positions {
		pnlSum = pnlSum.Add(p.PnL)
	}
	want := cfg.InitialBalance.Add(pnlSum).Sub(res.TotalFees)
	if !res.FinalBalance.Equal(want) {
		t.Fatalf("ledger drift: final %s, want initial + pnl - fees = %s", res.FinalBalance, want)
	}
}

// A thousand open/close cycles through the position model must reconcile
// exactly against the cash ledger.
func TestThousandRoundTripsNoDrift(t *testing.T) {
	balance := dec("100000")
	initial := balance
	entry, exit := dec("100.01"), dec("100.99")
	size := dec("3.33")
	feePct := dec("0.003")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	pnlSum, feeSum := decimal.Zero, decimal.Zero
	for i := 0; i < 1000; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		p := model.NewPosition(model.SideLong, entry, size, ts)

		buyFee := entry.Mul(size).Mul(feePct)
		balance = balance.Sub(entry.Mul(size).Add(buyFee))

		sellFee := exit.Mul(size).Mul(feePct)
		p.Close(exit, ts.Add(time.Second))
		balance = balance.Add(exit.Mul(size).Sub(sellFee))

		wantPnL := exit.Sub(entry).Mul(size)
		if !p.PnL.Equal(wantPnL) {
			t.Fatalf("round trip %d: pnl %s, want %s", i, p.PnL, wantPnL)
		}
		pnlSum = pnlSum.Add(p.PnL)
		feeSum = feeSum.Add(buyFee).Add(sellFee)
	}

	want := initial.Add(pnlSum).Sub(feeSum)
	if !balance.Equal(want) {
		t.Fatalf("ledger drift after 1000 round trips: %s vs %s", balance, want)
	}
}

func TestBuildStats(t *testing.T) {
	start := time.Now()
	mkClosed := func(entry, exit string) *model.Position {
		p := model.NewPosition(model.SideLong, dec(entry), dec("1"), start)
		p.Close(dec(exit), start.Add(time.Hour))
		return p
	}
	closed := []*model.Position{
		mkClosed("100", "110"), // +10
		mkClosed("100", "120"), // +20
		mkClosed("100", "90"),  // -10
	}

	r := &Result{InitialBalance: dec("10000"), FinalBalance: dec("10020")}
	r.buildStats(closed)

	if r.TotalTrades != 3 || r.WinningTrades != 2 || r.LosingTrades != 1 {
		t.Fatalf("counts: %d/%d/%d", r.TotalTrades, r.WinningTrades, r.LosingTrades)
	}
	if !r.AverageWin.Equal(dec("15")) {
		t.Fatalf("average win %s, want 15", r.AverageWin)
	}
	if !r.AverageLoss.Equal(dec("10")) {
		t.Fatalf("average loss %s, want 10", r.AverageLoss)
	}
	if !r.ProfitFactor.Equal(dec("1.5")) {
		t.Fatalf("profit factor %s, want 1.5", r.ProfitFactor)
	}
	if !r.WinRate.Round(2).Equal(dec("66.67")) {
		t.Fatalf("win rate %s", r.WinRate)
	}
	if !r.SharpeRatio.IsPositive() {
		t.Fatalf("sharpe %s, want > 0", r.SharpeRatio)
	}
	if !r.ReturnPercent.Equal(dec("0.2")) {
		t.Fatalf("return %s, want 0.2", r.ReturnPercent)
	}
}

func TestBuildStatsNoLosers(t *testing.T) {
	start := time.Now()
	p1 := model.NewPosition(model.SideLong, dec("100"), dec("1"), start)
	p1.Close(dec("110"), start.Add(time.Hour))
	p2 := model.NewPosition(model.SideLong, dec("100"), dec("1"), start)
	p2.Close(dec("112"), start.Add(time.Hour))

	r := &Result{InitialBalance: dec("10000"), FinalBalance: dec("10022")}
	r.buildStats([]*model.Position{p1, p2})

	if !r.ProfitFactor.IsZero() {
		t.Fatalf("profit factor must be 0 with no losers, got %s", r.ProfitFactor)
	}
	if !r.WinRate.Equal(dec("100")) {
		t.Fatalf("win rate %s, want 100", r.WinRate)
	}
}

func TestSharpeEdgeCases(t *testing.T) {
	if got := sharpe(nil); !got.IsZero() {
		t.Fatalf("no returns: %s", got)
	}
	if got := sharpe([]decimal.Decimal{dec("5")}); !got.IsZero() {
		t.Fatalf("single return: %s", got)
	}
	if got := sharpe([]decimal.Decimal{dec("5"), dec("5"), dec("5")}); !got.IsZero() {
		t.Fatalf("zero variance: %s", got)
	}
}
