// cmd/backtest replays historical price data through the signal engine and
// risk manager to produce performance statistics.
//
// Usage:
//
//	go run ./cmd/backtest --csv=data/bars.csv --out=result.json
//	go run ./cmd/backtest --db=data/bars.db --symbol=BTC-USD --limit=5000
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/TheLazySol/vibe-coded-bs-bot/config"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/backtest"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/feed"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/journal"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/logger"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

func main() {
	csvPath := flag.String("csv", "", "Path to a CSV bar file (timestamp,open,high,low,close,volume)")
	dbPath := flag.String("db", "", "Path to a SQLite bar database")
	symbol := flag.String("symbol", "", "Symbol to load from the bar database (defaults to SYMBOL from config)")
	limit := flag.Int("limit", 10000, "Maximum bars to load from the bar database")
	outPath := flag.String("out", "", "Write the result snapshot as JSON to this path")
	journalPath := flag.String("journal", "", "Record the result in this journal database (defaults to SQLITE_PATH)")
	flag.Parse()

	godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	if *symbol != "" {
		cfg.Symbol = *symbol
	}

	provider, cleanup, err := buildProvider(*csvPath, *dbPath, cfg.Symbol, *limit)
	if err != nil {
		slog.Error("cannot load price data", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := backtest.New(cfg)
	result, err := sim.Run(ctx, provider)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	printSummary(result)

	if *outPath != "" {
		data, err := result.JSON()
		if err != nil {
			slog.Error("marshal result", "err", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			slog.Error("write result", "path", *outPath, "err", err)
			os.Exit(1)
		}
		slog.Info("result written", "path", *outPath)
	}

	jPath := *journalPath
	if jPath == "" {
		jPath = cfg.SQLitePath
	}
	if jPath != "" {
		j, err := journal.Open(jPath)
		if err != nil {
			slog.Error("open journal", "err", err)
			os.Exit(1)
		}
		defer j.Close()
		id, err := j.RecordBacktest(result)
		if err != nil {
			slog.Error("record backtest", "err", err)
			os.Exit(1)
		}
		slog.Info("result journaled", "id", id, "path", jPath)
	}
}

func buildProvider(csvPath, dbPath, symbol string, limit int) (model.PriceProvider, func(), error) {
	switch {
	case csvPath != "":
		p, err := feed.LoadCSV(csvPath)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	case dbPath != "":
		store, err := feed.OpenBarStore(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return store.Provider(symbol, limit), func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("either --csv or --db is required")
	}
}

func printSummary(r *backtest.Result) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║           BACKTEST COMPLETE              ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Symbol:          %-22s ║\n", r.Symbol)
	fmt.Printf("║  Bars:            %-22d ║\n", r.Bars)
	fmt.Printf("║  Initial balance: %-22s ║\n", r.InitialBalance)
	fmt.Printf("║  Final balance:   %-22s ║\n", r.FinalBalance)
	fmt.Printf("║  Return:          %-21s%% ║\n", r.ReturnPercent.Round(4))
	fmt.Printf("║  Round trips:     %-22d ║\n", r.TotalTrades)
	fmt.Printf("║  Win rate:        %-21s%% ║\n", r.WinRate.Round(2))
	fmt.Printf("║  Average win:     %-22s ║\n", r.AverageWin.Round(4))
	fmt.Printf("║  Average loss:    %-22s ║\n", r.AverageLoss.Round(4))
	fmt.Printf("║  Profit factor:   %-22s ║\n", r.ProfitFactor.Round(4))
	fmt.Printf("║  Sharpe ratio:    %-22s ║\n", r.SharpeRatio.Round(4))
	fmt.Printf("║  Max drawdown:    %-22s ║\n", r.MaxDrawdown.Round(4))
	fmt.Printf("║  Fees paid:       %-22s ║\n", r.TotalFees.Round(4))
	fmt.Println("╚══════════════════════════════════════════╝")
}
