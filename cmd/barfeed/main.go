// cmd/barfeed replays a CSV bar file into the Redis rolling cache, turning
// recorded history into a simulated live feed for the trader process.
// Bars can also be persisted to the SQLite bar store for later backtests.
//
// Usage:
//
//	go run ./cmd/barfeed --csv=data/bars.csv --interval=1s
//	go run ./cmd/barfeed --csv=data/bars.csv --db=data/bars.db --interval=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/TheLazySol/vibe-coded-bs-bot/config"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/feed"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/logger"
)

func main() {
	csvPath := flag.String("csv", "", "Path to a CSV bar file (required)")
	dbPath := flag.String("db", "", "Also persist bars to this SQLite bar database")
	interval := flag.Duration("interval", time.Second, "Delay between pushed bars (0 = push all at once)")
	flag.Parse()

	godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init("barfeed", logger.ParseLevel(cfg.LogLevel))

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "--csv is required")
		os.Exit(1)
	}

	source, err := feed.LoadCSV(*csvPath)
	if err != nil {
		slog.Error("load csv failed", "err", err)
		os.Exit(1)
	}

	cache, err := feed.NewBarCache(feed.BarCacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Symbol:   cfg.Symbol,
		Limit:    cfg.RedisBarLimit,
	})
	if err != nil {
		slog.Error("redis connect failed", "err", err)
		os.Exit(1)
	}
	defer cache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, err := source.GetPriceHistory(ctx)
	if err != nil {
		slog.Error("read bars failed", "err", err)
		os.Exit(1)
	}

	if *dbPath != "" {
		store, err := feed.OpenBarStore(*dbPath)
		if err != nil {
			slog.Error("open bar store failed", "err", err)
			os.Exit(1)
		}
		if err := store.SaveBars(cfg.Symbol, bars); err != nil {
			store.Close()
			slog.Error("persist bars failed", "err", err)
			os.Exit(1)
		}
		store.Close()
		slog.Info("bars persisted", "path", *dbPath, "count", len(bars))
	}

	slog.Info("feeding bars", "symbol", cfg.Symbol, "count", len(bars), "interval", *interval)
	pushed := 0
	for _, bar := range bars {
		if err := cache.PushBar(ctx, bar); err != nil {
			slog.Error("push bar failed", "ts", bar.TS, "err", err)
			os.Exit(1)
		}
		pushed++
		if *interval > 0 {
			select {
			case <-ctx.Done():
				slog.Info("interrupted", "pushed", pushed)
				return
			case <-time.After(*interval):
			}
		}
	}
	slog.Info("feed complete", "pushed", pushed)
}
