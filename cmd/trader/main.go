// cmd/trader runs the live paper-trading loop: every cycle it pulls the
// bar window from Redis, analyzes it, and routes approved trades through
// the simulated execution sink. Prometheus metrics and a health endpoint
// are exposed over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/TheLazySol/vibe-coded-bs-bot/config"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/execution"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/feed"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/journal"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/logger"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/metrics"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/notification"
	"github.com/TheLazySol/vibe-coded-bs-bot/internal/trader"
)

func main() {
	slippageBps := flag.Int64("slippage-bps", 5, "Simulated slippage in basis points")
	flag.Parse()

	godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init("trader", logger.ParseLevel(cfg.LogLevel))

	provider, err := feed.NewBarCache(feed.BarCacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Symbol:   cfg.Symbol,
		Limit:    cfg.RedisBarLimit,
	})
	if err != nil {
		slog.Error("redis connect failed", "err", err)
		os.Exit(1)
	}
	defer provider.Close()

	sink := execution.NewPaperExecutor(execution.PaperConfig{
		FeePercent:  cfg.TradeFeePercent,
		SlippageBps: *slippageBps,
	})

	m := metrics.New()
	health := metrics.NewHealth()
	srv := metrics.NewServer(cfg.MetricsAddr, health)
	srv.Start()

	notifier := buildNotifier(cfg)

	tr := trader.New(cfg, provider, sink)
	tr.SetMetrics(m)
	tr.OnCycle(func(d time.Duration, err error) {
		m.ObserveCycle(d, err)
		health.CycleDone(err)
		if err != nil {
			notifier.Send(context.Background(), notification.CycleErrorAlert(err))
		}
	})

	var j *journal.Journal
	if cfg.SQLitePath != "" {
		j, err = journal.Open(cfg.SQLitePath)
		if err != nil {
			slog.Error("open journal failed", "err", err)
			os.Exit(1)
		}
		defer j.Close()
	}
	tr.OnTrade(func(t model.Trade) {
		if j != nil {
			if err := j.RecordTrade(t); err != nil {
				slog.Error("journal trade failed", "id", t.ID, "err", err)
			}
		}
		notifier.Send(context.Background(), notification.TradeAlert(t))
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := tr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("trader exited", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
}

// buildNotifier assembles the alert fan-out from configuration. With no
// external channels configured, alerts go to the log.
func buildNotifier(cfg *config.Config) notification.Notifier {
	var backends []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(backends) == 0 {
		return notification.LogNotifier{}
	}
	return notification.NewMulti(backends...)
}
