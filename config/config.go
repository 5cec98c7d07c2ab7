// Package config loads application configuration from environment variables.
//
// The loaded Config is an immutable value handed to each component's
// constructor; there is no ambient global configuration state. Validation
// errors are fatal at startup and never relaxed mid-run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Strategy parameters
	MAPeriod          int
	StdDevMultiplier  decimal.Decimal
	EntryThreshold    decimal.Decimal
	ExitThreshold     decimal.Decimal
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
	MinVolume         decimal.Decimal
	MaxPositionSize   decimal.Decimal
	RiskPerTrade      decimal.Decimal

	// Risk limits
	MaxOpenPositions int
	MaxDailyLoss     decimal.Decimal // quote currency
	MaxDrawdown      decimal.Decimal // fraction of peak balance, e.g. 0.20

	// Account / simulation
	InitialBalance  decimal.Decimal
	TradeFeePercent decimal.Decimal

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisBarLimit int
	SQLitePath    string
	MetricsAddr   string
	LogLevel      string

	// Live cycle
	Symbol        string
	CycleInterval time.Duration

	// Alerting (optional, empty disables the backend)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
// Call Validate before using the result.
func Load() *Config {
	return &Config{
		MAPeriod:          getEnvInt("MA_PERIOD", 20),
		StdDevMultiplier:  getEnvDecimal("STD_DEV_MULTIPLIER", "2"),
		EntryThreshold:    getEnvDecimal("ENTRY_THRESHOLD", "1"),
		ExitThreshold:     getEnvDecimal("EXIT_THRESHOLD", "0.5"),
		StopLossPercent:   getEnvDecimal("STOP_LOSS_PERCENT", "0.05"),
		TakeProfitPercent: getEnvDecimal("TAKE_PROFIT_PERCENT", "0.1"),
		MinVolume:         getEnvDecimal("MIN_VOLUME", "0"),
		MaxPositionSize:   getEnvDecimal("MAX_POSITION_SIZE", "100"),
		RiskPerTrade:      getEnvDecimal("RISK_PER_TRADE", "0.02"),

		MaxOpenPositions: getEnvInt("MAX_OPEN_POSITIONS", 3),
		MaxDailyLoss:     getEnvDecimal("MAX_DAILY_LOSS", "500"),
		MaxDrawdown:      getEnvDecimal("MAX_DRAWDOWN", "0.2"),

		InitialBalance:  getEnvDecimal("INITIAL_BALANCE", "10000"),
		TradeFeePercent: getEnvDecimal("TRADE_FEE_PERCENT", "0.003"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisBarLimit: getEnvInt("REDIS_BAR_LIMIT", 500),
		SQLitePath:    getEnv("SQLITE_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		Symbol:        getEnv("SYMBOL", "SOL-USDC"),
		CycleInterval: getEnvDuration("CYCLE_INTERVAL", 60*time.Second),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// Validate checks all configured values against their allowed ranges.
// Returns the first violation found.
func (c *Config) Validate() error {
	if c.MAPeriod < 2 {
		return fmt.Errorf("config: MA_PERIOD must be >= 2, got %d", c.MAPeriod)
	}
	if !c.StdDevMultiplier.IsPositive() {
		return fmt.Errorf("config: STD_DEV_MULTIPLIER must be > 0, got %s", c.StdDevMultiplier)
	}
	if c.EntryThreshold.IsNegative() {
		return fmt.Errorf("config: ENTRY_THRESHOLD must be >= 0, got %s", c.EntryThreshold)
	}
	if c.EntryThreshold.GreaterThan(c.StdDevMultiplier) {
		return fmt.Errorf("config: ENTRY_THRESHOLD %s must not exceed STD_DEV_MULTIPLIER %s",
			c.EntryThreshold, c.StdDevMultiplier)
	}
	if !c.StopLossPercent.IsPositive() || c.StopLossPercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: STOP_LOSS_PERCENT must be in (0,1), got %s", c.StopLossPercent)
	}
	if !c.TakeProfitPercent.IsPositive() {
		return fmt.Errorf("config: TAKE_PROFIT_PERCENT must be > 0, got %s", c.TakeProfitPercent)
	}
	if !c.RiskPerTrade.IsPositive() || c.RiskPerTrade.GreaterThan(decimal.NewFromFloat(0.1)) {
		return fmt.Errorf("config: RISK_PER_TRADE must be in (0,0.1], got %s", c.RiskPerTrade)
	}
	if c.MaxOpenPositions < 1 {
		return fmt.Errorf("config: MAX_OPEN_POSITIONS must be >= 1, got %d", c.MaxOpenPositions)
	}
	if !c.MaxDailyLoss.IsPositive() {
		return fmt.Errorf("config: MAX_DAILY_LOSS must be > 0, got %s", c.MaxDailyLoss)
	}
	if !c.MaxDrawdown.IsPositive() || c.MaxDrawdown.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: MAX_DRAWDOWN must be in (0,1], got %s", c.MaxDrawdown)
	}
	if !c.InitialBalance.IsPositive() {
		return fmt.Errorf("config: INITIAL_BALANCE must be > 0, got %s", c.InitialBalance)
	}
	if c.TradeFeePercent.IsNegative() {
		return fmt.Errorf("config: TRADE_FEE_PERCENT must be >= 0, got %s", c.TradeFeePercent)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("config: CYCLE_INTERVAL must be positive, got %s", c.CycleInterval)
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
