// Package notification delivers trading alerts to external channels
// (Telegram, generic webhooks). Delivery is fire-and-forget from the
// trading cycle's point of view: a failed send is logged, never fatal.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// TradeAlert builds an alert for an executed or failed trade.
func TradeAlert(t model.Trade) Alert {
	if t.Status == model.TradeFailed {
		return Alert{
			Level:   AlertWarning,
			Title:   fmt.Sprintf("%s failed", t.Side),
			Message: fmt.Sprintf("size %s at %s: %s", t.Size, t.Price, t.Error),
		}
	}
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s filled", t.Side),
		Message: fmt.Sprintf("size %s at %s (fee %s)", t.Size, t.Price, t.Fee),
	}
}

// CycleErrorAlert builds an alert for a failed trading cycle.
func CycleErrorAlert(err error) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   "trading cycle failed",
		Message: err.Error(),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (useful in
// development and as a default).
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, alert Alert) error {
	slog.Info("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi fans an alert out to several backends, logging per-backend
// failures and never returning them to the caller.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a Multi over the given backends.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			slog.Warn("alert delivery failed", "title", alert.Title, "err", err)
		}
	}
	return nil
}
