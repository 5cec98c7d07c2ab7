// Package metrics exposes Prometheus metrics and a health endpoint for the
// trading engine. The Metrics type implements model.MetricsSink, so signal,
// trade and risk events flow here without the core knowing about Prometheus.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/TheLazySol/vibe-coded-bs-bot/internal/model"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	SignalsTotal    *prometheus.CounterVec // labels: type
	SignalStrength  prometheus.Histogram
	TradesTotal     *prometheus.CounterVec // labels: side, status
	TradeFeesTotal  prometheus.Counter
	RejectionsTotal *prometheus.CounterVec // labels: reason

	Equity    prometheus.Gauge
	Drawdown  prometheus.Gauge
	DailyLoss prometheus.Gauge

	CycleDur    prometheus.Histogram
	CycleErrors prometheus.Counter
}

// New registers and returns all metrics on the default registry.
func New() *Metrics {
	m := &Metrics{
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Trading signals emitted (by type)",
		}, []string{"type"}),
		SignalStrength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_signal_strength",
			Help:    "Strength of emitted signals",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_trades_total",
			Help: "Executed trades (by side and status)",
		}, []string{"side", "status"}),
		TradeFeesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_trade_fees_total",
			Help: "Cumulative trading fees paid (quote currency)",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_risk_rejections_total",
			Help: "Trades rejected by risk policy (by reason)",
		}, []string{"reason"}),

		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_equity",
			Help: "Total account equity (cash plus open position value)",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_drawdown",
			Help: "Current drawdown from peak equity (fraction)",
		}),
		DailyLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_daily_loss",
			Help: "Realized loss accumulated today (quote currency)",
		}),

		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_cycle_duration_seconds",
			Help:    "Trading cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_cycle_errors_total",
			Help: "Trading cycles that ended in an error",
		}),
	}

	prometheus.MustRegister(
		m.SignalsTotal,
		m.SignalStrength,
		m.TradesTotal,
		m.TradeFeesTotal,
		m.RejectionsTotal,
		m.Equity,
		m.Drawdown,
		m.DailyLoss,
		m.CycleDur,
		m.CycleErrors,
	)
	return m
}

// ObserveSignal records an emitted trading signal.
func (m *Metrics) ObserveSignal(signalType string, strength float64) {
	m.SignalsTotal.WithLabelValues(signalType).Inc()
	m.SignalStrength.Observe(strength)
}

// ObserveTrade records an executed or failed trade.
func (m *Metrics) ObserveTrade(t model.Trade) {
	m.TradesTotal.WithLabelValues(string(t.Side), string(t.Status)).Inc()
	if t.Status == model.TradeSuccess {
		m.TradeFeesTotal.Add(t.Fee.InexactFloat64())
	}
}

// ObserveRejection records a trade rejected by risk policy.
func (m *Metrics) ObserveRejection(reason string) {
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveRisk records the periodic risk snapshot.
func (m *Metrics) ObserveRisk(equity, drawdown, dailyLoss decimal.Decimal) {
	m.Equity.Set(equity.InexactFloat64())
	m.Drawdown.Set(drawdown.InexactFloat64())
	m.DailyLoss.Set(dailyLoss.InexactFloat64())
}

// ObserveCycle records one completed trading cycle.
func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	m.CycleDur.Observe(d.Seconds())
	if err != nil {
		m.CycleErrors.Inc()
	}
}

var _ model.MetricsSink = (*Metrics)(nil)

// Health tracks liveness of the trading loop for the /healthz endpoint.
type Health struct {
	mu sync.RWMutex

	startedAt   time.Time
	lastCycleAt time.Time
	lastError   string
}

// NewHealth returns a Health anchored at now.
func NewHealth() *Health {
	return &Health{startedAt: time.Now()}
}

// CycleDone records a finished cycle and its error, if any.
func (h *Health) CycleDone(err error) {
	h.mu.Lock()
	h.lastCycleAt = time.Now()
	if err != nil {
		h.lastError = err.Error()
	} else {
		h.lastError = ""
	}
	h.mu.Unlock()
}

// ServeHTTP reports health as JSON. Degraded (a stale or failed cycle)
// returns 503 so orchestrators can restart the process.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	lastCycle := h.lastCycleAt
	lastError := h.lastError
	started := h.startedAt
	h.mu.RUnlock()

	healthy := lastError == ""
	status := map[string]any{
		"healthy":    healthy,
		"started_at": started.Format(time.RFC3339),
		"uptime_sec": int(time.Since(started).Seconds()),
	}
	if !lastCycle.IsZero() {
		status["last_cycle_at"] = lastCycle.Format(time.RFC3339)
	}
	if lastError != "" {
		status["last_error"] = lastError
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *Health) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
