package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabot_decisions_total",
			Help: "Decisions recorded, by symbol and resulting signal.",
		},
		[]string{"symbol", "signal"},
	)

	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabot_orders_submitted_total",
			Help: "Orders accepted by the broker.",
		},
		[]string{"symbol", "side"},
	)

	SymbolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabot_symbol_errors_total",
			Help: "Per-symbol evaluation failures that skipped the symbol for a cycle.",
		},
		[]string{"symbol", "reason"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smabot_equity",
			Help: "Account equity observed at the last cycle.",
		},
	)

	DrawdownRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smabot_drawdown_ratio",
			Help: "Fractional decline of equity from its running peak.",
		},
	)

	TradingHalted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smabot_trading_halted",
			Help: "1 while the drawdown latch blocks new entries.",
		},
	)
)

func init() {
	prometheus.MustRegister(DecisionsTotal, OrdersSubmitted, SymbolErrors, Equity, DrawdownRatio, TradingHalted)
}

func SetHalted(halted bool) {
	if halted {
		TradingHalted.Set(1)
		return
	}
	TradingHalted.Set(0)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = listen(srv) }()
	return srv
}

// listen runs srv until it is closed. Any other failure, such as a port
// already in use, is logged and returned.
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "addr", srv.Addr, "error", err)
		return err
	}
	return nil
}
