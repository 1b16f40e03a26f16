package engine

import (
	"context"
	"log/slog"
	"time"

	"smabot/internal/risk"
	"smabot/internal/state"
)

// ReconcileLoop refreshes open orders and positions on every tick until ctx ends.
func ReconcileLoop(ctx context.Context, e *Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			e.reconcile(ctx, e.trackedSymbols(nil))
			e.mu.Unlock()
		}
	}
}

// reconcile pulls open orders and positions for symbols from the broker into
// the state store. Locally known risk amounts survive the refresh.
func (e *Engine) reconcile(ctx context.Context, symbols []string) {
	orders, err := e.broker.OpenOrders(ctx)
	if err != nil {
		slog.Warn("reconcile open orders failed", "error", err)
	} else {
		openOrders := make(map[string]state.OpenOrder, len(orders))
		for _, order := range orders {
			openOrders[order.ClientOrderID] = state.OpenOrder{
				ClientOrderID: order.ClientOrderID,
				OrderID:       order.ID,
				Symbol:        order.Symbol,
				Status:        order.Status,
			}
		}
		e.state.SetOpenOrders(openOrders)
	}

	for _, symbol := range symbols {
		position, err := e.broker.Position(ctx, symbol)
		if err != nil {
			slog.Warn("reconcile position failed", "symbol", symbol, "error", err)
			continue
		}
		known := e.state.Position(symbol)
		e.state.UpdatePosition(risk.Position{
			Symbol:     symbol,
			Qty:        position.Qty,
			EntryPrice: position.AvgEntry,
			RiskAmount: known.RiskAmount,
		})
	}
}
