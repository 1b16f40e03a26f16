package risk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"smabot/internal/strategy"
)

type RiskContext struct {
	Now            time.Time
	Price          float64
	PositionQty    decimal.Decimal
	OpenOrderCount int
	LastTradeTime  time.Time
	MaxNotional    float64
	Cooldown       time.Duration
	KillSwitch     bool
	Halted         bool
	ExtendedHours  bool
	OrderType      string
	TimeInForce    string
}

type ApprovedIntent struct {
	Intent strategy.TradeIntent
	Reason string
}

// Gate applies pre-trade checks to an already sized intent.
type Gate struct{}

func (g Gate) Evaluate(intent strategy.TradeIntent, ctx RiskContext) (ApprovedIntent, error) {
	if intent.Action == strategy.Hold {
		return ApprovedIntent{Intent: intent, Reason: "hold"}, nil
	}

	qty := intent.Qty.InexactFloat64()
	notional := ctx.Price * qty
	slog.Info("risk evaluation", "intent", intent.Action, "qty", intent.Qty.String(), "position", ctx.PositionQty.String(), "price", ctx.Price, "notional", notional)

	if ctx.KillSwitch {
		slog.Info("risk rejected", "reason", "kill_switch_enabled")
		return ApprovedIntent{}, fmt.Errorf("kill_switch_enabled")
	}
	if ctx.Halted && intent.Action == strategy.Buy {
		slog.Info("risk rejected", "reason", "drawdown_halt")
		return ApprovedIntent{}, fmt.Errorf("drawdown_halt")
	}
	if ctx.OpenOrderCount > 0 {
		slog.Info("risk rejected", "reason", "open_order_exists", "count", ctx.OpenOrderCount)
		return ApprovedIntent{}, fmt.Errorf("open_order_exists")
	}
	if !ctx.LastTradeTime.IsZero() && ctx.Now.Sub(ctx.LastTradeTime) < ctx.Cooldown {
		remaining := ctx.Cooldown - ctx.Now.Sub(ctx.LastTradeTime)
		slog.Info("risk rejected", "reason", "cooldown_active", "remaining", remaining)
		return ApprovedIntent{}, fmt.Errorf("cooldown_active")
	}
	if !intent.Qty.IsPositive() {
		slog.Info("risk rejected", "reason", "invalid_quantity", "qty", intent.Qty.String())
		return ApprovedIntent{}, fmt.Errorf("invalid_quantity")
	}
	if intent.Action == strategy.Sell && !ctx.PositionQty.IsPositive() {
		slog.Info("risk rejected", "reason", "no_position_to_sell")
		return ApprovedIntent{}, fmt.Errorf("no_position_to_sell")
	}
	if intent.Action == strategy.Sell && intent.Qty.GreaterThan(ctx.PositionQty) {
		slog.Info("risk rejected", "reason", "sell_exceeds_position", "qty", intent.Qty.String(), "position", ctx.PositionQty.String())
		return ApprovedIntent{}, fmt.Errorf("sell_exceeds_position")
	}
	if intent.Action == strategy.Buy && ctx.MaxNotional > 0 && notional > ctx.MaxNotional {
		slog.Info("risk rejected", "reason", "max_notional_exceeded", "notional", notional, "max", ctx.MaxNotional)
		return ApprovedIntent{}, fmt.Errorf("max_notional_exceeded")
	}
	if ctx.ExtendedHours {
		if ctx.OrderType != "limit" || ctx.TimeInForce != "day" {
			slog.Info("risk rejected", "reason", "extended_hours_requires_limit_day")
			return ApprovedIntent{}, fmt.Errorf("extended_hours_requires_limit_day")
		}
	}

	slog.Info("risk approved", "intent", intent.Action, "qty", intent.Qty.String(), "reason", intent.Reason)
	return ApprovedIntent{Intent: intent, Reason: "approved"}, nil
}
