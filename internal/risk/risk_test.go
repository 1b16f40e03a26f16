package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smabot/internal/strategy"
)

func buyIntent(qty int64) strategy.TradeIntent {
	return strategy.TradeIntent{Action: strategy.Buy, Qty: decimal.NewFromInt(qty)}
}

func TestGateRejectsCooldown(t *testing.T) {
	gate := Gate{}
	ctx := RiskContext{
		Now:           time.Now(),
		LastTradeTime: time.Now().Add(-30 * time.Second),
		Cooldown:      time.Minute,
		Price:         100,
		MaxNotional:   1000,
	}

	if _, err := gate.Evaluate(buyIntent(1), ctx); err == nil {
		t.Fatalf("expected cooldown rejection")
	}
}

func TestGateRejectsMaxNotional(t *testing.T) {
	gate := Gate{}
	ctx := RiskContext{
		Now:         time.Now(),
		Price:       100,
		MaxNotional: 150,
	}

	if _, err := gate.Evaluate(buyIntent(2), ctx); err == nil {
		t.Fatalf("expected max notional rejection")
	}
}

func TestGateApprovesValidBuy(t *testing.T) {
	gate := Gate{}
	ctx := RiskContext{
		Now:         time.Now(),
		Price:       100,
		MaxNotional: 500,
	}

	if _, err := gate.Evaluate(buyIntent(1), ctx); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}

func TestGateRejectsBuyWhileHaltedButAllowsSell(t *testing.T) {
	gate := Gate{}
	ctx := RiskContext{
		Now:         time.Now(),
		Price:       100,
		PositionQty: decimal.NewFromInt(2),
		Halted:      true,
	}

	if _, err := gate.Evaluate(buyIntent(1), ctx); err == nil || err.Error() != "drawdown_halt" {
		t.Fatalf("expected drawdown_halt, got %v", err)
	}
	sell := strategy.TradeIntent{Action: strategy.Sell, Qty: decimal.NewFromInt(2)}
	if _, err := gate.Evaluate(sell, ctx); err != nil {
		t.Fatalf("expected sell approval while halted, got %v", err)
	}
}

func TestGateRejectsSellWithoutPosition(t *testing.T) {
	gate := Gate{}
	sell := strategy.TradeIntent{Action: strategy.Sell, Qty: decimal.NewFromInt(1)}
	if _, err := gate.Evaluate(sell, RiskContext{Now: time.Now(), Price: 10}); err == nil {
		t.Fatalf("expected no_position_to_sell rejection")
	}
}

func TestGateRejectsZeroQuantity(t *testing.T) {
	gate := Gate{}
	if _, err := gate.Evaluate(buyIntent(0), RiskContext{Now: time.Now(), Price: 10}); err == nil {
		t.Fatalf("expected invalid_quantity rejection")
	}
}

func TestGateRejectsExtendedHoursWithoutLimitDay(t *testing.T) {
	gate := Gate{}
	ctx := RiskContext{
		Now:           time.Now(),
		Price:         100,
		MaxNotional:   500,
		ExtendedHours: true,
		OrderType:     "market",
		TimeInForce:   "day",
	}

	if _, err := gate.Evaluate(buyIntent(1), ctx); err == nil {
		t.Fatalf("expected extended hours rejection")
	}
}
