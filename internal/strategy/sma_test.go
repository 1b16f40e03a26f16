package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSMAMomentumBuyWhenFlat(t *testing.T) {
	strat := NewSMAMomentum(DefaultThresholds())
	intent := strat.Decide(MarketSnapshot{
		Previous:    snap(99, 100, 50, 25),
		Current:     snap(101, 100, 55, 25),
		PositionQty: decimal.Zero,
	})
	if intent.Action != Buy || !intent.Qty.IsZero() {
		t.Fatalf("expected unsized BUY, got %s qty=%s", intent.Action, intent.Qty)
	}
}

func TestSMAMomentumHoldWhenAlreadyLong(t *testing.T) {
	strat := NewSMAMomentum(DefaultThresholds())
	intent := strat.Decide(MarketSnapshot{
		Previous:    snap(99, 100, 50, 25),
		Current:     snap(101, 100, 55, 25),
		PositionQty: decimal.NewFromInt(3),
	})
	if intent.Action != Hold || intent.Reason != "already_long" {
		t.Fatalf("expected HOLD already_long, got %s %s", intent.Action, intent.Reason)
	}
}

func TestSMAMomentumSellsWholePosition(t *testing.T) {
	strat := NewSMAMomentum(DefaultThresholds())
	intent := strat.Decide(MarketSnapshot{
		Previous:    snap(101, 100, 50, 25),
		Current:     snap(99, 100, 45, 25),
		PositionQty: decimal.NewFromInt(3),
	})
	if intent.Action != Sell || !intent.Qty.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected SELL qty=3, got %s qty=%s", intent.Action, intent.Qty)
	}
}

func TestSMAMomentumSellWithoutPositionHolds(t *testing.T) {
	strat := NewSMAMomentum(DefaultThresholds())
	intent := strat.Decide(MarketSnapshot{
		Previous:    snap(101, 100, 50, 25),
		Current:     snap(99, 100, 45, 25),
		PositionQty: decimal.Zero,
	})
	if intent.Action != Hold || intent.Reason != "no_position" {
		t.Fatalf("expected HOLD no_position, got %s %s", intent.Action, intent.Reason)
	}
}
