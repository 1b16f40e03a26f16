package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smabot/internal/risk"
)

func TestCheckpointRoundTripKeepsHaltLatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewStore()
	store.UpdatePosition(risk.Position{Symbol: "QQQ", Qty: decimal.NewFromInt(4), EntryPrice: 400, RiskAmount: 100})
	store.UpdateDrawdown(func(d *risk.DrawdownState) {
		d.Peak = 10_000
		d.Halted = true
	})
	store.SetLastTradeTime("QQQ", time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC))

	if err := store.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewStore()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := loaded.Snapshot()
	if !snap.Drawdown.Halted || snap.Drawdown.Peak != 10_000 {
		t.Fatalf("expected halted drawdown with peak 10000, got %+v", snap.Drawdown)
	}
	if pos := snap.Positions["QQQ"]; !pos.Qty.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected QQQ qty 4, got %s", pos.Qty)
	}
	if snap.LastTradeTime["QQQ"].IsZero() {
		t.Fatalf("expected last trade time to survive checkpoint")
	}
}

func TestUpdatePositionZeroRemoves(t *testing.T) {
	store := NewStore()
	store.UpdatePosition(risk.Position{Symbol: "GLD", Qty: decimal.NewFromInt(2)})
	store.UpdatePosition(risk.Position{Symbol: "GLD", Qty: decimal.Zero})

	if _, ok := store.Snapshot().Positions["GLD"]; ok {
		t.Fatalf("expected GLD position to be removed")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.AddOpenOrder(OpenOrder{ClientOrderID: "a", Symbol: "VOO"})
	snap := store.Snapshot()
	snap.OpenOrders["b"] = OpenOrder{ClientOrderID: "b", Symbol: "VOO"}

	if got := store.Snapshot().OpenOrderCount("VOO"); got != 1 {
		t.Fatalf("expected store to be unaffected by snapshot mutation, got %d orders", got)
	}
}
