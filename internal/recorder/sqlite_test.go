package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"smabot/internal/engine"
	"smabot/internal/strategy"
)

func TestSQLiteRecorderAppendAndCount(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rec.Close()

	now := time.Date(2024, 3, 1, 20, 45, 0, 0, time.UTC)
	rec.Append(engine.Decision{RunID: "r1", Timestamp: now, BarTime: now, Symbol: "SPY", Intent: strategy.Buy, IntentQty: "3", Result: "order_submitted", StopLoss: 97, TakeProfit: 104})
	rec.Append(engine.Decision{RunID: "r1", Timestamp: now, Symbol: "QQQ", Intent: strategy.Hold, Result: "insufficient_data"})
	rec.Append(engine.Decision{RunID: "r1", Timestamp: now, Symbol: "GLD", Intent: strategy.Hold, Result: "hold"})
	rec.Append(engine.Decision{RunID: "r2", Timestamp: now, Symbol: "GLD", Intent: strategy.Hold, Result: "hold"})

	counts, err := rec.CountByResult("r1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["order_submitted"] != 1 || counts["insufficient_data"] != 1 || counts["hold"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestSQLiteRecorderReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	rec, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec.Append(engine.Decision{RunID: "r1", Timestamp: time.Now(), Symbol: "SPY", Result: "hold"})
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec, err = NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rec.Close()
	counts, err := rec.CountByResult("r1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["hold"] != 1 {
		t.Fatalf("expected persisted row, got %v", counts)
	}
}
