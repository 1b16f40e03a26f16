package indicator

import (
	"errors"
	"testing"
)

func TestComputeSnapshot(t *testing.T) {
	bars := barsFromCloses([]float64{10, 11, 12, 13, 14, 15})
	periods := Periods{Fast: 2, Slow: 4, RSI: 2, ADX: 2, ATR: 2}

	snap, err := Compute(bars, periods)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.SMAFast != 14.5 || snap.SMASlow != 13.5 {
		t.Fatalf("expected fast=14.5 slow=13.5, got %+v", snap)
	}
	if snap.Spread() <= 0 {
		t.Fatalf("expected positive spread, got %v", snap.Spread())
	}
	if snap.Close != 15 {
		t.Fatalf("expected close 15, got %v", snap.Close)
	}
	if snap.RSI != 100 {
		t.Fatalf("expected RSI 100 on rising closes, got %v", snap.RSI)
	}
	// Each bar spans 1.0 and gaps up by 1 from the previous close: TR = 1.5.
	if !almostEqual(snap.ATR, 1.5) {
		t.Fatalf("expected ATR 1.5, got %v", snap.ATR)
	}
}

func TestComputeRejectsShortWindow(t *testing.T) {
	periods := DefaultPeriods()
	for n := 0; n < periods.Lookback(); n++ {
		bars := barsFromCloses(make([]float64, n))
		if _, err := Compute(bars, periods); !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("len=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
}

func TestComputeRejectsInvalidPeriods(t *testing.T) {
	bars := barsFromCloses(make([]float64, 100))
	if _, err := Compute(bars, Periods{Fast: -1, Slow: 30, RSI: 14, ADX: 14, ATR: 14}); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := Compute(bars, Periods{Fast: 30, Slow: 10, RSI: 14, ADX: 14, ATR: 14}); err == nil {
		t.Fatalf("expected error when fast >= slow")
	}
}

func TestLookbackCoversEveryIndicator(t *testing.T) {
	p := Periods{Fast: 10, Slow: 30, RSI: 14, ADX: 20, ATR: 14}
	if got := p.Lookback(); got != 40 {
		t.Fatalf("expected lookback 40, got %d", got)
	}
}

func TestComputePair(t *testing.T) {
	bars := barsFromCloses([]float64{15, 14, 13, 12, 13, 15, 18})
	periods := Periods{Fast: 2, Slow: 4, RSI: 2, ADX: 2, ATR: 2}

	prev, cur, err := ComputePair(bars, periods)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev.Close != 15 || cur.Close != 18 {
		t.Fatalf("expected closes 15 and 18, got %v and %v", prev.Close, cur.Close)
	}
	if _, _, err := ComputePair(bars[:4], periods); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
