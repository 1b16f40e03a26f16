package indicator

import (
	"errors"
	"math"
	"testing"

	"smabot/internal/md"
)

func barsFromCloses(closes []float64) []md.Bar {
	bars := make([]md.Bar, len(closes))
	for i, c := range closes {
		bars[i] = md.Bar{Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return bars
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMAConstantSeries(t *testing.T) {
	closes := []float64{42.5, 42.5, 42.5, 42.5, 42.5}
	for period := 1; period <= len(closes); period++ {
		got, err := SMA(closes, period)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 42.5 {
			t.Fatalf("expected SMA(%d)=42.5, got %v", period, got)
		}
	}
}

func TestSMAFastAboveSlowOnUptrend(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	fast, err := SMA(closes, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slow, err := SMA(closes, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fast != 14.5 || slow != 13.5 {
		t.Fatalf("expected fast=14.5 slow=13.5, got fast=%v slow=%v", fast, slow)
	}
	if fast <= slow {
		t.Fatalf("expected fast above slow on uptrend")
	}
}

func TestShortInputReportsInsufficientData(t *testing.T) {
	closes := []float64{1, 2, 3}
	bars := barsFromCloses(closes)

	if _, err := SMA(closes, 4); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("sma: expected ErrInsufficientData, got %v", err)
	}
	if _, err := RSI(closes, 3); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("rsi: expected ErrInsufficientData, got %v", err)
	}
	if _, err := ATR(bars, 3); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("atr: expected ErrInsufficientData, got %v", err)
	}
	if _, err := ADX(bars, 2); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("adx: expected ErrInsufficientData, got %v", err)
	}
}

func TestInvalidPeriod(t *testing.T) {
	if _, err := SMA([]float64{1}, 0); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := RSI([]float64{1, 2}, -1); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	rsiUp, err := RSI(up, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsiUp < 99.99 {
		t.Fatalf("expected RSI near 100 on rising series, got %v", rsiUp)
	}

	rsiDown, err := RSI(down, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsiDown > 0.01 {
		t.Fatalf("expected RSI near 0 on falling series, got %v", rsiDown)
	}

	flat, err := RSI([]float64{5, 5, 5, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flat != 50 {
		t.Fatalf("expected RSI 50 on flat series, got %v", flat)
	}
}

func TestRSIMixedSeries(t *testing.T) {
	// deltas: +2, -1, +1, -2 => mean gain 0.75, mean loss 0.75
	got, err := RSI([]float64{10, 12, 11, 12, 10}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 50) {
		t.Fatalf("expected RSI 50, got %v", got)
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	bars := []md.Bar{
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 11, Close: 11.5}, // TR = max(1, 2, 1) = 2
		{High: 11, Low: 8, Close: 9},     // TR = max(3, 0.5, 3.5) = 3.5
	}
	got, err := ATR(bars, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 2.75) {
		t.Fatalf("expected ATR 2.75, got %v", got)
	}
}

func TestADXStrongTrendVersusChop(t *testing.T) {
	trend := make([]md.Bar, 40)
	chop := make([]md.Bar, 40)
	for i := range trend {
		c := 100 + 2*float64(i)
		trend[i] = md.Bar{High: c + 1, Low: c - 1, Close: c}
		offset := 1.0
		if i%2 == 0 {
			offset = -1.0
		}
		chop[i] = md.Bar{High: 101 + offset, Low: 99 + offset, Close: 100 + offset}
	}

	strong, err := ADX(trend, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weak, err := ADX(chop, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strong < 90 {
		t.Fatalf("expected ADX near 100 for steady trend, got %v", strong)
	}
	if weak >= strong {
		t.Fatalf("expected choppy ADX %v below trending ADX %v", weak, strong)
	}
	if strong > 100 || weak < 0 {
		t.Fatalf("ADX out of range: strong=%v weak=%v", strong, weak)
	}
}

func TestStdDev(t *testing.T) {
	got, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, math.Sqrt(32.0/7.0)) {
		t.Fatalf("unexpected stddev %v", got)
	}
}

func TestMACDRisingSeriesPositive(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50 + float64(i)
	}
	v, err := MACD(closes, 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.MACD <= 0 {
		t.Fatalf("expected positive MACD on rising series, got %v", v.MACD)
	}
	if _, err := MACD(closes[:20], 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
