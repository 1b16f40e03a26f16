// Package indicator computes moving-average and momentum indicators over a
// bounded window of price bars. All functions are pure and look only at the
// trailing end of their input.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"smabot/internal/md"
)

var (
	// ErrInsufficientData is returned when the window is shorter than the
	// lookback an indicator needs.
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidPeriod    = errors.New("period must be positive")
)

func insufficient(name string, need, have int) error {
	return fmt.Errorf("%s needs %d values, have %d: %w", name, need, have, ErrInsufficientData)
}

// SMA is the arithmetic mean of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(closes) < period {
		return 0, insufficient("sma", period, len(closes))
	}
	sum := 0.0
	for _, v := range closes[len(closes)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// StdDev is the sample standard deviation of the last period closes.
func StdDev(closes []float64, period int) (float64, error) {
	if period <= 1 {
		return 0, ErrInvalidPeriod
	}
	mean, err := SMA(closes, period)
	if err != nil {
		return 0, err
	}
	sq := 0.0
	for _, v := range closes[len(closes)-period:] {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(period-1)), nil
}

// RSI compares the mean gain with the mean loss over the last period close
// deltas. It needs period+1 closes. A window with no losses reads 100, one
// with no gains reads 0 and a flat window reads 50.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(closes) < period+1 {
		return 0, insufficient("rsi", period+1, len(closes))
	}
	window := closes[len(closes)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	gain /= float64(period)
	loss /= float64(period)

	switch {
	case gain == 0 && loss == 0:
		return 50, nil
	case loss == 0:
		return 100, nil
	}
	rs := gain / loss
	return 100 - 100/(1+rs), nil
}

func trueRange(cur, prev md.Bar) float64 {
	return math.Max(
		cur.High-cur.Low,
		math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)),
	)
}

// ATR is the mean true range over the last period bars. Each true range needs
// the previous close, so period+1 bars are required.
func ATR(bars []md.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(bars) < period+1 {
		return 0, insufficient("atr", period+1, len(bars))
	}
	window := bars[len(bars)-period-1:]
	sum := 0.0
	for i := 1; i < len(window); i++ {
		sum += trueRange(window[i], window[i-1])
	}
	return sum / float64(period), nil
}

// ADX averages the directional index over the last period values. Each DX
// uses rolling means of directional movement and true range over period bars,
// so 2*period bars are required.
func ADX(bars []md.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	need := 2 * period
	if len(bars) < need {
		return 0, insufficient("adx", need, len(bars))
	}
	window := bars[len(bars)-need:]

	// Index i describes the move from window[i] to window[i+1].
	n := len(window) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 0; i < n; i++ {
		cur, prev := window[i+1], window[i]
		tr[i] = trueRange(cur, prev)
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	sum := 0.0
	for end := period; end <= n; end++ {
		var trSum, plusSum, minusSum float64
		for i := end - period; i < end; i++ {
			trSum += tr[i]
			plusSum += plusDM[i]
			minusSum += minusDM[i]
		}
		sum += dx(plusSum, minusSum, trSum)
	}
	count := n - period + 1
	return sum / float64(count), nil
}

func dx(plusSum, minusSum, trSum float64) float64 {
	if trSum == 0 {
		return 0
	}
	plusDI := 100 * plusSum / trSum
	minusDI := 100 * minusSum / trSum
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}
