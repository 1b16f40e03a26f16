package strategy

import (
	"fmt"

	"smabot/internal/indicator"
)

const (
	ReasonBullishCrossover = "bullish_crossover"
	ReasonBearishCrossover = "bearish_crossover"
	ReasonRSIOverbought    = "rsi_overbought"
	ReasonNoSignal         = "no_signal"
)

type Thresholds struct {
	RSIOverbought float64
	ADXThreshold  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{RSIOverbought: 70, ADXThreshold: 20}
}

func (t Thresholds) Validate() error {
	if t.RSIOverbought <= 0 || t.RSIOverbought >= 100 {
		return fmt.Errorf("rsi overbought %.2f must be within (0, 100)", t.RSIOverbought)
	}
	if t.ADXThreshold < 0 || t.ADXThreshold >= 100 {
		return fmt.Errorf("adx threshold %.2f must be within [0, 100)", t.ADXThreshold)
	}
	return nil
}

// Generator turns two consecutive indicator snapshots into a Signal.
// Crossovers are detected from the sign change of the fast/slow spread, so a
// fast average that merely stays above the slow one does not re-trigger.
type Generator struct {
	Thresholds Thresholds
}

func (g Generator) Evaluate(prev, cur indicator.Snapshot) Signal {
	crossedUp := prev.Spread() <= 0 && cur.Spread() > 0
	crossedDown := prev.Spread() >= 0 && cur.Spread() < 0

	switch {
	case crossedUp && cur.RSI < g.Thresholds.RSIOverbought && cur.ADX > g.Thresholds.ADXThreshold:
		return Signal{Action: Buy, Reason: ReasonBullishCrossover}
	case crossedDown:
		return Signal{Action: Sell, Reason: ReasonBearishCrossover}
	case cur.RSI > g.Thresholds.RSIOverbought:
		return Signal{Action: Sell, Reason: ReasonRSIOverbought}
	}
	return Signal{Action: Hold, Reason: ReasonNoSignal}
}
