package risk

import "log/slog"

// DrawdownState is the mutable part of drawdown control. Each strategy
// instance owns one and passes it to the guard on every observation.
type DrawdownState struct {
	Peak   float64 `json:"peak"`
	Halted bool    `json:"halted"`
}

// DrawdownGuard latches a halt once equity falls more than MaxDrawdown below
// its running peak. Only Reset clears the latch.
type DrawdownGuard struct {
	MaxDrawdown float64
}

// Drawdown returns the fractional decline from peak, 0 when at or above peak.
func (s DrawdownState) Drawdown(equity float64) float64 {
	if s.Peak <= 0 || equity >= s.Peak {
		return 0
	}
	return (s.Peak - equity) / s.Peak
}

// Observe records equity and reports whether trading is halted.
func (g DrawdownGuard) Observe(state *DrawdownState, equity float64) bool {
	if equity > state.Peak {
		state.Peak = equity
	}
	dd := state.Drawdown(equity)
	if !state.Halted && dd > g.MaxDrawdown {
		state.Halted = true
		slog.Warn("drawdown halt triggered", "peak", state.Peak, "equity", equity, "drawdown", dd, "max", g.MaxDrawdown)
	}
	return state.Halted
}

func (g DrawdownGuard) Reset(state *DrawdownState, equity float64) {
	slog.Info("drawdown halt reset", "previous_peak", state.Peak, "equity", equity)
	state.Halted = false
	state.Peak = equity
}
