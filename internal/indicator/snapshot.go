package indicator

import (
	"fmt"

	"smabot/internal/md"
)

// Periods configures the lookback of every indicator in a Snapshot.
type Periods struct {
	Fast int
	Slow int
	RSI  int
	ADX  int
	ATR  int
}

func DefaultPeriods() Periods {
	return Periods{Fast: 10, Slow: 30, RSI: 14, ADX: 14, ATR: 14}
}

func (p Periods) Validate() error {
	if p.Fast <= 0 || p.Slow <= 0 || p.RSI <= 0 || p.ADX <= 0 || p.ATR <= 0 {
		return fmt.Errorf("periods %+v: %w", p, ErrInvalidPeriod)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("fast period %d must be below slow period %d", p.Fast, p.Slow)
	}
	return nil
}

// Lookback is the minimum number of bars Compute accepts.
func (p Periods) Lookback() int {
	return max(p.Fast, p.Slow, p.RSI+1, p.ATR+1, 2*p.ADX)
}

// Snapshot holds the indicator values at the last bar of a window.
type Snapshot struct {
	Close   float64 `json:"close"`
	SMAFast float64 `json:"sma_fast"`
	SMASlow float64 `json:"sma_slow"`
	RSI     float64 `json:"rsi"`
	ADX     float64 `json:"adx"`
	ATR     float64 `json:"atr"`
}

// Spread is the fast average minus the slow average; its sign flips on a crossover.
func (s Snapshot) Spread() float64 {
	return s.SMAFast - s.SMASlow
}

// Compute evaluates every indicator on bars. It refuses partial windows and
// reports ErrInsufficientData instead.
func Compute(bars []md.Bar, p Periods) (Snapshot, error) {
	if err := p.Validate(); err != nil {
		return Snapshot{}, err
	}
	if need := p.Lookback(); len(bars) < need {
		return Snapshot{}, insufficient("snapshot", need, len(bars))
	}
	closes := md.Closes(bars)

	var (
		s   = Snapshot{Close: closes[len(closes)-1]}
		err error
	)
	if s.SMAFast, err = SMA(closes, p.Fast); err != nil {
		return Snapshot{}, err
	}
	if s.SMASlow, err = SMA(closes, p.Slow); err != nil {
		return Snapshot{}, err
	}
	if s.RSI, err = RSI(closes, p.RSI); err != nil {
		return Snapshot{}, err
	}
	if s.ADX, err = ADX(bars, p.ADX); err != nil {
		return Snapshot{}, err
	}
	if s.ATR, err = ATR(bars, p.ATR); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// ComputePair returns the snapshots for the last bar and the bar before it.
// It needs one bar more than Lookback.
func ComputePair(bars []md.Bar, p Periods) (prev, cur Snapshot, err error) {
	if err := p.Validate(); err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	if need := p.Lookback() + 1; len(bars) < need {
		return Snapshot{}, Snapshot{}, insufficient("snapshot pair", need, len(bars))
	}
	if prev, err = Compute(bars[:len(bars)-1], p); err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	if cur, err = Compute(bars, p); err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	return prev, cur, nil
}
