package strategy

import "github.com/shopspring/decimal"

// SMAMomentum enters on a confirmed bullish crossover when flat and exits the
// whole position on a bearish crossover or an overbought RSI.
type SMAMomentum struct {
	Generator Generator
}

func NewSMAMomentum(thresholds Thresholds) SMAMomentum {
	return SMAMomentum{Generator: Generator{Thresholds: thresholds}}
}

func (s SMAMomentum) Decide(snapshot MarketSnapshot) TradeIntent {
	signal := s.Generator.Evaluate(snapshot.Previous, snapshot.Current)
	holding := snapshot.PositionQty.IsPositive()

	switch signal.Action {
	case Buy:
		if holding {
			return TradeIntent{Action: Hold, Qty: decimal.Zero, Reason: "already_long"}
		}
		return TradeIntent{Action: Buy, Qty: decimal.Zero, Reason: signal.Reason}
	case Sell:
		if !holding {
			return TradeIntent{Action: Hold, Qty: decimal.Zero, Reason: "no_position"}
		}
		return TradeIntent{Action: Sell, Qty: snapshot.PositionQty, Reason: signal.Reason}
	}
	return TradeIntent{Action: Hold, Qty: decimal.Zero, Reason: signal.Reason}
}
