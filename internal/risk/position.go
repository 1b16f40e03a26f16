package risk

import "github.com/shopspring/decimal"

type Position struct {
	Symbol     string          `json:"symbol"`
	Qty        decimal.Decimal `json:"qty"`
	EntryPrice float64         `json:"entry_price"`
	RiskAmount float64         `json:"risk_amount"`
}

type BracketLevels struct {
	StopLoss   float64
	TakeProfit float64
}

// Brackets places the protective stop stopMult ATRs below price and the
// profit target takeMult ATRs above it, rounded to cents.
func Brackets(price, atr, stopMult, takeMult float64) BracketLevels {
	p := decimal.NewFromFloat(price)
	a := decimal.NewFromFloat(atr)
	stop := p.Sub(a.Mul(decimal.NewFromFloat(stopMult))).Round(2)
	take := p.Add(a.Mul(decimal.NewFromFloat(takeMult))).Round(2)
	return BracketLevels{
		StopLoss:   stop.InexactFloat64(),
		TakeProfit: take.InexactFloat64(),
	}
}
