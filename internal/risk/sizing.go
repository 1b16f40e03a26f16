package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid sizing input")

// Sizer turns a per-trade risk budget into a position size. The stop distance
// is ATR times Multiplier, so a full stop-out loses roughly RiskPerTrade of
// equity.
type Sizer struct {
	RiskPerTrade float64
	Multiplier   float64
	LotSize      decimal.Decimal
}

type SizeRequest struct {
	Equity float64
	Cash   float64
	Price  float64
	ATR    float64
}

type Size struct {
	Qty        decimal.Decimal
	RiskAmount float64
}

func (s Sizer) Size(req SizeRequest) (Size, error) {
	if req.ATR <= 0 || req.Price <= 0 || s.Multiplier <= 0 {
		return Size{}, fmt.Errorf("atr=%.4f price=%.4f multiplier=%.2f: %w", req.ATR, req.Price, s.Multiplier, ErrInvalidInput)
	}
	if req.Equity <= 0 {
		return Size{}, fmt.Errorf("equity=%.2f: %w", req.Equity, ErrInvalidInput)
	}

	riskAmount := req.Equity * s.RiskPerTrade
	if req.Cash >= 0 && req.Cash < riskAmount {
		riskAmount = req.Cash
	}
	perShare := decimal.NewFromFloat(req.ATR * s.Multiplier)
	qty := s.floor(decimal.NewFromFloat(riskAmount).Div(perShare))

	if req.Cash >= 0 {
		byCash := s.floor(decimal.NewFromFloat(req.Cash).Div(decimal.NewFromFloat(req.Price)))
		if byCash.LessThan(qty) {
			qty = byCash
		}
	}
	if qty.IsNegative() {
		qty = decimal.Zero
	}
	return Size{Qty: qty, RiskAmount: riskAmount}, nil
}

// floor rounds qty down to a whole number of lots.
func (s Sizer) floor(qty decimal.Decimal) decimal.Decimal {
	lot := s.LotSize
	if !lot.IsPositive() {
		lot = decimal.NewFromInt(1)
	}
	return qty.Div(lot).Floor().Mul(lot)
}
