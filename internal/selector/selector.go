// Package selector narrows the tradable universe to what the available
// capital can hold and orders it by risk-adjusted momentum.
package selector

import (
	"log/slog"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"smabot/internal/indicator"
	"smabot/internal/md"
)

// Tier maps a minimum account size to the symbols worth trading at that size.
type Tier struct {
	MinCapital float64  `yaml:"min_capital"`
	Symbols    []string `yaml:"symbols"`
}

type Candidate struct {
	Symbol string
	Price  float64
	MinLot decimal.Decimal
}

type Selector struct {
	MaxPositions          int
	MinCapitalPerPosition float64
	Tiers                 []Tier
}

// Universe returns the symbols of the richest tier the capital qualifies for.
// Capital below every tier falls back to the smallest tier.
func (s Selector) Universe(capital float64) []string {
	if len(s.Tiers) == 0 {
		return nil
	}
	tiers := append([]Tier(nil), s.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinCapital < tiers[j].MinCapital })

	chosen := tiers[0]
	for _, t := range tiers {
		if capital >= t.MinCapital {
			chosen = t
		}
	}
	return append([]string(nil), chosen.Symbols...)
}

// Slots is the number of concurrent positions the capital supports.
func (s Selector) Slots(capital float64) int {
	slots := s.MaxPositions
	if slots <= 0 {
		slots = 1
	}
	if s.MinCapitalPerPosition > 0 {
		byCapital := int(math.Floor(capital / s.MinCapitalPerPosition))
		if byCapital < slots {
			slots = byCapital
		}
	}
	if slots < 1 {
		slots = 1
	}
	return slots
}

// Filter drops candidates whose minimum lot costs more than one slot of capital.
func (s Selector) Filter(candidates []Candidate, capital float64) []string {
	perPosition := capital / float64(s.Slots(capital))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lot := c.MinLot
		if !lot.IsPositive() {
			lot = decimal.NewFromInt(1)
		}
		cost := lot.Mul(decimal.NewFromFloat(c.Price)).InexactFloat64()
		if c.Price <= 0 || cost > perPosition {
			slog.Info("symbol filtered", "symbol", c.Symbol, "lot_cost", cost, "per_position", perPosition)
			continue
		}
		out = append(out, c.Symbol)
	}
	return out
}

type Score struct {
	Symbol string
	Value  float64
}

// VolatilityWindow is the number of trailing closes used for the volatility
// denominator of Rank.
const VolatilityWindow = 20

// Rank scores each history by total return divided by the standard deviation
// of its last VolatilityWindow closes, best first. Histories that are too
// short or have zero volatility are skipped.
func Rank(histories map[string][]md.Bar) []Score {
	scores := make([]Score, 0, len(histories))
	for symbol, bars := range histories {
		closes := md.Closes(bars)
		if len(closes) < VolatilityWindow || closes[0] <= 0 {
			slog.Info("rank skipped", "symbol", symbol, "bars", len(closes))
			continue
		}
		vol, err := indicator.StdDev(closes, VolatilityWindow)
		if err != nil || vol == 0 {
			slog.Info("rank skipped", "symbol", symbol, "volatility", vol, "error", err)
			continue
		}
		momentum := closes[len(closes)-1]/closes[0] - 1
		scores = append(scores, Score{Symbol: symbol, Value: momentum / vol})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value == scores[j].Value {
			return scores[i].Symbol < scores[j].Symbol
		}
		return scores[i].Value > scores[j].Value
	})
	return scores
}

// Top returns at most n symbols from ranked scores.
func Top(scores []Score, n int) []string {
	if n > len(scores) || n < 0 {
		n = len(scores)
	}
	out := make([]string, 0, n)
	for _, s := range scores[:n] {
		out = append(out, s.Symbol)
	}
	return out
}
