package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"smabot/internal/indicator"
)

type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Signal is the discrete output of the Generator together with the rule that fired.
type Signal struct {
	Action Action
	Reason string
}

type MarketSnapshot struct {
	Timestamp   time.Time
	Symbol      string
	Previous    indicator.Snapshot
	Current     indicator.Snapshot
	PositionQty decimal.Decimal
}

// TradeIntent is what a strategy wants to do. Buy intents carry a zero Qty;
// sizing belongs to the risk package.
type TradeIntent struct {
	Action Action
	Qty    decimal.Decimal
	Reason string
}

type Strategy interface {
	Decide(snapshot MarketSnapshot) TradeIntent
}
