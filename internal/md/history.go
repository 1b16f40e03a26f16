package md

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// History fetches daily bars from the Alpaca market data API.
type History struct {
	client *marketdata.Client
	feed   marketdata.Feed
	now    func() time.Time
}

func NewHistory(apiKey, apiSecret, feed string) *History {
	return &History{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		feed: parseFeed(feed),
		now:  time.Now,
	}
}

// DailyBars returns up to length most recent daily bars for symbol, oldest first.
func (h *History) DailyBars(ctx context.Context, symbol string, length int) ([]Bar, error) {
	// Weekends and holidays: request roughly 1.6 calendar days per trading day.
	days := length*8/5 + 10
	return h.bars(ctx, symbol, marketdata.OneDay, days, length)
}

// MinuteBars returns up to length most recent minute bars for symbol, oldest
// first. It seeds stream windows at startup.
func (h *History) MinuteBars(ctx context.Context, symbol string, length int) ([]Bar, error) {
	// A regular session has 390 minutes; the slack covers weekends.
	days := length/390 + 5
	return h.bars(ctx, symbol, marketdata.OneMin, days, length)
}

func (h *History) bars(ctx context.Context, symbol string, timeFrame marketdata.TimeFrame, days, length int) ([]Bar, error) {
	if length <= 0 {
		return nil, fmt.Errorf("length must be > 0")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := h.now().UTC()
	start := end.AddDate(0, 0, -days)

	raw, err := h.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  timeFrame,
		Start:      start,
		End:        end,
		Feed:       h.feed,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		slog.Error("fetch bars failed", "symbol", symbol, "timeframe", timeFrame.String(), "length", length, "error", err)
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Symbol:    symbol,
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	if len(bars) > length {
		bars = bars[len(bars)-length:]
	}
	slog.Debug("bars fetched", "symbol", symbol, "timeframe", timeFrame.String(), "count", len(bars))
	return bars, nil
}
