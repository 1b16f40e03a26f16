package broker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

type OrderRequest struct {
	Symbol        string
	Qty           decimal.Decimal
	Side          alpaca.Side
	Type          alpaca.OrderType
	TimeInForce   alpaca.TimeInForce
	ClientOrderID string
	ExtendedHours bool
	LimitPrice    *float64
	StopLoss      *float64
	TakeProfit    *float64
}

type OrderRef struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Status        string
}

type Position struct {
	Symbol   string
	Qty      decimal.Decimal
	AvgEntry float64
}

type Account struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}

type Clock struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

type Client struct {
	client *alpaca.Client
}

func New(apiKey, apiSecret, baseURL string) *Client {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Client{client: alpaca.NewClient(opts)}
}

// PlaceOrder submits a simple order, or a bracket order when both protective
// levels are set.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := ctx.Err(); err != nil {
		return OrderRef{}, err
	}
	qty := req.Qty
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
		ExtendedHours: req.ExtendedHours,
	}
	if req.LimitPrice != nil {
		limitPrice := decimal.NewFromFloat(*req.LimitPrice)
		orderReq.LimitPrice = &limitPrice
	}
	if req.StopLoss != nil && req.TakeProfit != nil {
		stop := decimal.NewFromFloat(*req.StopLoss)
		take := decimal.NewFromFloat(*req.TakeProfit)
		orderReq.OrderClass = alpaca.Bracket
		orderReq.StopLoss = &alpaca.StopLoss{StopPrice: &stop}
		orderReq.TakeProfit = &alpaca.TakeProfit{LimitPrice: &take}
	}

	order, err := c.client.PlaceOrder(orderReq)
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", req.Qty.String(), "type", req.Type, "error", err)
		return OrderRef{}, err
	}

	slog.Info("place order success", "order_id", order.ID, "side", req.Side, "symbol", req.Symbol, "qty", req.Qty.String(), "type", req.Type, "class", orderReq.OrderClass, "status", order.Status)
	return OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Status:        string(order.Status),
	}, nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]OrderRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := alpaca.GetOrdersRequest{
		Status: "open",
	}
	orders, err := c.client.GetOrders(req)
	if err != nil {
		slog.Error("fetch open orders failed", "error", err)
		return nil, err
	}
	slog.Info("open orders fetched", "count", len(orders))
	refs := make([]OrderRef, 0, len(orders))
	for _, order := range orders {
		refs = append(refs, OrderRef{
			ID:            order.ID,
			ClientOrderID: order.ClientOrderID,
			Symbol:        order.Symbol,
			Status:        string(order.Status),
		})
	}
	return refs, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.CancelOrder(orderID); err != nil {
		slog.Error("cancel order failed", "order_id", orderID, "error", err)
		return err
	}
	slog.Info("order cancelled", "order_id", orderID)
	return nil
}

// Position returns the open position for symbol. A symbol without a position
// yields a zero quantity rather than an error.
func (c *Client) Position(ctx context.Context, symbol string) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	pos, err := c.client.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Position{Symbol: symbol, Qty: decimal.Zero}, nil
		}
		slog.Error("fetch position failed", "symbol", symbol, "error", err)
		return Position{}, err
	}
	avgEntry := pos.AvgEntryPrice.InexactFloat64()

	slog.Info("position fetched", "symbol", symbol, "qty", pos.Qty.String(), "avg_entry", avgEntry)
	return Position{
		Symbol:   pos.Symbol,
		Qty:      pos.Qty,
		AvgEntry: avgEntry,
	}, nil
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	acct, err := c.client.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return Account{}, err
	}
	equity := acct.Equity.InexactFloat64()
	cash := acct.Cash.InexactFloat64()
	buyingPower := acct.BuyingPower.InexactFloat64()

	slog.Info("account fetched", "equity", equity, "cash", cash, "buying_power", buyingPower)
	return Account{Equity: equity, Cash: cash, BuyingPower: buyingPower}, nil
}

func (c *Client) Clock(ctx context.Context) (Clock, error) {
	if err := ctx.Err(); err != nil {
		return Clock{}, err
	}
	clock, err := c.client.GetClock()
	if err != nil {
		slog.Error("fetch clock failed", "error", err)
		return Clock{}, err
	}
	return Clock{IsOpen: clock.IsOpen, NextOpen: clock.NextOpen, NextClose: clock.NextClose}, nil
}
