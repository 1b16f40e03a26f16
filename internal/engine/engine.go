package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"smabot/internal/broker"
	"smabot/internal/config"
	"smabot/internal/indicator"
	"smabot/internal/md"
	"smabot/internal/metrics"
	"smabot/internal/risk"
	"smabot/internal/selector"
	"smabot/internal/state"
	"smabot/internal/strategy"
)

// Broker is the execution adapter the engine trades through.
type Broker interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderRef, error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context) ([]broker.OrderRef, error)
	Position(ctx context.Context, symbol string) (broker.Position, error)
	Account(ctx context.Context) (broker.Account, error)
	Clock(ctx context.Context) (broker.Clock, error)
}

// BarSource provides completed daily bars, oldest first.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, length int) ([]md.Bar, error)
}

const reasonDrawdownStop = "drawdown_stop"

type Engine struct {
	cfg         config.Config
	strategy    strategy.Strategy
	sizer       risk.Sizer
	guard       risk.DrawdownGuard
	gate        risk.Gate
	selector    selector.Selector
	broker      Broker
	bars        BarSource
	state       *state.Store
	sinks       []DecisionSink
	windows     map[string]*md.RingBuffer
	account     broker.Account
	runID       string
	orderSeqNum uint64
	now         func() time.Time
	mu          sync.Mutex
}

func New(cfg config.Config, strat strategy.Strategy, brokerClient Broker, bars BarSource, stateStore *state.Store, runID string, sinks ...DecisionSink) *Engine {
	return &Engine{
		cfg:      cfg,
		strategy: strat,
		sizer: risk.Sizer{
			RiskPerTrade: cfg.Risk.RiskPerTrade,
			Multiplier:   cfg.Risk.ATRMultiplier,
			LotSize:      decimal.NewFromFloat(cfg.Risk.LotSize),
		},
		guard: risk.DrawdownGuard{MaxDrawdown: cfg.Risk.MaxDrawdown},
		selector: selector.Selector{
			MaxPositions:          cfg.Selection.MaxPositions,
			MinCapitalPerPosition: cfg.Selection.MinCapitalPerPosition,
			Tiers:                 cfg.Selection.Tiers,
		},
		broker:  brokerClient,
		bars:    bars,
		state:   stateStore,
		sinks:   sinks,
		windows: map[string]*md.RingBuffer{},
		account: broker.Account{Equity: cfg.Risk.PaperEquity, Cash: cfg.Risk.PaperEquity},
		runID:   runID,
		now:     time.Now,
	}
}

// Symbols is the candidate universe for capital: the configured symbols when
// set, otherwise the matching capital tier.
func (e *Engine) Symbols(capital float64) []string {
	if len(e.cfg.Selection.Symbols) > 0 {
		return append([]string(nil), e.cfg.Selection.Symbols...)
	}
	return e.selector.Universe(capital)
}

// RunCycle performs one trading iteration: drawdown control, market-hours
// check, reconciliation, universe selection and per-symbol evaluation. A
// failure on one symbol never aborts the others.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.broker.Account(ctx)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}
	e.account = acct
	halted := e.observeEquity(acct.Equity)

	clock, err := e.broker.Clock(ctx)
	if err != nil {
		return fmt.Errorf("fetch clock: %w", err)
	}
	if !clock.IsOpen {
		slog.Info("market closed, skipping cycle", "next_open", clock.NextOpen)
		return nil
	}

	candidates := e.Symbols(acct.Equity)
	e.reconcile(ctx, e.trackedSymbols(candidates))

	if halted {
		e.liquidate(ctx)
		return nil
	}

	histories := make(map[string][]md.Bar, len(candidates))
	fetch := func(symbol string) {
		if _, ok := histories[symbol]; ok {
			return
		}
		bars, err := e.bars.DailyBars(ctx, symbol, e.cfg.Strategy.HistoryBars)
		if err != nil {
			slog.Warn("fetch bars failed", "symbol", symbol, "error", err)
			metrics.SymbolErrors.WithLabelValues(symbol, "data_error").Inc()
			e.record(Decision{
				RunID:        e.runID,
				Timestamp:    e.now().UTC(),
				Symbol:       symbol,
				Intent:       strategy.Hold,
				Result:       "data_error",
				RejectReason: err.Error(),
			})
			histories[symbol] = nil
			return
		}
		histories[symbol] = bars
	}
	for _, symbol := range candidates {
		fetch(symbol)
	}

	selected := e.selectSymbols(candidates, histories, acct.Equity)
	evaluated := map[string]bool{}
	for _, symbol := range e.trackedSymbols(selected) {
		if !containsSymbol(selected, symbol) && !e.state.Position(symbol).Qty.IsPositive() {
			continue
		}
		fetch(symbol)
		if histories[symbol] == nil || evaluated[symbol] {
			continue
		}
		evaluated[symbol] = true
		e.evaluate(ctx, symbol, histories[symbol], false)
	}
	return nil
}

// OnBar appends a streamed bar to the symbol's window and evaluates it. In
// stream mode approved intents are recorded as dry runs. Bars not newer than
// the window's last bar are dropped.
func (e *Engine) OnBar(ctx context.Context, bar md.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()

	window := e.window(bar.Symbol)
	if last, ok := window.Last(); ok && !bar.Timestamp.After(last.Timestamp) {
		slog.Debug("stale bar ignored", "symbol", bar.Symbol, "time", bar.Timestamp, "last", last.Timestamp)
		return
	}
	window.Add(bar)
	e.state.SetLastBarTime(bar.Timestamp)
	slog.Debug("bar received", "symbol", bar.Symbol, "close", bar.Close, "time", bar.Timestamp, "window", window.Len())

	e.evaluate(ctx, bar.Symbol, window.Bars(), e.cfg.Mode == config.ModeStream)
}

// Warmup seeds each symbol's stream window from fetch so evaluation can start
// with the first live bar. A symbol that fails to load starts empty.
func (e *Engine) Warmup(ctx context.Context, fetch func(ctx context.Context, symbol string, length int) ([]md.Bar, error), symbols []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, symbol := range symbols {
		bars, err := fetch(ctx, symbol, e.cfg.Strategy.HistoryBars)
		if err != nil {
			slog.Warn("warmup failed", "symbol", symbol, "error", err)
			continue
		}
		window := e.window(symbol)
		window.Seed(bars)
		slog.Info("window seeded", "symbol", symbol, "bars", window.Len())
	}
}

func (e *Engine) window(symbol string) *md.RingBuffer {
	window, ok := e.windows[symbol]
	if !ok {
		window = md.NewRingBuffer(e.cfg.Strategy.HistoryBars)
		e.windows[symbol] = window
	}
	return window
}

// ResetHalt clears the drawdown latch and restarts the peak at current equity.
func (e *Engine) ResetHalt(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	equity := e.account.Equity
	if e.cfg.Mode == config.ModePaper {
		acct, err := e.broker.Account(ctx)
		if err != nil {
			return fmt.Errorf("fetch account: %w", err)
		}
		e.account = acct
		equity = acct.Equity
	}
	st := e.state.UpdateDrawdown(func(d *risk.DrawdownState) { e.guard.Reset(d, equity) })
	metrics.SetHalted(st.Halted)
	return nil
}

// LogPortfolio logs account and position state under label.
func (e *Engine) LogPortfolio(ctx context.Context, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.broker.Account(ctx)
	if err != nil {
		slog.Warn("portfolio summary failed", "label", label, "error", err)
		return
	}
	e.account = acct
	snapshot := e.state.Snapshot()
	slog.Info(label, "equity", acct.Equity, "cash", acct.Cash, "buying_power", acct.BuyingPower,
		"positions", len(snapshot.Positions), "open_orders", len(snapshot.OpenOrders), "halted", snapshot.Drawdown.Halted)
	for _, position := range snapshot.Positions {
		slog.Info(label+" position", "symbol", position.Symbol, "qty", position.Qty.String(), "entry", position.EntryPrice, "risk", position.RiskAmount)
	}
}

func (e *Engine) observeEquity(equity float64) bool {
	st := e.state.UpdateDrawdown(func(d *risk.DrawdownState) { e.guard.Observe(d, equity) })
	dd := st.Drawdown(equity)
	metrics.Equity.Set(equity)
	metrics.DrawdownRatio.Set(dd)
	metrics.SetHalted(st.Halted)
	slog.Info("drawdown", "equity", equity, "peak", st.Peak, "drawdown_pct", -dd*100, "halted", st.Halted)
	return st.Halted
}

// liquidate closes every held position after the drawdown latch trips.
func (e *Engine) liquidate(ctx context.Context) {
	snapshot := e.state.Snapshot()
	symbols := make([]string, 0, len(snapshot.Positions))
	for symbol := range snapshot.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	slog.Warn("trading halted, liquidating", "positions", len(symbols))

	for _, symbol := range symbols {
		position := snapshot.Positions[symbol]
		if !position.Qty.IsPositive() {
			continue
		}
		decision := Decision{
			RunID:     e.runID,
			Timestamp: e.now().UTC(),
			Symbol:    symbol,
			Close:     position.EntryPrice,
		}
		intent := strategy.TradeIntent{Action: strategy.Sell, Qty: position.Qty, Reason: reasonDrawdownStop}
		e.execute(ctx, decision, intent, position.EntryPrice, risk.BracketLevels{}, 0, false)
	}
}

func (e *Engine) selectSymbols(candidates []string, histories map[string][]md.Bar, capital float64) []string {
	priced := make([]selector.Candidate, 0, len(candidates))
	for _, symbol := range candidates {
		bars := histories[symbol]
		if len(bars) == 0 {
			continue
		}
		priced = append(priced, selector.Candidate{
			Symbol: symbol,
			Price:  bars[len(bars)-1].Close,
			MinLot: e.sizer.LotSize,
		})
	}
	affordable := e.selector.Filter(priced, capital)
	if !e.cfg.Selection.RankByMomentum {
		return affordable
	}

	ranked := make(map[string][]md.Bar, len(affordable))
	for _, symbol := range affordable {
		ranked[symbol] = histories[symbol]
	}
	top := selector.Top(selector.Rank(ranked), e.selector.Slots(capital))
	slog.Info("universe ranked", "candidates", len(candidates), "affordable", len(affordable), "selected", top)
	return top
}

func (e *Engine) evaluate(ctx context.Context, symbol string, bars []md.Bar, dryRun bool) {
	decision := Decision{
		RunID:     e.runID,
		Timestamp: e.now().UTC(),
		Symbol:    symbol,
	}
	if n := len(bars); n > 0 {
		decision.BarTime = bars[n-1].Timestamp
		decision.Close = bars[n-1].Close
	}

	prev, cur, err := indicator.ComputePair(bars, e.cfg.Strategy.Periods())
	if err != nil {
		decision.Intent = strategy.Hold
		decision.Result = "indicator_error"
		if errors.Is(err, indicator.ErrInsufficientData) {
			decision.Result = "insufficient_data"
		}
		decision.RejectReason = err.Error()
		metrics.SymbolErrors.WithLabelValues(symbol, decision.Result).Inc()
		slog.Info("symbol skipped", "symbol", symbol, "result", decision.Result, "error", err)
		e.record(decision)
		return
	}
	decision.SMAFast = cur.SMAFast
	decision.SMASlow = cur.SMASlow
	decision.RSI = cur.RSI
	decision.ADX = cur.ADX
	decision.ATR = cur.ATR
	if m, err := indicator.MACD(md.Closes(bars), 12, 26, 9); err == nil {
		decision.MACDHist = m.Histogram
	}

	position := e.state.Position(symbol)
	intent := e.strategy.Decide(strategy.MarketSnapshot{
		Timestamp:   decision.BarTime,
		Symbol:      symbol,
		Previous:    prev,
		Current:     cur,
		PositionQty: position.Qty,
	})

	var (
		levels     risk.BracketLevels
		riskAmount float64
	)
	if intent.Action == strategy.Buy {
		size, err := e.sizer.Size(risk.SizeRequest{
			Equity: e.account.Equity,
			Cash:   e.account.Cash,
			Price:  cur.Close,
			ATR:    cur.ATR,
		})
		if err != nil {
			decision.Intent = intent.Action
			decision.Reason = intent.Reason
			decision.Result = "sizing_failed"
			decision.RejectReason = err.Error()
			metrics.SymbolErrors.WithLabelValues(symbol, decision.Result).Inc()
			e.record(decision)
			return
		}
		intent.Qty = size.Qty
		riskAmount = size.RiskAmount
		if e.cfg.Orders.Brackets {
			levels = risk.Brackets(cur.Close, cur.ATR, e.cfg.Risk.StopLossATR, e.cfg.Risk.TakeProfitATR)
		}
	}

	e.execute(ctx, decision, intent, cur.Close, levels, riskAmount, dryRun)
}

func (e *Engine) execute(ctx context.Context, decision Decision, intent strategy.TradeIntent, price float64, levels risk.BracketLevels, riskAmount float64, dryRun bool) {
	symbol := decision.Symbol
	decision.Intent = intent.Action
	decision.IntentQty = intent.Qty.String()
	decision.Reason = intent.Reason

	// Protective legs of a bracket hold the shares, so they go before an exit.
	if intent.Action == strategy.Sell && !dryRun {
		e.cancelOpenOrders(ctx, symbol)
	}

	snapshot := e.state.Snapshot()
	now := e.now().UTC()
	riskCtx := risk.RiskContext{
		Now:            now,
		Price:          price,
		PositionQty:    snapshot.Positions[symbol].Qty,
		OpenOrderCount: snapshot.OpenOrderCount(symbol),
		LastTradeTime:  snapshot.LastTradeTime[symbol],
		MaxNotional:    e.cfg.Risk.MaxNotional,
		Cooldown:       e.cfg.Risk.Cooldown,
		KillSwitch:     e.cfg.Risk.KillSwitch,
		Halted:         snapshot.Drawdown.Halted,
		ExtendedHours:  e.cfg.Orders.ExtendedHours,
		OrderType:      e.cfg.Orders.Type,
		TimeInForce:    e.cfg.Orders.TimeInForce,
	}
	if intent.Action == strategy.Sell && intent.Reason == reasonDrawdownStop {
		riskCtx.Cooldown = 0
	}

	approved, err := e.gate.Evaluate(intent, riskCtx)
	if err != nil {
		decision.Result = "rejected"
		decision.RejectReason = err.Error()
		e.record(decision)
		return
	}
	decision.ApprovalReason = approved.Reason

	if intent.Action == strategy.Hold {
		decision.Result = "hold"
		e.record(decision)
		return
	}

	if intent.Action == strategy.Buy && levels.StopLoss > 0 {
		decision.StopLoss = levels.StopLoss
		decision.TakeProfit = levels.TakeProfit
	}

	if dryRun {
		decision.Result = "dry_run"
		e.record(decision)
		return
	}

	orderReq, err := e.buildOrder(symbol, price, approved.Intent, levels)
	if err != nil {
		decision.Result = "order_build_failed"
		decision.RejectReason = err.Error()
		e.record(decision)
		return
	}

	orderRef, err := e.broker.PlaceOrder(ctx, orderReq)
	if err != nil {
		decision.Result = "order_failed"
		decision.RejectReason = err.Error()
		metrics.SymbolErrors.WithLabelValues(symbol, decision.Result).Inc()
		e.record(decision)
		return
	}

	decision.Result = "order_submitted"
	decision.OrderID = orderRef.ID
	decision.ClientOrderID = orderRef.ClientOrderID
	e.record(decision)
	metrics.OrdersSubmitted.WithLabelValues(symbol, string(intent.Action)).Inc()

	e.state.SetLastTradeTime(symbol, now)
	e.state.AddOpenOrder(state.OpenOrder{
		ClientOrderID: orderRef.ClientOrderID,
		OrderID:       orderRef.ID,
		Symbol:        symbol,
		Status:        orderRef.Status,
	})

	position := snapshot.Positions[symbol]
	switch intent.Action {
	case strategy.Buy:
		e.commitCash(intent.Qty, price)
		e.state.UpdatePosition(risk.Position{
			Symbol:     symbol,
			Qty:        position.Qty.Add(intent.Qty),
			EntryPrice: price,
			RiskAmount: riskAmount,
		})
	case strategy.Sell:
		position.Symbol = symbol
		position.Qty = position.Qty.Sub(intent.Qty)
		e.state.UpdatePosition(position)
	}
}

// commitCash reserves the notional of a submitted entry so later entries in
// the same cycle are sized against what is left.
func (e *Engine) commitCash(qty decimal.Decimal, price float64) {
	notional := qty.Mul(decimal.NewFromFloat(price)).InexactFloat64()
	e.account.Cash = max(e.account.Cash-notional, 0)
	slog.Debug("cash committed", "notional", notional, "remaining", e.account.Cash)
}

func (e *Engine) cancelOpenOrders(ctx context.Context, symbol string) {
	snapshot := e.state.Snapshot()
	remaining := make(map[string]state.OpenOrder, len(snapshot.OpenOrders))
	for id, order := range snapshot.OpenOrders {
		if order.Symbol != symbol {
			remaining[id] = order
			continue
		}
		if err := e.broker.CancelOrder(ctx, order.OrderID); err != nil {
			slog.Warn("cancel before exit failed", "symbol", symbol, "order_id", order.OrderID, "error", err)
			remaining[id] = order
		}
	}
	e.state.SetOpenOrders(remaining)
}

func (e *Engine) record(decision Decision) {
	metrics.DecisionsTotal.WithLabelValues(decision.Symbol, string(decision.Intent)).Inc()
	slog.Info("decision",
		"symbol", decision.Symbol,
		"close", decision.Close,
		"sma_fast", decision.SMAFast,
		"sma_slow", decision.SMASlow,
		"rsi", decision.RSI,
		"adx", decision.ADX,
		"atr", decision.ATR,
		"intent", decision.Intent,
		"qty", decision.IntentQty,
		"reason", decision.Reason,
		"result", decision.Result,
		"reject", decision.RejectReason,
	)
	for _, sink := range e.sinks {
		sink.Append(decision)
	}
}

// trackedSymbols merges extra with every symbol the state holds a position
// or open order in, sorted.
func (e *Engine) trackedSymbols(extra []string) []string {
	snapshot := e.state.Snapshot()
	seen := map[string]bool{}
	var out []string
	add := func(symbol string) {
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	for _, symbol := range extra {
		add(symbol)
	}
	for symbol := range snapshot.Positions {
		add(symbol)
	}
	for _, order := range snapshot.OpenOrders {
		add(order.Symbol)
	}
	sort.Strings(out)
	return out
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func (e *Engine) buildOrder(symbol string, price float64, intent strategy.TradeIntent, levels risk.BracketLevels) (broker.OrderRequest, error) {
	orderType, err := parseOrderType(e.cfg.Orders.Type)
	if err != nil {
		return broker.OrderRequest{}, err
	}
	tif, err := parseTimeInForce(e.cfg.Orders.TimeInForce)
	if err != nil {
		return broker.OrderRequest{}, err
	}
	if intent.Reason == reasonDrawdownStop {
		orderType = alpaca.Market
	}
	side := alpaca.Buy
	if intent.Action == strategy.Sell {
		side = alpaca.Sell
	}

	req := broker.OrderRequest{
		Symbol:        symbol,
		Qty:           intent.Qty,
		Side:          side,
		Type:          orderType,
		TimeInForce:   tif,
		ClientOrderID: e.nextClientOrderID(),
		ExtendedHours: e.cfg.Orders.ExtendedHours,
	}

	if orderType == alpaca.Limit {
		req.LimitPrice = &price
	}
	if intent.Action == strategy.Buy && levels.StopLoss > 0 && levels.TakeProfit > 0 && !e.cfg.Orders.ExtendedHours {
		stop, take := levels.StopLoss, levels.TakeProfit
		req.StopLoss = &stop
		req.TakeProfit = &take
	}

	return req, nil
}

func (e *Engine) nextClientOrderID() string {
	seq := atomic.AddUint64(&e.orderSeqNum, 1)
	return fmt.Sprintf("%s-%d", e.runID, seq)
}

func parseOrderType(value string) (alpaca.OrderType, error) {
	switch value {
	case "market":
		return alpaca.Market, nil
	case "limit":
		return alpaca.Limit, nil
	default:
		return "", fmt.Errorf("unsupported order type: %s", value)
	}
}

func parseTimeInForce(value string) (alpaca.TimeInForce, error) {
	switch value {
	case "day":
		return alpaca.Day, nil
	case "gtc":
		return alpaca.GTC, nil
	default:
		return "", fmt.Errorf("unsupported time in force: %s", value)
	}
}
