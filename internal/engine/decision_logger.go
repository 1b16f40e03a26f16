package engine

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"smabot/internal/strategy"
)

type Decision struct {
	RunID          string          `json:"run_id"`
	Timestamp      time.Time       `json:"timestamp"`
	BarTime        time.Time       `json:"bar_time"`
	Symbol         string          `json:"symbol"`
	Close          float64         `json:"close"`
	SMAFast        float64         `json:"sma_fast"`
	SMASlow        float64         `json:"sma_slow"`
	RSI            float64         `json:"rsi"`
	ADX            float64         `json:"adx"`
	ATR            float64         `json:"atr"`
	MACDHist       float64         `json:"macd_hist,omitempty"`
	Intent         strategy.Action `json:"intent"`
	IntentQty      string          `json:"intent_qty"`
	Reason         string          `json:"reason"`
	Result         string          `json:"result"`
	ApprovalReason string          `json:"approval_reason,omitempty"`
	RejectReason   string          `json:"reject_reason,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
	ClientOrderID  string          `json:"client_order_id,omitempty"`
	StopLoss       float64         `json:"stop_loss,omitempty"`
	TakeProfit     float64         `json:"take_profit,omitempty"`
}

// DecisionSink receives every decision the engine makes.
type DecisionSink interface {
	Append(decision Decision)
}

// DecisionLogger appends decisions as newline-delimited JSON.
type DecisionLogger struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) Append(decision Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		slog.Error("marshal decision failed", "symbol", decision.Symbol, "error", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		slog.Error("write decision failed", "symbol", decision.Symbol, "error", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		slog.Error("flush decision log failed", "error", err)
	}
}

func (d *DecisionLogger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
