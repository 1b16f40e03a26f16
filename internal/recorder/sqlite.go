package recorder

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"smabot/internal/engine"
)

// SQLiteRecorder persists engine decisions to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			timestamp       INTEGER NOT NULL,
			bar_time        INTEGER,
			symbol          TEXT NOT NULL,
			close           REAL,
			sma_fast        REAL,
			sma_slow        REAL,
			rsi             REAL,
			adx             REAL,
			atr             REAL,
			macd_hist       REAL,
			intent          TEXT,
			intent_qty      TEXT,
			reason          TEXT,
			result          TEXT,
			approval_reason TEXT,
			reject_reason   TEXT,
			order_id        TEXT,
			client_order_id TEXT,
			stop_loss       REAL,
			take_profit     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Append stores d. Write failures are logged so a broken database never stops
// the trading loop.
func (r *SQLiteRecorder) Append(d engine.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var barTime int64
	if !d.BarTime.IsZero() {
		barTime = d.BarTime.Unix()
	}
	_, err := r.db.Exec(`INSERT INTO decisions
		(run_id, timestamp, bar_time, symbol, close, sma_fast, sma_slow, rsi, adx, atr, macd_hist,
		 intent, intent_qty, reason, result, approval_reason, reject_reason,
		 order_id, client_order_id, stop_loss, take_profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Timestamp.Unix(), barTime, d.Symbol, d.Close, d.SMAFast, d.SMASlow, d.RSI, d.ADX, d.ATR, d.MACDHist,
		string(d.Intent), d.IntentQty, d.Reason, d.Result, d.ApprovalReason, d.RejectReason,
		d.OrderID, d.ClientOrderID, d.StopLoss, d.TakeProfit,
	)
	if err != nil {
		slog.Error("record decision failed", "symbol", d.Symbol, "error", err)
	}
}

// CountByResult returns how many decisions of runID ended in each result.
func (r *SQLiteRecorder) CountByResult(runID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT result, COUNT(*) FROM decisions WHERE run_id = ? GROUP BY result`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var result string
		var n int
		if err := rows.Scan(&result, &n); err != nil {
			return nil, err
		}
		counts[result] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}
