package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"smabot/internal/risk"
)

type OpenOrder struct {
	ClientOrderID string
	OrderID       string
	Symbol        string
	Status        string
}

type Snapshot struct {
	Positions     map[string]risk.Position
	OpenOrders    map[string]OpenOrder
	Drawdown      risk.DrawdownState
	LastTradeTime map[string]time.Time
	LastBarTime   time.Time
}

// OpenOrderCount counts the open orders for symbol.
func (s Snapshot) OpenOrderCount(symbol string) int {
	n := 0
	for _, o := range s.OpenOrders {
		if o.Symbol == symbol {
			n++
		}
	}
	return n
}

type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewStore() *Store {
	return &Store{
		snapshot: emptySnapshot(),
	}
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Positions:     map[string]risk.Position{},
		OpenOrders:    map[string]OpenOrder{},
		LastTradeTime: map[string]time.Time{},
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy := s.snapshot
	copy.Positions = make(map[string]risk.Position, len(s.snapshot.Positions))
	for k, v := range s.snapshot.Positions {
		copy.Positions[k] = v
	}
	copy.OpenOrders = make(map[string]OpenOrder, len(s.snapshot.OpenOrders))
	for k, v := range s.snapshot.OpenOrders {
		copy.OpenOrders[k] = v
	}
	copy.LastTradeTime = make(map[string]time.Time, len(s.snapshot.LastTradeTime))
	for k, v := range s.snapshot.LastTradeTime {
		copy.LastTradeTime[k] = v
	}
	return copy
}

func (s *Store) Position(symbol string) risk.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Positions[symbol]
}

// UpdatePosition stores position, or removes it when the quantity is zero.
func (s *Store) UpdatePosition(position risk.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position.Qty.IsZero() {
		delete(s.snapshot.Positions, position.Symbol)
		return
	}
	s.snapshot.Positions[position.Symbol] = position
}

func (s *Store) SetOpenOrders(orders map[string]OpenOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.OpenOrders = orders
}

func (s *Store) AddOpenOrder(order OpenOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.OpenOrders[order.ClientOrderID] = order
}

func (s *Store) SetLastTradeTime(symbol string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastTradeTime[symbol] = t
}

func (s *Store) SetLastBarTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastBarTime = t
}

// UpdateDrawdown runs fn against the stored drawdown state under the store lock.
func (s *Store) UpdateDrawdown(fn func(*risk.DrawdownState)) risk.DrawdownState {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snapshot.Drawdown)
	return s.snapshot.Drawdown
}

func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snapshot := emptySnapshot()
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if snapshot.Positions == nil {
		snapshot.Positions = map[string]risk.Position{}
	}
	if snapshot.OpenOrders == nil {
		snapshot.OpenOrders = map[string]OpenOrder{}
	}
	if snapshot.LastTradeTime == nil {
		snapshot.LastTradeTime = map[string]time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}
