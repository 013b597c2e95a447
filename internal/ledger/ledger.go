// Package ledger is the per-bot bookkeeping of open positions and the
// append-only order history. Each bot owns exactly one Ledger and mutates it
// only from its own loop; the orchestrator's aggregation reads snapshots
// under the lock.
package ledger

import (
	"sync"

	"multibot/internal/domain"
)

type Ledger struct {
	mu        sync.RWMutex
	positions []domain.Position
	orders    []domain.Order
}

func New() *Ledger {
	return &Ledger{}
}

// Record appends one order to the history. Orders are immutable once
// recorded.
func (l *Ledger) Record(order domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append(l.orders, order)
}

// Open adds a position to the open set.
func (l *Ledger) Open(pos domain.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = append(l.positions, pos)
}

// Close removes the position with the given id. It reports whether a
// position was removed.
func (l *Ledger) Close(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.positions {
		if p.ID == id {
			l.positions = append(l.positions[:i], l.positions[i+1:]...)
			return true
		}
	}
	return false
}

// CloseLast removes and returns the most recently opened position. The
// scalping bot exits stack-wise, not FIFO.
func (l *Ledger) CloseLast() (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.positions) == 0 {
		return domain.Position{}, false
	}
	last := l.positions[len(l.positions)-1]
	l.positions = l.positions[:len(l.positions)-1]
	return last, true
}

// Last returns the most recently opened position without removing it.
func (l *Ledger) Last() (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.positions) == 0 {
		return domain.Position{}, false
	}
	return l.positions[len(l.positions)-1], true
}

func (l *Ledger) HasOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions) > 0
}

// Positions returns a copy of the open set.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Orders returns a copy of the order history, oldest first.
func (l *Ledger) Orders() []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Stats derives trade statistics from the current history. Only FILLED
// orders count as trades; a trade wins when its realized profit is positive.
func (l *Ledger) Stats(name string, running bool) domain.BotStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := domain.BotStats{
		Name:          name,
		OpenPositions: len(l.positions),
		Running:       running,
	}
	for _, o := range l.orders {
		if o.Status != "FILLED" {
			continue
		}
		stats.TotalTrades++
		stats.TotalProfit += o.Profit
		if o.Profit > 0 {
			stats.WinningTrades++
		}
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	}
	return stats
}
