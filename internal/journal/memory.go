package journal

import (
	"context"
	"sync"

	"github.com/aaryan182/probo/internal/model"
)

// MemoryJournal implements Journal with an in-memory slice. Used for
// testing and development; records do not survive a restart.
type MemoryJournal struct {
	mu     sync.RWMutex
	trades []model.Trade
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) AppendTrades(_ context.Context, trades []model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades = append(j.trades, trades...)
	return nil
}

func (j *MemoryJournal) TradesBySymbol(_ context.Context, symbol string) ([]model.Trade, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []model.Trade
	for _, t := range j.trades {
		if t.Symbol == symbol {
			result = append(result, t)
		}
	}
	return result, nil
}

func (j *MemoryJournal) TradesByUser(_ context.Context, userID string) ([]model.Trade, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []model.Trade
	for _, t := range j.trades {
		if t.Buyer == userID || t.Seller == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (j *MemoryJournal) Reset(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades = nil
	return nil
}

// Len returns the number of recorded trades.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.trades)
}
