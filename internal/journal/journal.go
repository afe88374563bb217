// Package journal persists the immutable record of executed trades.
// Implementations include PostgreSQL (durable), Redis (read-through cache),
// and in-memory (default, also used for testing). The journal sits off the
// engine's critical path: appends are best-effort and never affect ledger
// state.
package journal

import (
	"context"

	"github.com/aaryan182/probo/internal/model"
)

// Journal is the trade-record interface.
type Journal interface {
	// AppendTrades appends immutable trade records.
	AppendTrades(ctx context.Context, trades []model.Trade) error

	// TradesBySymbol returns all recorded trades for a symbol, oldest first.
	TradesBySymbol(ctx context.Context, symbol string) ([]model.Trade, error)

	// TradesByUser returns all recorded trades a user participated in,
	// oldest first.
	TradesByUser(ctx context.Context, userID string) ([]model.Trade, error)

	// Reset discards every record. Invoked alongside the engine's data
	// reset.
	Reset(ctx context.Context) error
}
