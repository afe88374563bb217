package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aaryan182/probo/internal/model"
)

// CachedJournal wraps a primary Journal with a Redis read-through cache on
// the per-symbol and per-user trade queries. Appends go to the primary and
// invalidate the affected keys.
type CachedJournal struct {
	primary Journal
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedJournal creates a cached wrapper around a primary journal.
func NewCachedJournal(primary Journal, rdb *redis.Client, ttl time.Duration) *CachedJournal {
	return &CachedJournal{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (j *CachedJournal) AppendTrades(ctx context.Context, trades []model.Trade) error {
	if err := j.primary.AppendTrades(ctx, trades); err != nil {
		return err
	}
	// Invalidate; the next read re-populates.
	for _, t := range trades {
		j.rdb.Del(ctx, symbolTradesKey(t.Symbol), userTradesKey(t.Buyer))
		if t.Seller != "" {
			j.rdb.Del(ctx, userTradesKey(t.Seller))
		}
	}
	return nil
}

func (j *CachedJournal) TradesBySymbol(ctx context.Context, symbol string) ([]model.Trade, error) {
	return j.readThrough(ctx, symbolTradesKey(symbol), func() ([]model.Trade, error) {
		return j.primary.TradesBySymbol(ctx, symbol)
	})
}

func (j *CachedJournal) TradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	return j.readThrough(ctx, userTradesKey(userID), func() ([]model.Trade, error) {
		return j.primary.TradesByUser(ctx, userID)
	})
}

func (j *CachedJournal) Reset(ctx context.Context) error {
	if err := j.primary.Reset(ctx); err != nil {
		return err
	}
	return j.rdb.FlushDB(ctx).Err()
}

func (j *CachedJournal) readThrough(ctx context.Context, key string, load func() ([]model.Trade, error)) ([]model.Trade, error) {
	data, err := j.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var trades []model.Trade
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	trades, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(trades); err == nil {
		j.rdb.Set(ctx, key, data, j.ttl)
	}
	return trades, nil
}

func symbolTradesKey(symbol string) string { return fmt.Sprintf("trades:symbol:%s", symbol) }
func userTradesKey(userID string) string   { return fmt.Sprintf("trades:user:%s", userID) }
