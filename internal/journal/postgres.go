package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aaryan182/probo/internal/model"
)

// PostgresJournal implements Journal backed by PostgreSQL. Prices are
// stored as NUMERIC for exact decimal precision.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal creates a PostgreSQL-backed journal.
func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

func (j *PostgresJournal) AppendTrades(ctx context.Context, trades []model.Trade) error {
	for _, t := range trades {
		_, err := j.pool.Exec(ctx,
			`INSERT INTO trades (id, symbol, outcome, kind, buyer, seller, price, quantity, executed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9)`,
			t.ID, t.Symbol, string(t.Outcome), string(t.Kind), t.Buyer, t.Seller,
			t.Price.String(), t.Quantity, t.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append trade %s: %w", t.ID, err)
		}
	}
	return nil
}

func (j *PostgresJournal) TradesBySymbol(ctx context.Context, symbol string) ([]model.Trade, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT id, symbol, outcome, kind, buyer, seller, price::TEXT, quantity, executed_at
		 FROM trades WHERE symbol = $1 ORDER BY executed_at`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (j *PostgresJournal) TradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT id, symbol, outcome, kind, buyer, seller, price::TEXT, quantity, executed_at
		 FROM trades WHERE buyer = $1 OR seller = $1 ORDER BY executed_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (j *PostgresJournal) Reset(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `TRUNCATE trades`)
	return err
}

// pgxRows is the subset of pgx.Rows scanTrades needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTrades(rows pgxRows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var outcome, kind, priceS string

		if err := rows.Scan(&t.ID, &t.Symbol, &outcome, &kind, &t.Buyer, &t.Seller,
			&priceS, &t.Quantity, &t.Timestamp); err != nil {
			return nil, err
		}

		t.Outcome = model.Outcome(outcome)
		t.Kind = model.FillKind(kind)
		t.Price, _ = decimal.NewFromString(priceS)

		trades = append(trades, t)
	}
	return trades, rows.Err()
}
