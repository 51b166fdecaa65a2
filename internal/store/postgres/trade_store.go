package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert appends one tape entry to the trades table.
func (s *TradeStore) Insert(ctx context.Context, trade domain.TradeEntry) error {
	const query = `
		INSERT INTO trades (price, quantity, side, timestamp)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, query,
		trade.Price, trade.Quantity, string(trade.Side), trade.Timestamp,
	); err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}
	return nil
}

// Recent returns the most recent tape entries, newest first.
func (s *TradeStore) Recent(ctx context.Context, limit int) ([]domain.TradeEntry, error) {
	const query = `
		SELECT price, quantity, side, timestamp
		FROM trades
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query recent trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeEntry
	for rows.Next() {
		var t domain.TradeEntry
		var side string
		if err := rows.Scan(&t.Price, &t.Quantity, &side, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
