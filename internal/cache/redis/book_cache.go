package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tradedesk/internal/domain"
)

// bookKey stores the latest accepted depth snapshot as a JSON blob. The
// instrument is single, so the key is fixed.
const bookKey = "book:snapshot"

// BookCache implements domain.DepthCache by mirroring the latest snapshot to
// Redis for external consumers (dashboards, replays, sibling processes).
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

// SetSnapshot replaces the mirrored snapshot wholesale.
func (bc *BookCache) SetSnapshot(ctx context.Context, snap domain.DepthSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := bc.rdb.Set(ctx, bookKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the mirrored snapshot. It returns domain.ErrNotFound
// when no snapshot has been mirrored yet.
func (bc *BookCache) GetSnapshot(ctx context.Context) (domain.DepthSnapshot, error) {
	data, err := bc.rdb.Get(ctx, bookKey).Bytes()
	if err == redis.Nil {
		return domain.DepthSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.DepthSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return snap, nil
}
