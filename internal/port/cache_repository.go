package port

import (
	"context"
	"time"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type CacheRepository interface {
	// GetSnapshot returns the cached inventory, or nil on a miss, together
	// with the organization's current cache generation
	GetSnapshot(ctx context.Context, organizationID int64) (*domain.Inventory, int64, error)

	// SetSnapshot stores the inventory only while the generation is still current,
	// returns false if an invalidation happened in between
	SetSnapshot(ctx context.Context, organizationID int64, generation int64, inventory *domain.Inventory, ttl time.Duration) (bool, error)

	// InvalidateSnapshot drops the cached inventory and bumps the generation
	InvalidateSnapshot(ctx context.Context, organizationID int64) error
}

type IdempotencyRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
