package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// CachedInventoryService serves computed inventories from a cache and falls
// back to a full replay on a miss. Cache failures never fail the request.
type CachedInventoryService struct {
	inner  InventoryComputer
	cache  port.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedInventoryService(inner InventoryComputer, cache port.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedInventoryService {
	return &CachedInventoryService{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedInventoryService) ComputeInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error) {
	cached, generation, err := s.cache.GetSnapshot(ctx, organizationID)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", zap.Int64("organization_id", organizationID), zap.Error(err))
		return s.inner.ComputeInventory(ctx, organizationID)
	}
	if cached != nil {
		return cached, nil
	}

	inventory, err := s.inner.ComputeInventory(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	stored, err := s.cache.SetSnapshot(ctx, organizationID, generation, inventory, s.ttl)
	if err != nil {
		s.logger.Warn("snapshot cache write failed", zap.Int64("organization_id", organizationID), zap.Error(err))
	} else if !stored {
		s.logger.Debug("snapshot superseded before caching", zap.Int64("organization_id", organizationID))
	}
	return inventory, nil
}
