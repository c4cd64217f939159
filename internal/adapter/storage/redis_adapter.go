package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

const (
	generationKeyPrefix = "inventory:gen:"
	snapshotKeyPrefix   = "inventory:snapshot:"
	idempotencyKeyTTL   = 24 * time.Hour
	defaultSnapshotTTL  = 10 * time.Minute
)

// setSnapshotScript stores the snapshot only if no invalidation bumped the
// generation since the caller read it.
var setSnapshotScript = redis.NewScript(`
local genKey = KEYS[1]
local snapKey = KEYS[2]
local expected = tonumber(ARGV[1])

local current = tonumber(redis.call('GET', genKey) or '0')
if current ~= expected then
	return 0
end

redis.call('SET', snapKey, ARGV[2], 'PX', ARGV[3])
return 1
`)

type cachedSnapshot struct {
	Generation int64             `json:"generation"`
	Inventory  *domain.Inventory `json:"inventory"`
}

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func generationKey(organizationID int64) string {
	return fmt.Sprintf("%s%d", generationKeyPrefix, organizationID)
}

func snapshotKey(organizationID int64) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, organizationID)
}

func (r *RedisAdapter) GetSnapshot(ctx context.Context, organizationID int64) (*domain.Inventory, int64, error) {
	values, err := r.client.MGet(ctx, generationKey(organizationID), snapshotKey(organizationID)).Result()
	if err != nil {
		return nil, 0, err
	}

	var generation int64
	if s, ok := values[0].(string); ok {
		if _, err := fmt.Sscan(s, &generation); err != nil {
			return nil, 0, fmt.Errorf("parse generation: %w", err)
		}
	}

	raw, ok := values[1].(string)
	if !ok {
		return nil, generation, nil
	}
	var snap cachedSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, generation, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Generation != generation || snap.Inventory == nil {
		return nil, generation, nil
	}
	return snap.Inventory, generation, nil
}

func (r *RedisAdapter) SetSnapshot(ctx context.Context, organizationID int64, generation int64, inventory *domain.Inventory, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	data, err := json.Marshal(cachedSnapshot{Generation: generation, Inventory: inventory})
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}

	keys := []string{generationKey(organizationID), snapshotKey(organizationID)}
	result, err := setSnapshotScript.Run(ctx, r.client, keys, generation, data, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisAdapter) InvalidateSnapshot(ctx context.Context, organizationID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(organizationID))
		pipe.Del(ctx, snapshotKey(organizationID))
		return nil
	})
	return err
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
