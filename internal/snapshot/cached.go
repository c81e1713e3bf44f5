package snapshot

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

const redisKeyPrefix = "mafcoach:snapshot:"

// CachedStore layers a Redis cache over another Store. Reads hit Redis
// first; writes go to the backing store and then refresh the cache. A nil
// Redis client disables the cache layer entirely.
type CachedStore struct {
	backing Store
	redis   *redis.Client
	ttl     time.Duration
}

func NewCachedStore(backing Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{backing: backing, redis: rdb, ttl: ttl}
}

func redisKey(bundleID string, kind types.ResourceKind) string {
	return redisKeyPrefix + bundleID + ":" + string(kind)
}

func (s *CachedStore) Save(ctx context.Context, bundleID string, kind types.ResourceKind, payload []byte) error {
	if err := s.backing.Save(ctx, bundleID, kind, payload); err != nil {
		return err
	}
	if s.redis != nil {
		// Cache refresh is best effort; the backing store is authoritative.
		s.redis.Set(ctx, redisKey(bundleID, kind), payload, s.ttl)
	}
	return nil
}

func (s *CachedStore) Load(ctx context.Context, bundleID string, kind types.ResourceKind) ([]byte, bool, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, redisKey(bundleID, kind)).Bytes()
		if err == nil {
			return cached, true, nil
		}
	}

	payload, found, err := s.backing.Load(ctx, bundleID, kind)
	if err != nil || !found {
		return nil, false, err
	}

	if s.redis != nil {
		s.redis.Set(ctx, redisKey(bundleID, kind), payload, s.ttl)
	}
	return payload, true, nil
}
