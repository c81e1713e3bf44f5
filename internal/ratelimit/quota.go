package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaResult is the outcome of an ingestion quota check.
type QuotaResult struct {
	Allowed bool
	Used    int64
	Limit   int64
}

// IngestionQuota caps how many training entries may be submitted per replica
// per UTC day. A nil client means no quota enforcement.
type IngestionQuota struct {
	rdb *redis.Client
}

func NewIngestionQuota(rdb *redis.Client) *IngestionQuota {
	return &IngestionQuota{rdb: rdb}
}

func dailyQuotaKey(replicaID string) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("mafcoach:quota:training:%s:%s", replicaID, day)
}

// Check reports whether the replica is under its daily ingestion quota.
func (q *IngestionQuota) Check(ctx context.Context, replicaID string, limit int64) (QuotaResult, error) {
	if q.rdb == nil || limit <= 0 {
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	used, err := q.rdb.Get(ctx, dailyQuotaKey(replicaID)).Int64()
	if err != nil && err != redis.Nil {
		// Fail open on Redis errors
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	return QuotaResult{Allowed: used < limit, Used: used, Limit: limit}, nil
}

// Record counts one accepted training submission against the replica's
// daily quota. Called only after the remote accepted the entry.
func (q *IngestionQuota) Record(ctx context.Context, replicaID string) error {
	if q.rdb == nil {
		return nil
	}

	key := dailyQuotaKey(replicaID)
	pipe := q.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("record ingestion quota: %w", err)
	}
	return nil
}
