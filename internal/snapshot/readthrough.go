package snapshot

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/foundermafstat/mafcoach-gateway/internal/telemetry"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// Cache wires a snapshot Store into the gateway's read path.
type Cache struct {
	store   Store
	metrics *telemetry.Metrics
}

func NewCache(store Store, metrics *telemetry.Metrics) *Cache {
	return &Cache{store: store, metrics: metrics}
}

func (c *Cache) record(kind types.ResourceKind, source string) {
	if c.metrics != nil {
		c.metrics.RecordFallback(string(kind), source)
	}
}

// Persist stores records as the new snapshot for (bundleID, kind). Best
// effort: a persistence failure is logged, never surfaced, since the caller
// already holds fresh data to serve.
func Persist[T any](ctx context.Context, c *Cache, bundleID string, kind types.ResourceKind, records []T) {
	if records == nil {
		records = []T{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		slog.Warn("failed to encode snapshot", "kind", string(kind), "error", err)
		return
	}
	if err := c.store.Save(ctx, bundleID, kind, payload); err != nil {
		slog.Warn("failed to persist snapshot", "kind", string(kind), "error", err)
		return
	}
	c.record(kind, "remote")
}

// Serve returns the last snapshot for (bundleID, kind), or an empty non-nil
// slice when none exists. Serve never fails: for list-type reads, "nothing
// cached yet" is a legitimate terminal state, not an error. The stored
// snapshot is left untouched.
func Serve[T any](ctx context.Context, c *Cache, bundleID string, kind types.ResourceKind) []T {
	payload, found, err := c.store.Load(ctx, bundleID, kind)
	if err != nil {
		slog.Warn("failed to load snapshot", "kind", string(kind), "error", err)
	}
	if found {
		var cached []T
		if err := json.Unmarshal(payload, &cached); err == nil {
			c.record(kind, "snapshot")
			return cached
		}
		slog.Warn("discarding undecodable snapshot", "kind", string(kind))
	}

	c.record(kind, "empty")
	return []T{}
}
