package snapshot

import (
	"context"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// Store persists the last successfully normalized collection per resource
// kind and owning credential bundle. Payloads are opaque JSON; the snapshot
// layer never interprets them.
//
// Load returns found=false when no snapshot exists, a valid state and not an
// error.
type Store interface {
	Save(ctx context.Context, bundleID string, kind types.ResourceKind, payload []byte) error
	Load(ctx context.Context, bundleID string, kind types.ResourceKind) (payload []byte, found bool, err error)
}
