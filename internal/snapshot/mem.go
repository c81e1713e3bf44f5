package snapshot

import (
	"context"
	"sync"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// MemStore is an in-memory Store used when no database is configured and by
// unit tests.
type MemStore struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[string][]byte)}
}

func memKey(bundleID string, kind types.ResourceKind) string {
	return bundleID + "/" + string(kind)
}

func (s *MemStore) Save(ctx context.Context, bundleID string, kind types.ResourceKind, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.rows[memKey(bundleID, kind)] = cp
	return nil
}

func (s *MemStore) Load(ctx context.Context, bundleID string, kind types.ResourceKind) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.rows[memKey(bundleID, kind)]
	if !ok {
		return nil, false, nil
	}
	return payload, true, nil
}
