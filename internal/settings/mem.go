package settings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// MemStore is an in-memory Store with the same activation semantics as
// PGStore. It backs the gateway when no database is configured and is the
// store used by unit tests.
type MemStore struct {
	mu      sync.RWMutex
	bundles map[string]*types.CredentialBundle // keyed by name
}

func NewMemStore() *MemStore {
	return &MemStore{bundles: make(map[string]*types.CredentialBundle)}
}

func (s *MemStore) GetActive(ctx context.Context) (*types.CredentialBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *types.CredentialBundle
	for _, b := range s.bundles {
		if !b.IsActive {
			continue
		}
		if latest == nil || b.UpdatedAt.After(latest.UpdatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*types.CredentialBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bundles {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListAll(ctx context.Context) ([]types.CredentialBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CredentialBundle, 0, len(s.bundles))
	for _, b := range s.bundles {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemStore) Upsert(ctx context.Context, p UpsertParams) (*types.CredentialBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsActive {
		for name, b := range s.bundles {
			if name != p.Name {
				b.IsActive = false
			}
		}
	}

	b, ok := s.bundles[p.Name]
	if !ok {
		b = &types.CredentialBundle{ID: uuid.NewString(), Name: p.Name}
		s.bundles[p.Name] = b
	}
	b.APIKey = p.APIKey
	b.OrganizationID = p.OrganizationID
	b.UserID = p.UserID
	b.ReplicaID = p.ReplicaID
	b.IsActive = p.IsActive
	b.UpdatedAt = time.Now()

	cp := *b
	return &cp, nil
}

func (s *MemStore) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[name]; !ok {
		return false, nil
	}
	delete(s.bundles, name)
	return true, nil
}
