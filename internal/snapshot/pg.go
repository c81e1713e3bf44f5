package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// PGStore implements Store on PostgreSQL, one row per (bundle, kind).
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Save(ctx context.Context, bundleID string, kind types.ResourceKind, payload []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO fallback_snapshots (bundle_id, resource_kind, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (bundle_id, resource_kind) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`, bundleID, string(kind), payload)
	if err != nil {
		return fmt.Errorf("save snapshot %s/%s: %w", bundleID, kind, err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context, bundleID string, kind types.ResourceKind) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `
		SELECT payload FROM fallback_snapshots
		WHERE bundle_id = $1 AND resource_kind = $2
	`, bundleID, string(kind)).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load snapshot %s/%s: %w", bundleID, kind, err)
	}
	return payload, true, nil
}
