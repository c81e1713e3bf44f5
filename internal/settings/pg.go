package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// PGStore implements Store on PostgreSQL. Every call round-trips the
// database; no in-process cache is kept.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const bundleColumns = `id, name, api_key, organization_id, user_id, replica_id, is_active, updated_at`

func scanBundle(row pgx.Row) (*types.CredentialBundle, error) {
	var b types.CredentialBundle
	err := row.Scan(&b.ID, &b.Name, &b.APIKey, &b.OrganizationID,
		&b.UserID, &b.ReplicaID, &b.IsActive, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (s *PGStore) GetActive(ctx context.Context) (*types.CredentialBundle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bundleColumns+`
		FROM credential_bundles
		WHERE is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	b, err := scanBundle(row)
	if err != nil {
		return nil, fmt.Errorf("query active bundle: %w", err)
	}
	return b, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*types.CredentialBundle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bundleColumns+`
		FROM credential_bundles
		WHERE id = $1
	`, id)
	b, err := scanBundle(row)
	if err != nil {
		return nil, fmt.Errorf("query bundle %s: %w", id, err)
	}
	return b, nil
}

func (s *PGStore) ListAll(ctx context.Context) ([]types.CredentialBundle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bundleColumns+`
		FROM credential_bundles
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var bundles []types.CredentialBundle
	for rows.Next() {
		var b types.CredentialBundle
		if err := rows.Scan(&b.ID, &b.Name, &b.APIKey, &b.OrganizationID,
			&b.UserID, &b.ReplicaID, &b.IsActive, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// Upsert inserts or updates the bundle keyed by name. Activation runs in a
// single transaction with the deactivation of all other bundles, so a
// concurrent reader never observes zero active bundles during an activation.
func (s *PGStore) Upsert(ctx context.Context, p UpsertParams) (*types.CredentialBundle, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if p.IsActive {
		if _, err := tx.Exec(ctx, `
			UPDATE credential_bundles SET is_active = FALSE WHERE name <> $1
		`, p.Name); err != nil {
			return nil, fmt.Errorf("deactivate bundles: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO credential_bundles
			(id, name, api_key, organization_id, user_id, replica_id, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (name) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			organization_id = EXCLUDED.organization_id,
			user_id = EXCLUDED.user_id,
			replica_id = EXCLUDED.replica_id,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING `+bundleColumns,
		uuid.NewString(), p.Name, p.APIKey, p.OrganizationID, p.UserID, p.ReplicaID, p.IsActive)

	b, err := scanBundle(row)
	if err != nil {
		return nil, fmt.Errorf("upsert bundle %s: %w", p.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return b, nil
}

func (s *PGStore) Delete(ctx context.Context, name string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM credential_bundles WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete bundle %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}
