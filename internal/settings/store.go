package settings

import (
	"context"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// UpsertParams is the administrative input for creating or updating a
// credential bundle. Bundles are keyed by Name.
type UpsertParams struct {
	Name           string
	APIKey         string
	OrganizationID string
	UserID         string
	ReplicaID      string
	IsActive       bool
}

// Store persists credential bundles. At most one bundle is active at any
// time: upserting with IsActive=true deactivates every other bundle as part
// of the same operation.
//
// GetActive and Get return (nil, nil) when no matching bundle exists; absence
// is not an error. Delete reports whether a row was removed.
type Store interface {
	GetActive(ctx context.Context) (*types.CredentialBundle, error)
	Get(ctx context.Context, id string) (*types.CredentialBundle, error)
	ListAll(ctx context.Context) ([]types.CredentialBundle, error)
	Upsert(ctx context.Context, p UpsertParams) (*types.CredentialBundle, error)
	Delete(ctx context.Context, name string) (bool, error)
}
