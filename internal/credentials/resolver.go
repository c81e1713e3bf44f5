package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/foundermafstat/mafcoach-gateway/internal/settings"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// ErrNoActiveCredentials indicates that neither an explicit bundle nor an
// active settings record could be resolved. Routes surface this as a distinct
// precondition failure, not a transport error.
var ErrNoActiveCredentials = errors.New("no active credential bundle configured")

// Origin records where the resolved credentials came from.
type Origin string

const (
	OriginSettings    Origin = "settings"
	OriginEnvironment Origin = "environment"
)

// Environment variable names for the raw-credential fallback path.
const (
	EnvAPIKey    = "MAFCOACH_API_KEY"
	EnvOrgID     = "MAFCOACH_ORG_ID"
	EnvUserID    = "MAFCOACH_USER_ID"
	EnvReplicaID = "MAFCOACH_REPLICA_ID"
)

// Resolved is a credential bundle plus the path it was resolved through.
type Resolved struct {
	Bundle types.CredentialBundle
	Origin Origin
}

// Resolver picks the credential bundle for a request. The settings store is
// the primary source; raw environment variables are a separate opt-in path
// and are never mixed with the store path within a single request.
type Resolver struct {
	store settings.Store
}

func NewResolver(store settings.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the explicit bundle when an id is supplied, otherwise the
// active settings bundle. Returns ErrNoActiveCredentials when neither yields
// a bundle.
func (r *Resolver) Resolve(ctx context.Context, explicitID string) (*Resolved, error) {
	if explicitID != "" {
		b, err := r.store.Get(ctx, explicitID)
		if err != nil {
			return nil, fmt.Errorf("resolve bundle %s: %w", explicitID, err)
		}
		if b == nil {
			return nil, ErrNoActiveCredentials
		}
		return &Resolved{Bundle: *b, Origin: OriginSettings}, nil
	}

	b, err := r.store.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active bundle: %w", err)
	}
	if b == nil {
		return nil, ErrNoActiveCredentials
	}
	return &Resolved{Bundle: *b, Origin: OriginSettings}, nil
}

// ResolveFromEnv builds a bundle from raw process environment variables.
// Used only by routes that predate the settings store and explicitly opt in.
func (r *Resolver) ResolveFromEnv() (*Resolved, error) {
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return nil, ErrNoActiveCredentials
	}
	return &Resolved{
		Bundle: types.CredentialBundle{
			Name:           "environment",
			APIKey:         apiKey,
			OrganizationID: os.Getenv(EnvOrgID),
			UserID:         os.Getenv(EnvUserID),
			ReplicaID:      os.Getenv(EnvReplicaID),
			IsActive:       true,
		},
		Origin: OriginEnvironment,
	}, nil
}
