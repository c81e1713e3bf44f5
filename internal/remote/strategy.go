package remote

import (
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// Header names accepted by the remote API. Which combination actually works
// varies by endpoint family and key provenance, hence the strategy list.
const (
	HeaderOrgSecret  = "X-ORGANIZATION-SECRET"
	HeaderOrgID      = "X-ORGANIZATION-ID"
	HeaderUserID     = "X-USER-ID"
	HeaderAPIVersion = "X-API-Version"
)

// Strategy is one header combination to try against the remote API.
// Succeeds defaults to "HTTP status in 200-299" when nil.
type Strategy struct {
	Name     string
	Headers  func(b types.CredentialBundle, apiVersion string) map[string]string
	Succeeds func(status int) bool
}

func (s Strategy) accepts(status int) bool {
	if s.Succeeds != nil {
		return s.Succeeds(status)
	}
	return status >= 200 && status <= 299
}

var orgSecret = Strategy{
	Name: "organization-secret",
	Headers: func(b types.CredentialBundle, _ string) map[string]string {
		return map[string]string{
			HeaderOrgSecret: b.APIKey,
		}
	},
}

var bearerOrg = Strategy{
	Name: "bearer-org-id",
	Headers: func(b types.CredentialBundle, _ string) map[string]string {
		return map[string]string{
			"Authorization": "Bearer " + b.APIKey,
			HeaderOrgID:     b.OrganizationID,
		}
	},
}

var orgSecretVersioned = Strategy{
	Name: "organization-secret-versioned",
	Headers: func(b types.CredentialBundle, apiVersion string) map[string]string {
		return map[string]string{
			HeaderOrgSecret:  b.APIKey,
			HeaderAPIVersion: apiVersion,
		}
	},
}

var orgSecretUserVersioned = Strategy{
	Name: "organization-secret-user-versioned",
	Headers: func(b types.CredentialBundle, apiVersion string) map[string]string {
		return map[string]string{
			HeaderOrgSecret:  b.APIKey,
			HeaderUserID:     b.UserID,
			HeaderAPIVersion: apiVersion,
		}
	},
}

// Family selects the ordered strategy table for a remote operation.
type Family string

const (
	FamilyChatHistory Family = "chat-history"
	FamilyReplica     Family = "replica"
	FamilyTraining    Family = "training"
)

// strategyTables holds the per-family priority lists. Order is significant:
// first success wins, and every call restarts from index 0. The winner is
// deliberately not memoized so failure diagnostics always cover the full
// list that precedes it.
var strategyTables = map[Family][]Strategy{
	FamilyChatHistory: {
		orgSecret,
		bearerOrg,
		orgSecretVersioned,
		orgSecretUserVersioned,
	},
	FamilyReplica: {
		orgSecretVersioned,
		bearerOrg,
		orgSecret,
	},
	FamilyTraining: {
		orgSecretUserVersioned,
		orgSecretVersioned,
	},
}

// StrategiesFor returns the ordered strategy list for a family. Unknown
// families fall back to the replica table.
func StrategiesFor(f Family) []Strategy {
	if s, ok := strategyTables[f]; ok {
		return s
	}
	return strategyTables[FamilyReplica]
}
