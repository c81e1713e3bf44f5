package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foundermafstat/mafcoach-gateway/internal/httputil"
	"github.com/foundermafstat/mafcoach-gateway/internal/settings"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// bundleView is the admin-facing projection of a credential bundle. The API
// key never leaves the gateway; only a short preview is exposed.
type bundleView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	KeyPreview     string    `json:"key_preview"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id,omitempty"`
	ReplicaID      string    `json:"replica_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func viewOf(b types.CredentialBundle) bundleView {
	return bundleView{
		ID:             b.ID,
		Name:           b.Name,
		KeyPreview:     b.KeyPreview(),
		OrganizationID: b.OrganizationID,
		UserID:         b.UserID,
		ReplicaID:      b.ReplicaID,
		IsActive:       b.IsActive,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)

	bundles, err := h.store.ListAll(r.Context())
	if err != nil {
		slog.Error("failed to list credential bundles", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to list credential bundles")
		return
	}

	views := make([]bundleView, 0, len(bundles))
	for _, b := range bundles {
		views = append(views, viewOf(b))
	}
	httputil.WriteItems(w, reqID, views)
}

type upsertSettingsParams struct {
	Name           string `json:"name"`
	APIKey         string `json:"apiKey"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	ReplicaID      string `json:"replicaId"`
	IsActive       bool   `json:"isActive"`
}

func (h *Handler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var p upsertSettingsParams
	if !decodeJSON(w, raw, &p) {
		return
	}
	if p.Name == "" {
		httputil.WriteValidationError(w, reqID, "Bundle name is required")
		return
	}
	if p.APIKey == "" {
		httputil.WriteValidationError(w, reqID, "API key is required")
		return
	}

	bundle, err := h.store.Upsert(r.Context(), settings.UpsertParams{
		Name:           p.Name,
		APIKey:         p.APIKey,
		OrganizationID: p.OrganizationID,
		UserID:         p.UserID,
		ReplicaID:      p.ReplicaID,
		IsActive:       p.IsActive,
	})
	if err != nil {
		slog.Error("failed to upsert credential bundle", "request_id", reqID, "name", p.Name, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to save credential bundle")
		return
	}

	slog.Info("credential bundle saved",
		"request_id", reqID,
		"name", bundle.Name,
		"active", bundle.IsActive,
		"key", bundle.KeyPreview(),
	)
	httputil.WriteData(w, reqID, viewOf(*bundle))
}

func (h *Handler) DeleteSettings(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	name := chi.URLParam(r, "name")

	removed, err := h.store.Delete(r.Context(), name)
	if err != nil {
		slog.Error("failed to delete credential bundle", "request_id", reqID, "name", name, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to delete credential bundle")
		return
	}

	// Deleting a bundle that does not exist is not an error; the caller only
	// learns whether a row was actually removed.
	httputil.WriteData(w, reqID, map[string]bool{"removed": removed})
}
