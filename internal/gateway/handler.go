package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/foundermafstat/mafcoach-gateway/internal/config"
	"github.com/foundermafstat/mafcoach-gateway/internal/credentials"
	"github.com/foundermafstat/mafcoach-gateway/internal/httputil"
	"github.com/foundermafstat/mafcoach-gateway/internal/normalize"
	"github.com/foundermafstat/mafcoach-gateway/internal/policy"
	"github.com/foundermafstat/mafcoach-gateway/internal/ratelimit"
	"github.com/foundermafstat/mafcoach-gateway/internal/remote"
	"github.com/foundermafstat/mafcoach-gateway/internal/settings"
	"github.com/foundermafstat/mafcoach-gateway/internal/snapshot"
	"github.com/foundermafstat/mafcoach-gateway/internal/telemetry"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// Handler holds dependencies for the gateway HTTP handlers. Every route
// follows the same pipeline: resolve credentials, attempt the remote call
// through the ordered strategy list, normalize, respond. Read-only list
// operations additionally get a snapshot fallback branch.
type Handler struct {
	resolver  *credentials.Resolver
	attempter *remote.Attempter
	cache     *snapshot.Cache
	store     settings.Store
	gate      *policy.Gate
	quota     *ratelimit.IngestionQuota
	cfg       func() *config.Config
	metrics   *telemetry.Metrics
}

func NewHandler(
	resolver *credentials.Resolver,
	attempter *remote.Attempter,
	cache *snapshot.Cache,
	store settings.Store,
	gate *policy.Gate,
	quota *ratelimit.IngestionQuota,
	cfg func() *config.Config,
	metrics *telemetry.Metrics,
) *Handler {
	return &Handler{
		resolver:  resolver,
		attempter: attempter,
		cache:     cache,
		store:     store,
		gate:      gate,
		quota:     quota,
		cfg:       cfg,
		metrics:   metrics,
	}
}

func requestID(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}

// resolve picks the credential bundle for the request. An explicit bundle id
// may be supplied via the "bundle" query parameter; otherwise the active
// settings bundle is used. Routes opt into the raw-environment path with
// ?source=env, which is never mixed with the store path.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*credentials.Resolved, bool) {
	reqID := requestID(w)

	var resolved *credentials.Resolved
	var err error
	if r.URL.Query().Get("source") == "env" {
		resolved, err = h.resolver.ResolveFromEnv()
	} else {
		resolved, err = h.resolver.Resolve(r.Context(), r.URL.Query().Get("bundle"))
	}
	if err != nil {
		if errors.Is(err, credentials.ErrNoActiveCredentials) {
			httputil.WriteNoActiveCredentials(w, reqID)
		} else {
			slog.Error("credential resolution failed", "request_id", reqID, "error", err)
			httputil.WriteInternalError(w, reqID, "Failed to resolve credentials")
		}
		return nil, false
	}
	return resolved, true
}

// listRead is the shared read pipeline: attempt, fall back to the snapshot
// on total strategy failure, normalize, persist the fresh snapshot. List
// reads never surface an authentication failure to the caller; an empty
// collection is the legitimate worst case.
func listRead[T any](h *Handler, w http.ResponseWriter, r *http.Request, kind types.ResourceKind, op remote.Operation, parse func([]byte) ([]T, error)) {
	reqID := requestID(w)

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	bundle := resolved.Bundle

	out, err := h.attempter.Attempt(r.Context(), op, bundle, nil)
	if err != nil {
		var allFailed *remote.AllFailedError
		if errors.As(err, &allFailed) {
			slog.Warn("remote unreachable, serving snapshot",
				"request_id", reqID,
				"kind", string(kind),
				"strategies_tried", len(allFailed.Diagnostics),
			)
			httputil.WriteItems(w, reqID, snapshot.Serve[T](r.Context(), h.cache, bundle.ID, kind))
			return
		}
		slog.Error("remote request failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Remote request failed")
		return
	}

	records, err := parse(out.Body)
	if err != nil {
		var malformed *normalize.MalformedError
		if errors.As(err, &malformed) {
			slog.Error("unparseable remote response",
				"request_id", reqID, "kind", string(kind), "prefix", malformed.Prefix)
			httputil.WriteMalformedRemote(w, reqID, "Remote returned an unrecognized response")
			return
		}
		httputil.WriteInternalError(w, reqID, "Failed to process remote response")
		return
	}
	if records == nil {
		records = []T{}
	}

	snapshot.Persist(r.Context(), h.cache, bundle.ID, kind, records)
	httputil.WriteItems(w, reqID, records)
}

// writeOp is the shared write pipeline. Writes never fall back: a total
// strategy failure surfaces the full diagnostics list, using the last
// attempted HTTP status when it is more specific than a blanket 500.
func (h *Handler) writeOp(w http.ResponseWriter, r *http.Request, op remote.Operation, bundle types.CredentialBundle, body []byte) (*remote.Outcome, bool) {
	reqID := requestID(w)

	out, err := h.attempter.Attempt(r.Context(), op, bundle, body)
	if err != nil {
		var allFailed *remote.AllFailedError
		if errors.As(err, &allFailed) {
			status := allFailed.LastStatus()
			if status < 400 {
				status = http.StatusInternalServerError
			}
			slog.Error("all auth strategies rejected",
				"request_id", reqID,
				"operation", string(op.Family),
				"strategies_tried", len(allFailed.Diagnostics),
			)
			httputil.WriteRemoteFailure(w, reqID, status,
				"remote request failed after trying all authentication strategies",
				allFailed.Diagnostics)
			return nil, false
		}
		slog.Error("remote request failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Remote request failed")
		return nil, false
	}
	return out, true
}

// readBody reads and returns the request body, capped at 1 MiB.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.WriteValidationError(w, requestID(w), "Failed to read request body")
		return nil, false
	}
	defer r.Body.Close()
	return body, true
}

func decodeJSON(w http.ResponseWriter, body []byte, dest any) bool {
	if err := json.Unmarshal(body, dest); err != nil {
		httputil.WriteValidationError(w, requestID(w), "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// evaluatePolicy runs the ingestion policy gate for a write operation.
func (h *Handler) evaluatePolicy(w http.ResponseWriter, r *http.Request, input policy.Input) bool {
	if h.gate == nil {
		return true
	}
	d := h.gate.Evaluate(r.Context(), input)
	if !d.Allowed {
		slog.Warn("write denied by ingestion policy",
			"request_id", requestID(w),
			"operation", input.Operation,
			"reason", d.Reason,
		)
		httputil.WritePolicyDenied(w, requestID(w), d.Reason)
		return false
	}
	return true
}
