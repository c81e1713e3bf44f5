package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/foundermafstat/mafcoach-gateway/internal/httputil"
	"github.com/foundermafstat/mafcoach-gateway/internal/normalize"
	"github.com/foundermafstat/mafcoach-gateway/internal/remote"
	"github.com/foundermafstat/mafcoach-gateway/internal/snapshot"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

func chatHistoryPath(replicaID string) string {
	return "/v1/replicas/" + replicaID + "/chat/history"
}

func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	replicaID := chi.URLParam(r, "replicaID")
	op := remote.Operation{Family: remote.FamilyChatHistory, Method: http.MethodGet, Path: chatHistoryPath(replicaID)}
	listRead(h, w, r, types.KindChatHistory, op, normalize.ChatHistory)
}

// chatDebugPayload mirrors a normal chat-history response but additionally
// exposes the full per-strategy attempt trace, winner included.
type chatDebugPayload struct {
	Entries  []types.ChatHistoryEntry `json:"entries"`
	Attempts []remote.AttemptRecord   `json:"attempts"`
	Source   string                   `json:"source"`
}

// GetChatHistoryDebug runs the same pipeline as GetChatHistory but surfaces
// the attempt records so operators can see which strategy won and why the
// earlier ones were rejected.
func (h *Handler) GetChatHistoryDebug(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	replicaID := chi.URLParam(r, "replicaID")

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	bundle := resolved.Bundle

	op := remote.Operation{Family: remote.FamilyChatHistory, Method: http.MethodGet, Path: chatHistoryPath(replicaID)}
	out, err := h.attempter.Attempt(r.Context(), op, bundle, nil)
	if err != nil {
		var allFailed *remote.AllFailedError
		if errors.As(err, &allFailed) {
			httputil.WriteData(w, reqID, chatDebugPayload{
				Entries:  snapshot.Serve[types.ChatHistoryEntry](r.Context(), h.cache, bundle.ID, types.KindChatHistory),
				Attempts: allFailed.Diagnostics,
				Source:   "snapshot",
			})
			return
		}
		slog.Error("remote request failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Remote request failed")
		return
	}

	entries, err := normalize.ChatHistory(out.Body)
	if err != nil {
		httputil.WriteMalformedRemote(w, reqID, "Remote returned an unrecognized response")
		return
	}
	if entries == nil {
		entries = []types.ChatHistoryEntry{}
	}

	snapshot.Persist(r.Context(), h.cache, bundle.ID, types.KindChatHistory, entries)
	httputil.WriteData(w, reqID, chatDebugPayload{
		Entries:  entries,
		Attempts: out.Attempts,
		Source:   "remote",
	})
}

type chatAppendParams struct {
	Content string `json:"content"`
	Role    string `json:"role"`
	Source  string `json:"source"`
}

func (h *Handler) AppendChatMessage(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	replicaID := chi.URLParam(r, "replicaID")

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var p chatAppendParams
	if !decodeJSON(w, raw, &p) {
		return
	}
	if p.Content == "" {
		httputil.WriteValidationError(w, reqID, "Message content is required")
		return
	}

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}

	body := []byte(`{}`)
	var err error
	body, err = sjson.SetBytes(body, "content", p.Content)
	if err == nil && p.Source != "" {
		body, err = sjson.SetBytes(body, "source", p.Source)
	}
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Failed to build remote payload")
		return
	}

	op := remote.Operation{Family: remote.FamilyChatHistory, Method: http.MethodPost, Path: chatHistoryPath(replicaID)}
	out, ok := h.writeOp(w, r, op, resolved.Bundle, body)
	if !ok {
		return
	}

	// The remote acknowledges appends with a small object; echo it through
	// when it is parseable rather than inventing a shape.
	if gjson.ValidBytes(out.Body) {
		var data any
		if json.Unmarshal(out.Body, &data) == nil {
			httputil.WriteCreated(w, reqID, data)
			return
		}
	}
	httputil.WriteCreated(w, reqID, map[string]bool{"accepted": true})
}
