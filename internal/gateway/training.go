package gateway

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/foundermafstat/mafcoach-gateway/internal/httputil"
	"github.com/foundermafstat/mafcoach-gateway/internal/normalize"
	"github.com/foundermafstat/mafcoach-gateway/internal/policy"
	"github.com/foundermafstat/mafcoach-gateway/internal/remote"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

func trainingPath(replicaID string) string {
	return "/v1/replicas/" + replicaID + "/training"
}

func (h *Handler) GetTraining(w http.ResponseWriter, r *http.Request) {
	replicaID := chi.URLParam(r, "replicaID")
	op := remote.Operation{Family: remote.FamilyTraining, Method: http.MethodGet, Path: trainingPath(replicaID)}
	listRead(h, w, r, types.KindTraining, op, normalize.Training)
}

type trainingCreateParams struct {
	ReplicaID   string `json:"replicaId"`
	Type        string `json:"type"`
	RawText     string `json:"rawText"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (p trainingCreateParams) validate() string {
	if p.ReplicaID == "" {
		return "replicaId is required"
	}
	kind, ok := types.ParseTrainingType(p.Type)
	if !ok {
		return "type must be one of file_upload, url, training_history, text"
	}
	switch kind {
	case types.TrainingText, types.TrainingHistory:
		if p.RawText == "" {
			return "rawText is required for text training"
		}
	case types.TrainingURL:
		if p.URL == "" {
			return "url is required for url training"
		}
	}
	return ""
}

// CreateTraining ingests one knowledge-base entry. Validation runs before any
// remote call, then the policy gate, then the daily quota; the quota counter
// is consumed only after the remote accepts the entry.
func (h *Handler) CreateTraining(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var p trainingCreateParams
	if !decodeJSON(w, raw, &p) {
		return
	}
	if msg := p.validate(); msg != "" {
		httputil.WriteValidationError(w, reqID, msg)
		return
	}

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if !h.evaluatePolicy(w, r, policy.Input{
		Operation: "training-create",
		Bundle:    policy.InputBundle{Name: resolved.Bundle.Name, OrganizationID: resolved.Bundle.OrganizationID},
		Resource:  policy.InputRes{ReplicaID: p.ReplicaID, Type: p.Type, Title: p.Title},
	}) {
		return
	}

	quotaLimit := h.cfg().RateLimit.DailyTrainingQuota
	result, err := h.quota.Check(r.Context(), p.ReplicaID, int64(quotaLimit))
	if err == nil && !result.Allowed {
		slog.Warn("daily training quota exhausted",
			"request_id", reqID, "replica_id", p.ReplicaID, "limit", quotaLimit)
		if h.metrics != nil {
			h.metrics.RecordQuotaDenied("training")
		}
		httputil.WriteRateLimitError(w, reqID, "Daily training quota exhausted for this replica")
		return
	}

	body := []byte(`{}`)
	set := func(path, value string) {
		if err != nil || value == "" {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}
	err = nil
	set("type", p.Type)
	set("rawText", p.RawText)
	set("url", p.URL)
	set("title", p.Title)
	set("description", p.Description)
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Failed to build remote payload")
		return
	}

	op := remote.Operation{Family: remote.FamilyTraining, Method: http.MethodPost, Path: trainingPath(p.ReplicaID)}
	out, ok := h.writeOp(w, r, op, resolved.Bundle, body)
	if !ok {
		return
	}

	if recErr := h.quota.Record(r.Context(), p.ReplicaID); recErr != nil {
		slog.Warn("failed to record training quota usage", "request_id", reqID, "error", recErr)
	}

	entries, err := normalize.Training(out.Body)
	if err != nil || len(entries) == 0 {
		httputil.WriteCreated(w, reqID, map[string]bool{"created": true})
		return
	}
	httputil.WriteCreated(w, reqID, entries[0])
}

type uploadURLParams struct {
	ReplicaID string `json:"replicaId"`
	Filename  string `json:"filename"`
}

// CreateUploadURL is step one of the file-ingestion flow: the remote issues a
// signed URL the caller uploads the file to directly. The gateway never
// proxies file bytes.
func (h *Handler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var p uploadURLParams
	if !decodeJSON(w, raw, &p) {
		return
	}
	if p.ReplicaID == "" {
		httputil.WriteValidationError(w, reqID, "replicaId is required")
		return
	}
	if p.Filename == "" {
		httputil.WriteValidationError(w, reqID, "filename is required")
		return
	}

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if !h.evaluatePolicy(w, r, policy.Input{
		Operation: "training-upload",
		Bundle:    policy.InputBundle{Name: resolved.Bundle.Name, OrganizationID: resolved.Bundle.OrganizationID},
		Resource:  policy.InputRes{ReplicaID: p.ReplicaID, Type: string(types.TrainingFileUpload), Title: p.Filename},
	}) {
		return
	}

	op := remote.Operation{
		Family: remote.FamilyTraining,
		Method: http.MethodGet,
		Path:   trainingPath(p.ReplicaID) + "/files/upload?filename=" + url.QueryEscape(p.Filename),
	}
	out, ok := h.writeOp(w, r, op, resolved.Bundle, nil)
	if !ok {
		return
	}

	parsed := gjson.ParseBytes(out.Body)
	signedURL := parsed.Get("signedURL").String()
	if signedURL == "" {
		signedURL = parsed.Get("signed_url").String()
	}
	if signedURL == "" {
		httputil.WriteMalformedRemote(w, reqID, "Remote did not return a signed upload URL")
		return
	}

	entryID := parsed.Get("knowledgeBaseID").String()
	if entryID == "" {
		entryID = parsed.Get("id").String()
	}
	httputil.WriteData(w, reqID, map[string]string{
		"upload_url": signedURL,
		"entry_id":   entryID,
	})
}
