package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/sjson"

	"github.com/foundermafstat/mafcoach-gateway/internal/httputil"
	"github.com/foundermafstat/mafcoach-gateway/internal/normalize"
	"github.com/foundermafstat/mafcoach-gateway/internal/policy"
	"github.com/foundermafstat/mafcoach-gateway/internal/remote"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// replicaParams is the caller-facing body for replica create and update.
type replicaParams struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Purpose       string `json:"purpose"`
	Greeting      string `json:"greeting"`
	SystemMessage string `json:"systemMessage"`
	ModelName     string `json:"modelName"`
	Private       *bool  `json:"private"`
}

// remoteBody maps the caller's fields onto the remote API's replica payload,
// omitting fields the caller did not supply.
func (p replicaParams) remoteBody() ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path, value string) {
		if err != nil || value == "" {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}
	set("name", p.Name)
	set("slug", p.Slug)
	set("purpose", p.Purpose)
	set("greeting", p.Greeting)
	set("llm.systemMessage", p.SystemMessage)
	set("llm.model", p.ModelName)
	if err == nil && p.Private != nil {
		body, err = sjson.SetBytes(body, "private", *p.Private)
	}
	return body, err
}

func (h *Handler) ListReplicas(w http.ResponseWriter, r *http.Request) {
	op := remote.Operation{Family: remote.FamilyReplica, Method: http.MethodGet, Path: "/v1/replicas"}
	listRead(h, w, r, types.KindReplicaList, op, normalize.Replicas)
}

func (h *Handler) CreateReplica(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var p replicaParams
	if !decodeJSON(w, raw, &p) {
		return
	}
	if p.Name == "" {
		httputil.WriteValidationError(w, reqID, "Replica name is required")
		return
	}

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if !h.evaluatePolicy(w, r, policy.Input{
		Operation: "replica-create",
		Bundle:    policy.InputBundle{Name: resolved.Bundle.Name, OrganizationID: resolved.Bundle.OrganizationID},
		Resource:  policy.InputRes{Title: p.Name},
	}) {
		return
	}

	body, err := p.remoteBody()
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Failed to build remote payload")
		return
	}

	op := remote.Operation{Family: remote.FamilyReplica, Method: http.MethodPost, Path: "/v1/replicas"}
	out, ok := h.writeOp(w, r, op, resolved.Bundle, body)
	if !ok {
		return
	}

	created, err := normalize.Replicas(out.Body)
	if err != nil {
		httputil.WriteMalformedRemote(w, reqID, "Remote returned an unrecognized replica")
		return
	}
	if len(created) == 0 {
		httputil.WriteCreated(w, reqID, map[string]bool{"created": true})
		return
	}
	httputil.WriteCreated(w, reqID, created[0])
}

func (h *Handler) UpdateReplica(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	uuid := chi.URLParam(r, "uuid")

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var p replicaParams
	if !decodeJSON(w, raw, &p) {
		return
	}

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if !h.evaluatePolicy(w, r, policy.Input{
		Operation: "replica-update",
		Bundle:    policy.InputBundle{Name: resolved.Bundle.Name, OrganizationID: resolved.Bundle.OrganizationID},
		Resource:  policy.InputRes{ReplicaID: uuid, Title: p.Name},
	}) {
		return
	}

	body, err := p.remoteBody()
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Failed to build remote payload")
		return
	}

	op := remote.Operation{Family: remote.FamilyReplica, Method: http.MethodPut, Path: "/v1/replicas/" + uuid}
	out, ok := h.writeOp(w, r, op, resolved.Bundle, body)
	if !ok {
		return
	}

	updated, err := normalize.Replicas(out.Body)
	if err != nil || len(updated) == 0 {
		httputil.WriteData(w, reqID, map[string]bool{"updated": true})
		return
	}
	httputil.WriteData(w, reqID, updated[0])
}

func (h *Handler) DeleteReplica(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	uuid := chi.URLParam(r, "uuid")

	resolved, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if !h.evaluatePolicy(w, r, policy.Input{
		Operation: "replica-delete",
		Bundle:    policy.InputBundle{Name: resolved.Bundle.Name, OrganizationID: resolved.Bundle.OrganizationID},
		Resource:  policy.InputRes{ReplicaID: uuid},
	}) {
		return
	}

	op := remote.Operation{Family: remote.FamilyReplica, Method: http.MethodDelete, Path: "/v1/replicas/" + uuid}
	if _, ok := h.writeOp(w, r, op, resolved.Bundle, nil); !ok {
		return
	}
	httputil.WriteData(w, reqID, map[string]bool{"deleted": true})
}
