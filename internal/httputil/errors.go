package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform JSON response shape returned by every gateway route.
// Successful list reads populate Items, single-object responses populate Data.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Items   any    `json:"items,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func write(w http.ResponseWriter, requestID string, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(env)
}

// WriteItems responds 200 with a list payload. A nil slice is sent as an
// empty array so list readers always get "items", never null.
func WriteItems(w http.ResponseWriter, requestID string, items any) {
	if items == nil {
		items = []any{}
	}
	write(w, requestID, http.StatusOK, Envelope{Success: true, Items: items})
}

// WriteData responds 200 with a single-object payload.
func WriteData(w http.ResponseWriter, requestID string, data any) {
	write(w, requestID, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteCreated responds 201 with a single-object payload.
func WriteCreated(w http.ResponseWriter, requestID string, data any) {
	write(w, requestID, http.StatusCreated, Envelope{Success: true, Data: data})
}

// WriteError responds with the failure envelope. Details carries structured
// diagnostics (e.g. per-strategy attempt records) when available.
func WriteError(w http.ResponseWriter, requestID string, statusCode int, message string, details any) {
	write(w, requestID, statusCode, Envelope{Success: false, Error: message, Details: details})
}

// WriteValidationError rejects a malformed caller request before any remote
// call is attempted.
func WriteValidationError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, message, nil)
}

// WriteNoActiveCredentials reports that no credential bundle could be
// resolved. 412 is used uniformly across routes.
func WriteNoActiveCredentials(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusPreconditionFailed,
		"no active API settings configured", nil)
}

// WriteRemoteFailure reports a failed remote exchange, carrying the
// per-strategy attempt diagnostics so operators can see what was tried.
func WriteRemoteFailure(w http.ResponseWriter, requestID string, statusCode int, message string, details any) {
	if statusCode < 400 {
		statusCode = http.StatusInternalServerError
	}
	WriteError(w, requestID, statusCode, message, details)
}

// WriteMalformedRemote reports a remote response that could not be parsed.
func WriteMalformedRemote(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, message, nil)
}

// WriteInternalError reports an unexpected gateway-side failure.
func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, message, nil)
}

// WriteRateLimitError reports that the caller exceeded a request or quota limit.
func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, message, nil)
}

// WritePolicyDenied reports that an ingestion policy rejected a write.
func WritePolicyDenied(w http.ResponseWriter, requestID, reason string) {
	WriteError(w, requestID, http.StatusForbidden, reason, nil)
}

// WriteNotFound reports a missing resource.
func WriteNotFound(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusNotFound, message, nil)
}
