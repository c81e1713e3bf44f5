package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/foundermafstat/mafcoach-gateway/internal/telemetry"
)

// Routes mounts every gateway endpoint on a fresh router. Cross-cutting
// middleware (request IDs, rate limiting, metrics) is attached by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/replicas", h.ListReplicas)
		r.Post("/replicas", h.CreateReplica)
		r.Put("/replicas/{uuid}", h.UpdateReplica)
		r.Delete("/replicas/{uuid}", h.DeleteReplica)

		r.Get("/chat-history/{replicaID}", h.GetChatHistory)
		r.Get("/chat-history/{replicaID}/debug", h.GetChatHistoryDebug)
		r.Post("/chat-history/{replicaID}", h.AppendChatMessage)

		r.Get("/training/{replicaID}", h.GetTraining)
		r.Post("/training", h.CreateTraining)
		r.Post("/training/upload-url", h.CreateUploadURL)

		r.Get("/settings", h.ListSettings)
		r.Post("/settings", h.UpsertSettings)
		r.Delete("/settings/{name}", h.DeleteSettings)
	})

	return r
}

// RequestID assigns each request a unique id, exposed on the response and
// available to handlers through the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// MetricsMiddleware records per-route request counts and latency.
func MetricsMiddleware(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.RecordRequest(route, r.Method, ww.Status(), float64(time.Since(start).Milliseconds()))
		})
	}
}
