// Package breaker exposes circuit breaker state for operators and lets an admin close a
// breaker by hand once the upstream has recovered.
package breaker

import (
	"log/slog"
	"net/http"

	"nexus-letter-analyzer/internal/handler/http/auth"
	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/handler/http/respond"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
)

// ListResponse is the body of GET /circuit-breakers.
type ListResponse struct {
	Breakers []circuitbreaker.Status `json:"breakers"`
}

// ListHandler handles GET /circuit-breakers.
type ListHandler struct{ Registry *circuitbreaker.Registry }

func (h ListHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, ListResponse{Breakers: h.Registry.Statuses()})
}

// ResetHandler handles POST /circuit-breakers/{name}/reset and answers with the
// breaker's status after the reset.
type ResetHandler struct {
	Registry *circuitbreaker.Registry
	Logger   *slog.Logger
}

func (h ResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	corrID := requestid.FromContext(r.Context())

	if !h.Registry.Reset(name) {
		respond.SafeErrorWithID(w, http.StatusNotFound,
			respond.NewAppError(http.StatusNotFound, "circuit breaker not found", nil), corrID)
		return
	}

	actor := "anonymous"
	if c := auth.FromContext(r.Context()); c != nil {
		actor = c.Subject
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("circuit breaker manually reset",
		slog.String("correlation_id", corrID),
		slog.String("breaker", name),
		slog.String("actor", actor))

	cb, _ := h.Registry.Lookup(name)
	respond.JSON(w, http.StatusOK, cb.Status())
}

// Register mounts the breaker routes on mux.
func Register(mux *http.ServeMux, reg *circuitbreaker.Registry, logger *slog.Logger) {
	mux.Handle("GET /circuit-breakers", ListHandler{Registry: reg})
	mux.Handle("POST /circuit-breakers/{name}/reset", ResetHandler{Registry: reg, Logger: logger})
}
