// Package http holds the HTTP surface of the analyzer: middleware, probes, metrics
// and the router that mounts the analysis and circuit breaker handlers.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nexus-letter-analyzer/internal/handler/http/respond"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"` // healthy, degraded or unhealthy
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// StateReporter reports the state of a breaker that lives outside the registry, such as
// the database breaker.
type StateReporter interface {
	State() string
}

// HealthHandler reports database connectivity and every circuit breaker.
// An unreachable database makes the service unhealthy. An open breaker only degrades it,
// since fallback responses keep the API useful.
type HealthHandler struct {
	DB        *sql.DB
	DBBreaker StateReporter
	Breakers  *circuitbreaker.Registry
	Version   string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	status := statusHealthy

	if h.DB == nil {
		checks["database"] = CheckStatus{Status: statusUnhealthy, Message: "not configured"}
	} else {
		checks["database"] = h.checkDatabase(ctx)
	}

	if h.Breakers != nil {
		checks["circuit_breakers"] = h.checkBreakers()
	}

	for _, c := range checks {
		switch c.Status {
		case statusUnhealthy:
			status = statusUnhealthy
		case statusDegraded:
			if status == statusHealthy {
				status = statusDegraded
			}
		}
	}

	code := http.StatusOK
	if status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		slog.Default().Warn("health: database ping failed", slog.Any("error", err))
		return CheckStatus{Status: statusUnhealthy, Message: respond.SanitizeError(err)}
	}

	stats := h.DB.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
	if h.DBBreaker != nil {
		details["circuit_breaker"] = h.DBBreaker.State()
		if h.DBBreaker.State() == "open" {
			return CheckStatus{Status: statusDegraded, Message: "database circuit breaker open", Details: details}
		}
	}

	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
		details["utilization_percent"] = utilization
		if utilization >= 80.0 {
			return CheckStatus{Status: statusDegraded, Message: "connection pool utilization above 80%", Details: details}
		}
	}

	return CheckStatus{Status: statusHealthy, Details: details}
}

func (h *HealthHandler) checkBreakers() CheckStatus {
	details := make(map[string]any)
	var open []string
	for _, st := range h.Breakers.Statuses() {
		details[st.Name] = st.State
		if st.State == circuitbreaker.StateOpen.String() {
			open = append(open, st.Name)
		}
	}
	if len(open) > 0 {
		return CheckStatus{Status: statusDegraded, Message: "open: " + strings.Join(open, ", "), Details: details}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

// ReadyHandler answers readiness probes. It fails when the database does not answer a
// ping or when one of the Critical breakers is open, so that a load balancer can route
// new analyses elsewhere until the LLM provider recovers.
type ReadyHandler struct {
	DB       *sql.DB
	Breakers *circuitbreaker.Registry
	Critical []string
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.PingContext(ctx); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	if h.Breakers != nil {
		for _, name := range h.Critical {
			if cb, ok := h.Breakers.Lookup(name); ok && cb.IsOpen() {
				http.Error(w, name+" circuit open", http.StatusServiceUnavailable)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
