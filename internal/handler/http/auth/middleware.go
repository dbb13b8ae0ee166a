// Package auth authenticates API callers with HS256 bearer tokens and authorizes them by
// role.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/handler/http/respond"
)

var authRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_requests_total",
		Help: "Total authenticated requests by role and result",
	},
	[]string{"role", "result"}, // result: success, unauthorized, forbidden
)

type ctxKey struct{}

// FromContext returns the claims of the authenticated caller, or nil.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// Authenticator guards every non-public endpoint.
type Authenticator struct {
	secret []byte
	issuer string
	public []string
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator. A nil public list uses DefaultPublicEndpoints.
func NewAuthenticator(secret, issuer string, public []string, logger *slog.Logger) *Authenticator {
	if public == nil {
		public = DefaultPublicEndpoints
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		public: public,
		logger: logger,
		now:    time.Now,
	}
}

// Middleware rejects requests without a valid token with 401, and requests whose role
// does not permit the method and path with 403.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsPublicEndpoint(r.URL.Path, a.public) {
			next.ServeHTTP(w, r)
			return
		}

		corrID := requestid.FromContext(r.Context())
		claims, err := ParseBearer(r.Header.Get("Authorization"), a.secret, a.issuer, a.now())
		if err != nil {
			authRequestsTotal.WithLabelValues("unknown", "unauthorized").Inc()
			a.logger.Warn("authentication failed",
				slog.String("correlation_id", corrID),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()))
			reason := ErrInvalidToken
			if errors.Is(err, ErrMissingToken) {
				reason = ErrMissingToken
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="nexus-letter-analyzer"`)
			respond.SafeErrorWithID(w, http.StatusUnauthorized,
				respond.NewAppError(http.StatusUnauthorized, "unauthorized: "+reason.Error(), err), corrID)
			return
		}

		if !Allowed(claims.Role, r.Method, r.URL.Path) {
			authRequestsTotal.WithLabelValues(claims.Role, "forbidden").Inc()
			a.logger.Warn("forbidden",
				slog.String("correlation_id", corrID),
				slog.String("subject", claims.Subject),
				slog.String("role", claims.Role),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path))
			respond.SafeErrorWithID(w, http.StatusForbidden, respond.NewAppError(http.StatusForbidden, "forbidden", nil), corrID)
			return
		}

		authRequestsTotal.WithLabelValues(claims.Role, "success").Inc()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}
