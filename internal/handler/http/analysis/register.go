package analysis

import (
	"context"
	"log/slog"
	"net/http"

	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/domain/entity"
	analysisUC "nexus-letter-analyzer/internal/usecase/analysis"
)

// Service is the subset of the analysis use case the handlers call.
type Service interface {
	Analyze(ctx context.Context, in analysisUC.Input) (*analysisUC.Result, error)
	Get(ctx context.Context, id string) (*entity.Analysis, error)
	List(ctx context.Context, params pagination.Params) (*analysisUC.PaginatedResult, error)
}

// Register mounts the analysis routes on mux.
func Register(mux *http.ServeMux, svc Service, paginationCfg pagination.Config, logger *slog.Logger) {
	mux.Handle("POST /analyses", CreateHandler{Svc: svc})
	mux.Handle("GET /analyses", ListHandler{Svc: svc, PaginationCfg: paginationCfg, Logger: logger})
	mux.Handle("GET /analyses/{id}", GetHandler{Svc: svc})
}
