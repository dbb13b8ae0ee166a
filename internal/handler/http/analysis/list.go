package analysis

import (
	"log/slog"
	"net/http"
	"time"

	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/handler/http/respond"
)

// ListHandler handles GET /analyses?page=&limit=, newest first.
type ListHandler struct {
	Svc           Service
	PaginationCfg pagination.Config
	Logger        *slog.Logger
}

func (h ListHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	corrID := requestid.FromContext(r.Context())

	params, err := pagination.ParseQueryParams(r, h.PaginationCfg)
	if err != nil {
		pagination.RecordError("invalid_params")
		pagination.RecordRequest(http.StatusBadRequest, params.Page)
		pagination.LogError(h.logger(), corrID, params, err, "invalid_params")
		respond.SafeErrorWithID(w, http.StatusBadRequest, err, corrID)
		return
	}

	res, err := h.Svc.List(r.Context(), params)
	if err != nil {
		pagination.RecordError("service")
		pagination.RecordRequest(http.StatusInternalServerError, params.Page)
		pagination.LogError(h.logger(), corrID, params, err, "service")
		writeError(w, err, corrID)
		return
	}

	data := make([]DTO, 0, len(res.Data))
	for _, a := range res.Data {
		data = append(data, toDTO(a))
	}

	elapsed := time.Since(start)
	pagination.RecordDuration("total", elapsed.Seconds())
	pagination.RecordRequest(http.StatusOK, params.Page)
	pagination.LogResponse(h.logger(), corrID, params, len(data), elapsed, http.StatusOK)
	respond.JSON(w, http.StatusOK, pagination.NewResponse(data, res.Pagination))
}
