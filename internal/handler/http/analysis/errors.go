package analysis

import (
	"errors"
	"net/http"

	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/handler/http/respond"
	"nexus-letter-analyzer/internal/infra/fetcher"
	"nexus-letter-analyzer/internal/resilience/errclass"
	analysisUC "nexus-letter-analyzer/internal/usecase/analysis"
)

// writeError maps use case errors onto status codes. LLM failures carry the
// classifier's user message and category.
func writeError(w http.ResponseWriter, err error, correlationID string) {
	var llmErr *analysisUC.LLMError
	switch {
	case errors.As(err, &llmErr):
		appErr := respond.NewAppError(llmStatus(llmErr), llmErr.UserMessage, err)
		appErr.Category = string(llmErr.Category)
		respond.SafeErrorWithID(w, appErr.Code, appErr, correlationID)
	case errors.Is(err, analysisUC.ErrAnalysisNotFound):
		respond.SafeErrorWithID(w, http.StatusNotFound, respond.NewAppError(http.StatusNotFound, "analysis not found", nil), correlationID)
	case errors.Is(err, analysisUC.ErrInvalidAnalysisID):
		respond.SafeErrorWithID(w, http.StatusBadRequest, respond.NewAppError(http.StatusBadRequest, "invalid analysis ID", nil), correlationID)
	case errors.Is(err, analysisUC.ErrNoInput):
		respond.SafeErrorWithID(w, http.StatusBadRequest, respond.NewAppError(http.StatusBadRequest, err.Error(), nil), correlationID)
	case errors.Is(err, fetcher.ErrInvalidURL), errors.Is(err, fetcher.ErrPrivateIP):
		respond.SafeErrorWithID(w, http.StatusBadRequest, respond.NewAppError(http.StatusBadRequest, "url is invalid or not allowed", err), correlationID)
	case errors.Is(err, analysisUC.ErrFetchFailed):
		respond.SafeErrorWithID(w, http.StatusBadGateway, respond.NewAppError(http.StatusBadGateway, "could not retrieve the letter from url", err), correlationID)
	case errors.Is(err, entity.ErrInvalidInput):
		var ve *entity.ValidationError
		msg := "invalid input"
		if errors.As(err, &ve) {
			msg = ve.Message
		}
		respond.SafeErrorWithID(w, http.StatusBadRequest, respond.NewAppError(http.StatusBadRequest, msg, err), correlationID)
	default:
		respond.SafeErrorWithID(w, http.StatusInternalServerError, err, correlationID)
	}
}

func llmStatus(e *analysisUC.LLMError) int {
	if e.Unavailable() {
		return http.StatusServiceUnavailable
	}
	switch e.Category {
	case errclass.ValidationError:
		return http.StatusBadRequest
	case errclass.APIAuthentication, errclass.ConfigurationError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
