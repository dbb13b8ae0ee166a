package analysis

import (
	"encoding/json"
	"errors"
	"net/http"

	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/handler/http/respond"
	analysisUC "nexus-letter-analyzer/internal/usecase/analysis"
)

// CreateHandler handles POST /analyses.
//
// A degraded result is still 201: it is stored with fallback_applied set and carries the
// fallback body. With fallback disabled an LLM outage answers 503.
type CreateHandler struct{ Svc Service }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corrID := requestid.FromContext(r.Context())

	var req CreateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respond.SafeErrorWithID(w, http.StatusRequestEntityTooLarge,
				respond.NewAppError(http.StatusRequestEntityTooLarge, "request body too large", err), corrID)
			return
		}
		respond.SafeErrorWithID(w, http.StatusBadRequest,
			respond.NewAppError(http.StatusBadRequest, "request body must be a JSON object with text, url or html", err), corrID)
		return
	}

	res, err := h.Svc.Analyze(r.Context(), analysisUC.Input{
		Text:          req.Text,
		URL:           req.URL,
		HTML:          req.HTML,
		CorrelationID: corrID,
	})
	if err != nil {
		writeError(w, err, corrID)
		return
	}

	w.Header().Set("Location", "/analyses/"+res.Analysis.ID)
	respond.JSON(w, http.StatusCreated, toCreateResponse(res))
}
