package analysis

import (
	"net/http"

	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/handler/http/respond"
)

// GetHandler handles GET /analyses/{id}.
type GetHandler struct{ Svc Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, requestid.FromContext(r.Context()))
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(a))
}
