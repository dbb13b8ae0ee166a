// Package analysis provides the HTTP handlers for submitting letters and reading stored
// analyses.
package analysis

import (
	"time"

	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/resilience/degrade"
	analysisUC "nexus-letter-analyzer/internal/usecase/analysis"
)

// CreateRequest is the body of POST /analyses. Exactly one field is expected; when
// several are set, text wins over url, and url over html.
type CreateRequest struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	HTML string `json:"html,omitempty"`
}

// DTO is the JSON form of a stored analysis.
type DTO struct {
	ID              string                `json:"id"`
	CorrelationID   string                `json:"correlation_id"`
	Provider        string                `json:"provider"`
	InputChars      int                   `json:"input_chars"`
	RedactionCount  int                   `json:"redaction_count"`
	Findings        *entity.Findings      `json:"findings,omitempty"`
	Scores          entity.ScoreBreakdown `json:"scores"`
	Recommendations []string              `json:"recommendations"`
	FallbackApplied bool                  `json:"fallback_applied"`
	ErrorCategory   string                `json:"error_category,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// CreateResponse is the body of a successful POST /analyses.
type CreateResponse struct {
	DTO
	// Redactions counts removed identifiers per kind. It is not stored.
	Redactions map[string]int            `json:"redactions,omitempty"`
	Fallback   *degrade.FallbackResponse `json:"fallback,omitempty"`
}

func toDTO(a *entity.Analysis) DTO {
	recs := a.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return DTO{
		ID:              a.ID,
		CorrelationID:   a.CorrelationID,
		Provider:        a.Provider,
		InputChars:      a.InputChars,
		RedactionCount:  a.RedactionCount,
		Findings:        a.Findings,
		Scores:          a.Scores,
		Recommendations: recs,
		FallbackApplied: a.FallbackApplied,
		ErrorCategory:   a.ErrorCategory,
		CreatedAt:       a.CreatedAt,
	}
}

func toCreateResponse(res *analysisUC.Result) CreateResponse {
	out := CreateResponse{DTO: toDTO(res.Analysis), Fallback: res.Fallback}
	if len(res.Redactions) > 0 {
		out.Redactions = make(map[string]int, len(res.Redactions))
		for k, n := range res.Redactions {
			out.Redactions[string(k)] = n
		}
	}
	return out
}
