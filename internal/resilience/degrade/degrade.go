// Package degrade builds the substitute analysis returned when the LLM could not be
// reached. The substitute is deliberately conservative: it never claims a nexus and
// scores the letter on input size alone.
package degrade

import (
	"log/slog"

	"nexus-letter-analyzer/internal/resilience/errclass"
)

// SizeBucket is a coarse classification of the submitted input length.
type SizeBucket string

const (
	SizeMinimal     SizeBucket = "minimal"
	SizeLimited     SizeBucket = "limited"
	SizeModerate    SizeBucket = "moderate"
	SizeSubstantial SizeBucket = "substantial"
)

// BucketFor returns the bucket for an input of size runes. Negative sizes count as empty.
func BucketFor(size int) SizeBucket {
	switch {
	case size < 500:
		return SizeMinimal
	case size < 2000:
		return SizeLimited
	case size < 5000:
		return SizeModerate
	default:
		return SizeSubstantial
	}
}

// Scores mirrors the four scoring components of a real analysis.
type Scores struct {
	MedicalOpinion     int `json:"medical_opinion"`
	ServiceConnection  int `json:"service_connection"`
	MedicalRationale   int `json:"medical_rationale"`
	ProfessionalFormat int `json:"professional_format"`
	Total              int `json:"total"`
}

// placeholderScores rise with the bucket: a longer letter is more likely to contain the
// required elements, but a fallback never scores above half marks.
var placeholderScores = map[SizeBucket]Scores{
	SizeMinimal:     {MedicalOpinion: 5, ServiceConnection: 5, MedicalRationale: 5, ProfessionalFormat: 5, Total: 20},
	SizeLimited:     {MedicalOpinion: 8, ServiceConnection: 7, MedicalRationale: 7, ProfessionalFormat: 8, Total: 30},
	SizeModerate:    {MedicalOpinion: 10, ServiceConnection: 10, MedicalRationale: 10, ProfessionalFormat: 10, Total: 40},
	SizeSubstantial: {MedicalOpinion: 13, ServiceConnection: 12, MedicalRationale: 12, ProfessionalFormat: 13, Total: 50},
}

// ErrorSummary is the audit record of the failure that produced a fallback.
type ErrorSummary struct {
	Category      errclass.Category `json:"category"`
	AttemptNumber int               `json:"attempt_number"`
	TotalAttempts int               `json:"total_attempts"`
	ElapsedMS     int64             `json:"elapsed_ms"`
	CorrelationID string            `json:"correlation_id"`
	UserMessage   string            `json:"user_message"`
}

// FallbackResponse is a structurally valid substitute analysis.
type FallbackResponse struct {
	FallbackApplied bool         `json:"fallback_applied"`
	Status          string       `json:"status"`
	InputSize       SizeBucket   `json:"input_size"`
	NexusStrength   string       `json:"nexus_strength"`
	Summary         string       `json:"summary"`
	Scores          Scores       `json:"scores"`
	Recommendations []string     `json:"recommendations"`
	ErrorContext    ErrorSummary `json:"error_context"`
}

// Manager creates fallback responses. It holds no state beyond its logger.
type Manager struct {
	logger *slog.Logger
}

// NewManager returns a Manager that logs through logger, or slog.Default() if nil.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// CreateFallbackResponse returns the substitute analysis for a failure described by ec on
// an input of inputSizeHint runes. Identical arguments always produce identical output.
func (m *Manager) CreateFallbackResponse(ec errclass.ErrorContext, inputSizeHint int) *FallbackResponse {
	bucket := BucketFor(inputSizeHint)

	resp := &FallbackResponse{
		FallbackApplied: true,
		Status:          "degraded",
		InputSize:       bucket,
		NexusStrength:   "insufficient_information",
		Summary:         summaries[bucket],
		Scores:          placeholderScores[bucket],
		Recommendations: recommendationsFor(ec.Category, bucket),
		ErrorContext: ErrorSummary{
			Category:      ec.Category,
			AttemptNumber: ec.Attempt,
			TotalAttempts: ec.TotalAttempts,
			ElapsedMS:     ec.ElapsedMS,
			CorrelationID: ec.CorrelationID,
			UserMessage:   ec.UserMessage,
		},
	}

	m.logger.Info("fallback response created",
		slog.String("correlation_id", ec.CorrelationID),
		slog.String("category", ec.Category.String()),
		slog.String("input_size", string(bucket)),
		slog.Int("total_score", resp.Scores.Total))

	return resp
}

var summaries = map[SizeBucket]string{
	SizeMinimal:     "Automated analysis is unavailable. The letter is very short and is unlikely to contain a complete medical opinion.",
	SizeLimited:     "Automated analysis is unavailable. The letter is brief; confirm it states an opinion, a rationale and the examiner's credentials.",
	SizeModerate:    "Automated analysis is unavailable. The letter has a typical length; a manual review against the nexus criteria is recommended.",
	SizeSubstantial: "Automated analysis is unavailable. The letter is detailed; a manual review should confirm the opinion language and supporting rationale.",
}

var categoryRecommendations = map[errclass.Category]string{
	errclass.APITimeout:         "Retry the analysis in a few minutes; the analysis service was slow to respond.",
	errclass.APIRateLimit:       "Wait a few minutes before resubmitting; the analysis service is limiting requests.",
	errclass.APIAuthentication:  "Ask an administrator to verify the analysis service credentials.",
	errclass.APIServerError:     "Retry later; the analysis service is temporarily unavailable.",
	errclass.APINetworkError:    "Check network connectivity to the analysis service and retry.",
	errclass.ParsingError:       "Resubmit the letter; if the problem persists, submit a shorter excerpt.",
	errclass.ValidationError:    "Check that the submitted text is the full letter and resubmit.",
	errclass.DatabaseError:      "Retry the analysis; the result could not be stored.",
	errclass.ConfigurationError: "Ask an administrator to review the analysis service configuration.",
	errclass.UnknownError:       "Retry the analysis; contact support if the problem persists.",
}

func recommendationsFor(c errclass.Category, bucket SizeBucket) []string {
	recs := make([]string, 0, 3)
	if rec, ok := categoryRecommendations[c]; ok {
		recs = append(recs, rec)
	} else {
		recs = append(recs, categoryRecommendations[errclass.UnknownError])
	}
	if bucket == SizeMinimal || bucket == SizeLimited {
		recs = append(recs, "Make sure the letter includes an explicit opinion such as \"at least as likely as not\" and the medical rationale behind it.")
	}
	recs = append(recs, "Have a qualified representative review the letter manually before filing.")
	return recs
}
