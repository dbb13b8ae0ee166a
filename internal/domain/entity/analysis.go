// Package entity defines the core domain entities and validation logic for the analyzer:
// the stored Analysis of a nexus letter, the LLM Findings it is built from, and the
// score breakdown.
package entity

import "time"

// NexusStrength is the LLM's overall judgement of the letter's nexus opinion.
type NexusStrength string

const (
	NexusStrong                  NexusStrength = "strong"
	NexusModerate                NexusStrength = "moderate"
	NexusWeak                    NexusStrength = "weak"
	NexusNone                    NexusStrength = "none"
	NexusInsufficientInformation NexusStrength = "insufficient_information"
)

// Valid reports whether s is a known strength.
func (s NexusStrength) Valid() bool {
	switch s {
	case NexusStrong, NexusModerate, NexusWeak, NexusNone, NexusInsufficientInformation:
		return true
	}
	return false
}

// Findings is the structured reading of a letter returned by the LLM.
type Findings struct {
	NexusStrength    NexusStrength `json:"nexus_strength"`
	PrimaryCondition string        `json:"primary_condition"`
	ServiceEvent     string        `json:"service_event"`
	OpinionLanguage  string        `json:"opinion_language"`
	RationaleSummary string        `json:"rationale_summary"`
	KeyFindings      []string      `json:"key_findings"`
	Weaknesses       []string      `json:"weaknesses"`
}

// ScoreBreakdown holds the four 0-25 component scores and their 0-100 total.
type ScoreBreakdown struct {
	MedicalOpinion     int `json:"medical_opinion"`
	ServiceConnection  int `json:"service_connection"`
	MedicalRationale   int `json:"medical_rationale"`
	ProfessionalFormat int `json:"professional_format"`
	Total              int `json:"total"`
}

// MaxComponentScore is the maximum of each score component.
const MaxComponentScore = 25

// Sum recomputes Total from the components.
func (s *ScoreBreakdown) Sum() {
	s.Total = s.MedicalOpinion + s.ServiceConnection + s.MedicalRationale + s.ProfessionalFormat
}

// Analysis is a stored analysis of one submitted letter. Letter text is never stored.
type Analysis struct {
	ID              string
	CorrelationID   string
	Provider        string
	InputChars      int
	RedactionCount  int
	Findings        *Findings
	Scores          ScoreBreakdown
	Recommendations []string
	FallbackApplied bool
	// ErrorCategory is set when FallbackApplied is true.
	ErrorCategory string
	CreatedAt     time.Time
}
