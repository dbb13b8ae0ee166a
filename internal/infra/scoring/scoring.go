// Package scoring rates a nexus letter with hand-written heuristics over the redacted text and
// the LLM findings. Each of the four components is scored 0-25 by adding and subtracting
// points for markers found in the letter, then clamping.
package scoring

import (
	"regexp"
	"sort"
	"strings"

	"nexus-letter-analyzer/internal/domain/entity"
)

// Component names a score component.
type Component string

const (
	MedicalOpinion     Component = "medical_opinion"
	ServiceConnection  Component = "service_connection"
	MedicalRationale   Component = "medical_rationale"
	ProfessionalFormat Component = "professional_format"
)

// RecommendBelow is the component score under which a recommendation is emitted.
const RecommendBelow = 15

// Result is the outcome of Score.
type Result struct {
	Scores          entity.ScoreBreakdown
	Recommendations []string
}

var (
	probabilityPhrases = []string{
		"at least as likely as not",
		"more likely than not",
		"50% or greater",
		"50 percent or greater",
		"is due to",
		"was caused by",
	}
	speculativePhrases = []string{"possibly", "could be", "might be", "may be related", "cannot rule out", "unclear"}

	serviceMarkers = []string{"military service", "active duty", "in-service", "in service", "deployment", "deployed", "service treatment record", "discharge", "combat"}

	rationaleMarkers = []string{"because", "rationale", "based on", "medical literature", "studies", "peer-reviewed", "reviewed the", "c-file", "claims file", "service treatment records", "examination", "history"}

	credentialRe = regexp.MustCompile(`\b(?:M\.?D\.?|D\.?O\.?|Ph\.?D\.?|Psy\.?D\.?|N\.?P\.?|PA-C|board[- ]certified)\b`)
	signatureRe  = regexp.MustCompile(`(?i)\b(?:sincerely|respectfully|signed|signature)\b|/s/`)
	dateRe       = regexp.MustCompile(`(?i)\b(?:\d{1,2}/\d{1,2}/\d{2,4}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})\b`)
	licenseRe    = regexp.MustCompile(`(?i)\b(?:license|licence|NPI|DEA)\b`)
)

// Score rates letter. Findings may be nil when the LLM produced nothing usable; only the
// text heuristics apply then.
func Score(letter string, f *entity.Findings) Result {
	lower := strings.ToLower(letter)

	s := entity.ScoreBreakdown{
		MedicalOpinion:     scoreOpinion(lower, f),
		ServiceConnection:  scoreService(lower, f),
		MedicalRationale:   scoreRationale(lower, f),
		ProfessionalFormat: scoreFormat(letter),
	}
	s.Sum()

	return Result{Scores: s, Recommendations: Recommend(s)}
}

func scoreOpinion(lower string, f *entity.Findings) int {
	score := 0
	if containsAny(lower, probabilityPhrases) > 0 {
		score += 15
	}
	score -= 3 * containsAny(lower, speculativePhrases)
	if f != nil {
		switch f.NexusStrength {
		case entity.NexusStrong:
			score += 10
		case entity.NexusModerate:
			score += 6
		case entity.NexusWeak:
			score += 2
		}
	}
	return clamp(score)
}

func scoreService(lower string, f *entity.Findings) int {
	score := 5 * containsAny(lower, serviceMarkers)
	if score > 15 {
		score = 15
	}
	if f != nil {
		if f.ServiceEvent != "" {
			score += 5
		}
		if f.PrimaryCondition != "" {
			score += 5
		}
	}
	return clamp(score)
}

func scoreRationale(lower string, f *entity.Findings) int {
	score := 4 * containsAny(lower, rationaleMarkers)
	if score > 20 {
		score = 20
	}
	if f != nil {
		if len(f.KeyFindings) >= 2 {
			score += 5
		}
		penalty := 2 * len(f.Weaknesses)
		if penalty > 6 {
			penalty = 6
		}
		score -= penalty
	}
	return clamp(score)
}

func scoreFormat(letter string) int {
	score := 0
	if credentialRe.MatchString(letter) {
		score += 7
	}
	if signatureRe.MatchString(letter) {
		score += 6
	}
	if dateRe.MatchString(letter) {
		score += 6
	}
	if licenseRe.MatchString(letter) {
		score += 6
	}
	return clamp(score)
}

var advice = map[Component]string{
	MedicalOpinion:     "State the opinion with VA probability language such as \"at least as likely as not (50% or greater probability)\".",
	ServiceConnection:  "Name the specific in-service event, injury or exposure and link it explicitly to the diagnosed condition.",
	MedicalRationale:   "Explain the medical reasoning and cite the records reviewed and any supporting medical literature.",
	ProfessionalFormat: "Include the provider's credentials, license number, signature and the date on letterhead.",
}

// Recommend returns advice for every component scoring under RecommendBelow, weakest first.
func Recommend(s entity.ScoreBreakdown) []string {
	type scored struct {
		c     Component
		score int
	}
	all := []scored{
		{MedicalOpinion, s.MedicalOpinion},
		{ServiceConnection, s.ServiceConnection},
		{MedicalRationale, s.MedicalRationale},
		{ProfessionalFormat, s.ProfessionalFormat},
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score < all[j].score })

	recs := []string{}
	for _, sc := range all {
		if sc.score < RecommendBelow {
			recs = append(recs, advice[sc.c])
		}
	}
	return recs
}

func containsAny(s string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			n++
		}
	}
	return n
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > entity.MaxComponentScore {
		return entity.MaxComponentScore
	}
	return score
}
