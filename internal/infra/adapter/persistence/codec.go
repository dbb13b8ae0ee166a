// Package persistence holds the helpers shared by the SQL analysis repositories. Findings,
// scores and recommendations are stored as JSON documents.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"nexus-letter-analyzer/internal/domain/entity"
)

// Columns lists the analyses columns in scan order.
const Columns = `id, correlation_id, provider, input_chars, redaction_count, findings, scores, recommendations, fallback_applied, error_category, created_at`

// Documents are the JSON-encoded columns of an analysis.
type Documents struct {
	Findings        sql.NullString
	Scores          string
	Recommendations string
	ErrorCategory   sql.NullString
}

// Encode marshals the JSON columns of a.
func Encode(a *entity.Analysis) (Documents, error) {
	var docs Documents

	if a.Findings != nil {
		b, err := json.Marshal(a.Findings)
		if err != nil {
			return docs, fmt.Errorf("encode findings: %w", err)
		}
		docs.Findings = sql.NullString{String: string(b), Valid: true}
	}

	scores, err := json.Marshal(a.Scores)
	if err != nil {
		return docs, fmt.Errorf("encode scores: %w", err)
	}
	docs.Scores = string(scores)

	recs := a.Recommendations
	if recs == nil {
		recs = []string{}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return docs, fmt.Errorf("encode recommendations: %w", err)
	}
	docs.Recommendations = string(b)

	if a.ErrorCategory != "" {
		docs.ErrorCategory = sql.NullString{String: a.ErrorCategory, Valid: true}
	}
	return docs, nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Scan reads one analysis row selected with Columns.
func Scan(s Scanner) (*entity.Analysis, error) {
	var (
		a               entity.Analysis
		findings        sql.NullString
		scores          sql.NullString
		recommendations sql.NullString
		errorCategory   sql.NullString
	)
	if err := s.Scan(
		&a.ID, &a.CorrelationID, &a.Provider, &a.InputChars, &a.RedactionCount,
		&findings, &scores, &recommendations, &a.FallbackApplied, &errorCategory, &a.CreatedAt,
	); err != nil {
		return nil, err
	}

	if findings.Valid && findings.String != "" {
		a.Findings = &entity.Findings{}
		if err := json.Unmarshal([]byte(findings.String), a.Findings); err != nil {
			return nil, fmt.Errorf("decode findings of %s: %w", a.ID, err)
		}
	}
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &a.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of %s: %w", a.ID, err)
		}
	}
	if recommendations.Valid && recommendations.String != "" {
		if err := json.Unmarshal([]byte(recommendations.String), &a.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations of %s: %w", a.ID, err)
		}
	}
	a.ErrorCategory = errorCategory.String
	return &a, nil
}
