// Package sqlite provides the SQLite implementation of the analysis repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/infra/adapter/persistence"
	"nexus-letter-analyzer/internal/infra/db"
	"nexus-letter-analyzer/internal/repository"
)

// AnalysisRepo implements the AnalysisRepository interface using SQLite.
type AnalysisRepo struct{ db db.Querier }

// NewAnalysisRepo creates a new SQLite-backed analysis repository.
func NewAnalysisRepo(q db.Querier) repository.AnalysisRepository {
	return &AnalysisRepo{db: q}
}

func (repo *AnalysisRepo) Create(ctx context.Context, a *entity.Analysis) error {
	const query = `
INSERT INTO analyses (` + persistence.Columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	docs, err := persistence.Encode(a)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	_, err = repo.db.ExecContext(ctx, query,
		a.ID, a.CorrelationID, a.Provider, a.InputChars, a.RedactionCount,
		docs.Findings, docs.Scores, docs.Recommendations, a.FallbackApplied, docs.ErrorCategory,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("Create: ExecContext: %w", err)
	}
	return nil
}

func (repo *AnalysisRepo) Get(ctx context.Context, id string) (*entity.Analysis, error) {
	const query = `
SELECT ` + persistence.Columns + `
FROM analyses
WHERE id = ?
LIMIT 1
`
	a, err := persistence.Scan(repo.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Get: QueryRowContext: %w", err)
	}
	return a, nil
}

// List retrieves analyses ordered by creation time (newest first).
func (repo *AnalysisRepo) List(ctx context.Context, offset, limit int) ([]*entity.Analysis, error) {
	const query = `
SELECT ` + persistence.Columns + `
FROM analyses
ORDER BY created_at DESC
LIMIT ? OFFSET ?
`
	rows, err := repo.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	analyses := make([]*entity.Analysis, 0, limit)
	for rows.Next() {
		a, err := persistence.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows.Err: %w", err)
	}
	return analyses, nil
}

// Count returns the number of stored analyses.
func (repo *AnalysisRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM analyses`

	var n int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: QueryRowContext: %w", err)
	}
	return n, nil
}

func (repo *AnalysisRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM analyses WHERE created_at < ?`

	res, err := repo.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: RowsAffected: %w", err)
	}
	return n, nil
}
