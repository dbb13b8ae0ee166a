package repository

import (
	"context"
	"time"

	"nexus-letter-analyzer/internal/domain/entity"
)

// AnalysisRepository stores analyses. Get returns (nil, nil) when no analysis matches.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entity.Analysis) error
	Get(ctx context.Context, id string) (*entity.Analysis, error)
	// List returns one page of analyses, most recent first.
	List(ctx context.Context, offset, limit int) ([]*entity.Analysis, error)
	Count(ctx context.Context) (int64, error)
	// DeleteOlderThan removes analyses created before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
