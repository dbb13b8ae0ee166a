package llm

import (
	"context"
	"errors"

	"nexus-letter-analyzer/internal/domain/entity"
)

// ProviderNoop is the Name of the disabled analyzer.
const ProviderNoop = "noop"

// ErrNotConfigured is returned by Noop.
var ErrNotConfigured = errors.New("llm provider not configured")

// Noop is the analyzer used when no provider is configured. Every call fails with a
// configuration error, which the resilience layer treats as terminal.
type Noop struct{}

// NewNoop creates a Noop analyzer.
func NewNoop() *Noop { return &Noop{} }

// Name implements Analyzer.
func (*Noop) Name() string { return ProviderNoop }

// Analyze implements Analyzer.
func (*Noop) Analyze(context.Context, string) (*entity.Findings, error) {
	return nil, ErrNotConfigured
}
