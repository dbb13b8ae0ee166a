package analysis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/infra/phi"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
	"nexus-letter-analyzer/internal/resilience/degrade"
	"nexus-letter-analyzer/internal/resilience/errclass"
	"nexus-letter-analyzer/internal/resilience/guard"
	"nexus-letter-analyzer/internal/resilience/retry"
	"nexus-letter-analyzer/internal/usecase/analysis"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

const letter = `Dr. Jane Smith, MD
Board Certified Internal Medicine

Re: Veteran John Doe, SSN 123-45-6789

I have reviewed the veteran's service treatment records and VA claims file. It is at least
as likely as not (50% or greater probability) that the veteran's obstructive sleep apnea is
caused by his in-service exposure to burn pits in Iraq. The medical literature supports
this association because particulate inhalation causes chronic airway inflammation.

Sincerely,
Jane Smith, MD
Date: March 3, 2024`

/* ========================================
 * Stubs
 * ======================================== */

type stubRepo struct {
	mu        sync.Mutex
	created   []*entity.Analysis
	byID      map[string]*entity.Analysis
	createErr []error
	listed    [2]int
	count     int64
	purged    int64
	purgeErr  error
}

func (r *stubRepo) Create(_ context.Context, a *entity.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErr) > 0 {
		err := r.createErr[0]
		r.createErr = r.createErr[1:]
		if err != nil {
			return err
		}
	}
	r.created = append(r.created, a)
	return nil
}

func (r *stubRepo) Get(_ context.Context, id string) (*entity.Analysis, error) {
	return r.byID[id], nil
}

func (r *stubRepo) List(_ context.Context, offset, limit int) ([]*entity.Analysis, error) {
	r.listed = [2]int{offset, limit}
	return r.created, nil
}

func (r *stubRepo) Count(context.Context) (int64, error) { return r.count, nil }

func (r *stubRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return r.purged, r.purgeErr
}

type stubAnalyzer struct {
	findings *entity.Findings
	err      error
	calls    int
	seen     string
}

func (a *stubAnalyzer) Analyze(_ context.Context, letter string) (*entity.Findings, error) {
	a.calls++
	a.seen = letter
	return a.findings, a.err
}

func (a *stubAnalyzer) Name() string { return "stub" }

type stubFetcher struct {
	text string
	err  error
}

func (f stubFetcher) FetchText(context.Context, string) (string, error) { return f.text, f.err }
func (f stubFetcher) ExtractText(string) (string, error)                { return f.text, f.err }

func strongFindings() *entity.Findings {
	return &entity.Findings{
		NexusStrength:    entity.NexusStrong,
		PrimaryCondition: "obstructive sleep apnea",
		ServiceEvent:     "burn pit exposure",
		OpinionLanguage:  "at least as likely as not",
		RationaleSummary: "particulate inhalation causes airway inflammation",
	}
}

func newService(repo *stubRepo, analyzer *stubAnalyzer, opts ...guard.Option) *analysis.Service {
	rm := retry.NewManager(retry.DefaultConfig(), retry.WithLogger(quiet), retry.WithSleep(noSleep))
	store := retry.NewManager(retry.DBConfig(), retry.WithLogger(quiet), retry.WithSleep(noSleep))
	return &analysis.Service{
		Repo:     repo,
		Analyzer: analyzer,
		Guard:    guard.New(rm, append([]guard.Option{guard.WithLogger(quiet)}, opts...)...),
		Store:    store,
		Logger:   quiet,
		Now:      func() time.Time { return time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC) },
	}
}

/* ========================================
 * Analyze
 * ======================================== */

func TestAnalyze_ScoresAndStores(t *testing.T) {
	repo := &stubRepo{}
	analyzer := &stubAnalyzer{findings: strongFindings()}
	svc := newService(repo, analyzer)

	res, err := svc.Analyze(context.Background(), analysis.Input{Text: letter, CorrelationID: "corr-1"})
	require.NoError(t, err)

	a := res.Analysis
	assert.Nil(t, res.Fallback)
	assert.False(t, a.FallbackApplied)
	assert.Equal(t, "corr-1", a.CorrelationID)
	assert.Equal(t, "stub", a.Provider)
	assert.Equal(t, strongFindings(), a.Findings)
	assert.Greater(t, a.Scores.Total, 50)
	assert.Equal(t, time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC), a.CreatedAt)
	_, err = uuid.Parse(a.ID)
	assert.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Same(t, a, repo.created[0])
}

func TestAnalyze_RedactsBeforeLLM(t *testing.T) {
	analyzer := &stubAnalyzer{findings: strongFindings()}
	svc := newService(&stubRepo{}, analyzer)

	res, err := svc.Analyze(context.Background(), analysis.Input{Text: letter})
	require.NoError(t, err)

	assert.NotContains(t, analyzer.seen, "123-45-6789")
	assert.Contains(t, analyzer.seen, phi.Token(phi.KindSSN))
	assert.Equal(t, 1, res.Redactions[phi.KindSSN])
	assert.GreaterOrEqual(t, res.Analysis.RedactionCount, 1)
	assert.NotEmpty(t, res.Analysis.CorrelationID, "a correlation ID is generated when absent")
}

func TestAnalyze_RejectsInvalidText(t *testing.T) {
	analyzer := &stubAnalyzer{findings: strongFindings()}
	svc := newService(&stubRepo{}, analyzer)

	_, err := svc.Analyze(context.Background(), analysis.Input{Text: "too short"})
	require.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.Analyze(context.Background(), analysis.Input{})
	require.ErrorIs(t, err, analysis.ErrNoInput)
	assert.Zero(t, analyzer.calls)
}

func TestAnalyze_FallbackIsStored(t *testing.T) {
	repo := &stubRepo{}
	analyzer := &stubAnalyzer{err: errors.New("503 Service Unavailable")}
	svc := newService(repo, analyzer, guard.WithFallback(degrade.NewManager(quiet)))

	res, err := svc.Analyze(context.Background(), analysis.Input{Text: letter, CorrelationID: "corr-fb"})
	require.NoError(t, err)

	require.NotNil(t, res.Fallback)
	assert.Equal(t, 3, analyzer.calls)
	a := res.Analysis
	assert.True(t, a.FallbackApplied)
	assert.Equal(t, errclass.APIServerError.String(), a.ErrorCategory)
	assert.Nil(t, a.Findings)
	assert.Equal(t, res.Fallback.Scores.Total, a.Scores.Total)
	assert.Equal(t, res.Fallback.Recommendations, a.Recommendations)
	assert.Equal(t, "corr-fb", res.Fallback.ErrorContext.CorrelationID)
	require.Len(t, repo.created, 1)
}

func TestAnalyze_FailureWithoutFallback(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		breaker         bool
		wantOutcome     guard.OutcomeKind
		wantUnavailable bool
	}{
		{name: "retries exhausted", err: errors.New("Request timeout"), wantOutcome: guard.OutcomeRetryExhausted, wantUnavailable: true},
		{name: "auth failure", err: errors.New("401 Unauthorized"), wantOutcome: guard.OutcomeTerminal},
		{name: "circuit opens", err: errors.New("502 Bad Gateway"), breaker: true, wantOutcome: guard.OutcomeCircuitOpen, wantUnavailable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			var opts []guard.Option
			if tt.breaker {
				opts = append(opts, guard.WithCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
					Name: "llm", FailureThreshold: 1, Timeout: time.Minute, SuccessThreshold: 1,
				})))
			}
			svc := newService(repo, &stubAnalyzer{err: tt.err}, opts...)

			_, err := svc.Analyze(context.Background(), analysis.Input{Text: letter})

			var llmErr *analysis.LLMError
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantOutcome, llmErr.Outcome)
			assert.Equal(t, tt.wantUnavailable, llmErr.Unavailable())
			assert.NotEmpty(t, llmErr.UserMessage)
			assert.Empty(t, repo.created)
		})
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newService(&stubRepo{}, &stubAnalyzer{findings: strongFindings()}, guard.WithFallback(degrade.NewManager(quiet)))

	_, err := svc.Analyze(ctx, analysis.Input{Text: letter})
	require.ErrorIs(t, err, context.Canceled)

	var llmErr *analysis.LLMError
	assert.False(t, errors.As(err, &llmErr))
}

func TestAnalyze_RetriesTransientStoreFailures(t *testing.T) {
	repo := &stubRepo{createErr: []error{errors.New("database is locked"), nil}}
	svc := newService(repo, &stubAnalyzer{findings: strongFindings()})

	_, err := svc.Analyze(context.Background(), analysis.Input{Text: letter})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestAnalyze_URLAndHTML(t *testing.T) {
	analyzer := &stubAnalyzer{findings: strongFindings()}
	svc := newService(&stubRepo{}, analyzer)
	svc.Fetcher = stubFetcher{text: letter}

	res, err := svc.AnalyzeURL(context.Background(), "https://example.com/letter", "corr-url")
	require.NoError(t, err)
	assert.Equal(t, "corr-url", res.Analysis.CorrelationID)
	_, err = svc.AnalyzeHTML(context.Background(), "<p>letter</p>", "")
	require.NoError(t, err)
	assert.Equal(t, 2, analyzer.calls)

	svc.Fetcher = stubFetcher{err: errors.New("HTTP 404: Not Found")}
	_, err = svc.Analyze(context.Background(), analysis.Input{URL: "https://example.com/missing"})
	require.ErrorIs(t, err, analysis.ErrFetchFailed)

	svc.Fetcher = nil
	_, err = svc.Analyze(context.Background(), analysis.Input{URL: "https://example.com/letter"})
	require.ErrorIs(t, err, analysis.ErrFetchFailed)
}

/* ========================================
 * Get / List / Purge
 * ======================================== */

func TestGet(t *testing.T) {
	id := uuid.New().String()
	stored := &entity.Analysis{ID: id}
	svc := newService(&stubRepo{byID: map[string]*entity.Analysis{id: stored}}, &stubAnalyzer{})

	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, stored, got)

	_, err = svc.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, analysis.ErrInvalidAnalysisID)

	_, err = svc.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, analysis.ErrAnalysisNotFound)
}

func TestList(t *testing.T) {
	repo := &stubRepo{count: 45, created: []*entity.Analysis{{ID: "a"}, {ID: "b"}}}
	svc := newService(repo, &stubAnalyzer{})

	res, err := svc.List(context.Background(), pagination.Params{Page: 3, Limit: 20})
	require.NoError(t, err)

	assert.Equal(t, [2]int{40, 20}, repo.listed)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, pagination.Metadata{Total: 45, Page: 3, Limit: 20, TotalPages: 3}, res.Pagination)
}

func TestPurgeOlderThan(t *testing.T) {
	repo := &stubRepo{purged: 7}
	svc := newService(repo, &stubAnalyzer{})

	n, err := svc.PurgeOlderThan(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = svc.PurgeOlderThan(context.Background(), time.Time{})
	require.Error(t, err)

	repo.purgeErr = errors.New("disk I/O error: permission denied")
	_, err = svc.PurgeOlderThan(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "purge analyses"))
}
