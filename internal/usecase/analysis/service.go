package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/infra/phi"
	"nexus-letter-analyzer/internal/infra/scoring"
	"nexus-letter-analyzer/internal/observability/metrics"
	"nexus-letter-analyzer/internal/repository"
	"nexus-letter-analyzer/internal/resilience/degrade"
	"nexus-letter-analyzer/internal/resilience/guard"
	"nexus-letter-analyzer/internal/resilience/retry"
	"nexus-letter-analyzer/internal/utils/text"
)

// Analyzer reads a redacted letter. Implemented by the llm package.
type Analyzer interface {
	Analyze(ctx context.Context, letter string) (*entity.Findings, error)
	Name() string
}

// Fetcher turns URLs and HTML documents into letter text. Implemented by the fetcher package.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	ExtractText(html string) (string, error)
}

// Input is one analysis request. Exactly one of Text, URL or HTML is used, in that order.
type Input struct {
	Text string
	URL  string
	HTML string
	// CorrelationID ties log lines, metrics exemplars and the stored record together.
	// A UUID is generated when empty.
	CorrelationID string
}

// Result is the outcome of Analyze. Fallback is set when the LLM call degraded.
type Result struct {
	Analysis   *entity.Analysis
	Fallback   *degrade.FallbackResponse
	Redactions map[phi.Kind]int
}

// PaginatedResult is one page of stored analyses.
type PaginatedResult struct {
	Data       []*entity.Analysis
	Pagination pagination.Metadata
}

// Service provides the letter analysis use cases.
type Service struct {
	Repo     repository.AnalysisRepository
	Analyzer Analyzer
	// Guard wraps every LLM call with retry, circuit breaking and optional fallback.
	Guard *guard.Guard
	// Store retries repository writes. Nil writes once.
	Store   *retry.Manager
	Fetcher Fetcher
	Logger  *slog.Logger
	Now     func() time.Time
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Analyze runs one letter through redaction, the guarded LLM call and scoring, and stores
// the result. A degraded LLM call still produces a stored analysis with FallbackApplied set.
func (s *Service) Analyze(ctx context.Context, in Input) (*Result, error) {
	if in.CorrelationID == "" {
		in.CorrelationID = uuid.New().String()
	}
	logger := s.logger().With(slog.String("correlation_id", in.CorrelationID))

	letter, err := s.resolveText(ctx, in)
	if err != nil {
		return nil, err
	}
	letter = text.Normalize(letter)
	if err := entity.ValidateLetterText(letter); err != nil {
		return nil, err
	}

	start := time.Now()
	redacted := phi.Redact(letter)
	recordRedactions(redacted)
	inputChars := text.CountRunes(redacted.Text)

	res, err := guard.Execute(ctx, s.Guard, in.CorrelationID, inputChars, func(ctx context.Context) (*entity.Findings, error) {
		return s.Analyzer.Analyze(ctx, redacted.Text)
	})
	if err != nil {
		metrics.RecordAnalysis(s.Analyzer.Name(), "error", time.Since(start), 0)
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &LLMError{Outcome: res.Kind, Category: res.Category, UserMessage: res.UserMessage, Err: err}
	}

	a := &entity.Analysis{
		ID:             uuid.New().String(),
		CorrelationID:  in.CorrelationID,
		Provider:       s.Analyzer.Name(),
		InputChars:     inputChars,
		RedactionCount: redacted.Total(),
		CreatedAt:      s.now().UTC(),
	}

	outcome := "ok"
	if res.Degraded() {
		outcome = "fallback"
		fb := res.Fallback
		a.FallbackApplied = true
		a.ErrorCategory = res.Category.String()
		a.Scores = entity.ScoreBreakdown{
			MedicalOpinion:     fb.Scores.MedicalOpinion,
			ServiceConnection:  fb.Scores.ServiceConnection,
			MedicalRationale:   fb.Scores.MedicalRationale,
			ProfessionalFormat: fb.Scores.ProfessionalFormat,
			Total:              fb.Scores.Total,
		}
		a.Recommendations = fb.Recommendations
	} else {
		scored := scoring.Score(redacted.Text, res.Value)
		a.Findings = res.Value
		a.Scores = scored.Scores
		a.Recommendations = scored.Recommendations
	}

	if err := s.persist(ctx, in.CorrelationID, a); err != nil {
		return nil, err
	}

	metrics.RecordAnalysis(a.Provider, outcome, time.Since(start), a.Scores.Total)
	logger.Info("analysis stored",
		slog.String("id", a.ID),
		slog.String("outcome", outcome),
		slog.Int("total_score", a.Scores.Total),
		slog.Int("redactions", a.RedactionCount))

	return &Result{Analysis: a, Fallback: res.Fallback, Redactions: redacted.Counts}, nil
}

// AnalyzeURL fetches the letter at url and analyzes it.
func (s *Service) AnalyzeURL(ctx context.Context, url, correlationID string) (*Result, error) {
	return s.Analyze(ctx, Input{URL: url, CorrelationID: correlationID})
}

// AnalyzeHTML strips markup from html and analyzes the remaining text.
func (s *Service) AnalyzeHTML(ctx context.Context, html, correlationID string) (*Result, error) {
	return s.Analyze(ctx, Input{HTML: html, CorrelationID: correlationID})
}

func (s *Service) resolveText(ctx context.Context, in Input) (string, error) {
	switch {
	case in.Text != "":
		return in.Text, nil
	case in.URL != "" || in.HTML != "":
		if s.Fetcher == nil {
			return "", fmt.Errorf("%w: fetching is not configured", ErrFetchFailed)
		}
	default:
		return "", ErrNoInput
	}

	if in.URL != "" {
		start := time.Now()
		letter, err := s.Fetcher.FetchText(ctx, in.URL)
		metrics.RecordContentFetch(err == nil, time.Since(start))
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return letter, nil
	}

	letter, err := s.Fetcher.ExtractText(in.HTML)
	if err != nil {
		return "", &entity.ValidationError{Field: "html", Message: err.Error()}
	}
	return letter, nil
}

func (s *Service) persist(ctx context.Context, correlationID string, a *entity.Analysis) error {
	create := func(ctx context.Context) error {
		start := time.Now()
		err := s.Repo.Create(ctx, a)
		metrics.RecordDBQuery("insert_analysis", time.Since(start))
		return err
	}

	var err error
	if s.Store != nil {
		err = s.Store.Execute(ctx, correlationID, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return nil
}

func recordRedactions(r phi.Result) {
	counts := make(map[string]int, len(r.Counts))
	for k, n := range r.Counts {
		counts[string(k)] = n
	}
	metrics.RecordRedactions(counts)
}

// Get retrieves a stored analysis.
// Returns ErrInvalidAnalysisID if id is not a UUID and ErrAnalysisNotFound if it does not
// exist.
func (s *Service) Get(ctx context.Context, id string) (*entity.Analysis, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidAnalysisID
	}

	a, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	if a == nil {
		return nil, ErrAnalysisNotFound
	}
	return a, nil
}

// List retrieves one page of analyses, newest first.
func (s *Service) List(ctx context.Context, params pagination.Params) (*PaginatedResult, error) {
	var strategy pagination.OffsetStrategy
	q := strategy.CalculateQuery(params)

	total, err := s.Repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}
	pagination.UpdateTotalCount(total)

	start := time.Now()
	analyses, err := s.Repo.List(ctx, q.Offset, q.Limit)
	pagination.RecordDuration("repository", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	return &PaginatedResult{
		Data:       analyses,
		Pagination: strategy.BuildMetadata(params, total),
	}, nil
}

// PurgeOlderThan deletes analyses created before cutoff and returns how many were removed.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, errors.New("purge cutoff must be set")
	}

	purge := func(ctx context.Context) (int64, error) {
		return s.Repo.DeleteOlderThan(ctx, cutoff)
	}

	var (
		n   int64
		err error
	)
	correlationID := "retention-" + uuid.New().String()
	if s.Store != nil {
		n, err = retry.Do(ctx, s.Store, correlationID, purge)
	} else {
		n, err = purge(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("purge analyses: %w", err)
	}

	metrics.RecordAnalysesPurged(n)
	s.logger().Info("analyses purged",
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", n))
	return n, nil
}
