// Command analyze scores nexus letters from files.
//
//	analyze [-json] [-concurrency N] letter.txt [letter2.html ...]
//
// Files ending in .html or .htm are stripped of markup first; "-" reads standard input.
// Every file runs through the same LLM circuit breaker, so an outage trips it once for the
// whole batch. Results are stored like API submissions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"nexus-letter-analyzer/internal/app"
	"nexus-letter-analyzer/internal/config"
	"nexus-letter-analyzer/internal/observability/logging"
	"nexus-letter-analyzer/internal/resilience/circuitbreaker"
	"nexus-letter-analyzer/internal/usecase/analysis"
)

// letterAnalyzer is the part of analysis.Service the command uses.
type letterAnalyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (*analysis.Result, error)
}

// options are the parsed command-line flags.
type options struct {
	JSON        bool
	Concurrency int
	Files       []string
}

// fileResult is one line of -json output.
type fileResult struct {
	File            string   `json:"file"`
	CorrelationID   string   `json:"correlation_id"`
	ID              string   `json:"id,omitempty"`
	Total           int      `json:"total,omitempty"`
	FallbackApplied bool     `json:"fallback_applied,omitempty"`
	ErrorCategory   string   `json:"error_category,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Error           string   `json:"error,omitempty"`

	result *analysis.Result
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	logger := logging.NewTextLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}

	failed := run(ctx, opts, application.Analyses, os.Stdin, os.Stdout)
	printBreakers(os.Stderr, application.Breakers.Statuses())

	stop()
	if err := application.Close(); err != nil {
		logger.Error("failed to close database", slog.Any("error", err))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.BoolVar(&opts.JSON, "json", false, "print one JSON object per file")
	fs.IntVar(&opts.Concurrency, "concurrency", 4, "number of letters analyzed at once")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: analyze [-json] [-concurrency N] file...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.Files = fs.Args()
	if len(opts.Files) == 0 {
		fs.Usage()
		return options{}, errors.New("no files given")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return opts, nil
}

// run analyzes every file and writes the results in argument order. It returns the number
// of files that failed.
func run(ctx context.Context, opts options, svc letterAnalyzer, stdin io.Reader, stdout io.Writer) int {
	results := make([]fileResult, len(opts.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, file := range opts.Files {
		g.Go(func() error {
			results[i] = analyzeFile(gctx, svc, file, stdin)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	enc := json.NewEncoder(stdout)
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		if opts.JSON {
			_ = enc.Encode(r)
			continue
		}
		printResult(stdout, r)
	}
	return failed
}

func analyzeFile(ctx context.Context, svc letterAnalyzer, file string, stdin io.Reader) fileResult {
	r := fileResult{File: file, CorrelationID: uuid.New().String()}

	data, err := readInput(file, stdin)
	if err != nil {
		r.Error = err.Error()
		return r
	}

	in := analysis.Input{CorrelationID: r.CorrelationID}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".html", ".htm":
		in.HTML = string(data)
	default:
		in.Text = string(data)
	}

	res, err := svc.Analyze(ctx, in)
	if err != nil {
		var llmErr *analysis.LLMError
		if errors.As(err, &llmErr) {
			r.ErrorCategory = llmErr.Category.String()
			r.Error = llmErr.UserMessage
		} else {
			r.Error = err.Error()
		}
		return r
	}

	a := res.Analysis
	r.ID = a.ID
	r.Total = a.Scores.Total
	r.FallbackApplied = a.FallbackApplied
	r.ErrorCategory = a.ErrorCategory
	r.Recommendations = a.Recommendations
	r.result = res
	return r
}

func readInput(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	// #nosec G304 -- the operator names the files to analyze
	return os.ReadFile(file)
}

func printResult(w io.Writer, r fileResult) {
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "%s: error: %s\n", r.File, r.Error)
		return
	}
	s := r.result.Analysis.Scores
	_, _ = fmt.Fprintf(w, "%s: %d/100 (opinion %d, service %d, rationale %d, format %d)",
		r.File, s.Total, s.MedicalOpinion, s.ServiceConnection, s.MedicalRationale, s.ProfessionalFormat)
	if r.FallbackApplied {
		_, _ = fmt.Fprintf(w, " [fallback: %s]", r.ErrorCategory)
	}
	_, _ = fmt.Fprintln(w)
	for _, rec := range r.Recommendations {
		_, _ = fmt.Fprintf(w, "  - %s\n", rec)
	}
}

func printBreakers(w io.Writer, statuses []circuitbreaker.Status) {
	_, _ = fmt.Fprintln(w, "circuit breakers:")
	for _, st := range statuses {
		_, _ = fmt.Fprintf(w, "  %s: %s (failures %d/%d)\n", st.Name, st.State, st.FailureCount, st.FailureThreshold)
	}
}
