package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-letter-analyzer/internal/common/pagination"
	"nexus-letter-analyzer/internal/domain/entity"
	"nexus-letter-analyzer/internal/handler/http/requestid"
	"nexus-letter-analyzer/internal/handler/http/respond"
	"nexus-letter-analyzer/internal/infra/fetcher"
	"nexus-letter-analyzer/internal/infra/phi"
	"nexus-letter-analyzer/internal/resilience/degrade"
	"nexus-letter-analyzer/internal/resilience/errclass"
	"nexus-letter-analyzer/internal/resilience/guard"
	analysisUC "nexus-letter-analyzer/internal/usecase/analysis"
)

var createdAt = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type stubService struct {
	gotInput  analysisUC.Input
	gotParams pagination.Params
	result    *analysisUC.Result
	analysis  *entity.Analysis
	page      *analysisUC.PaginatedResult
	err       error
}

func (s *stubService) Analyze(_ context.Context, in analysisUC.Input) (*analysisUC.Result, error) {
	s.gotInput = in
	return s.result, s.err
}

func (s *stubService) Get(context.Context, string) (*entity.Analysis, error) {
	return s.analysis, s.err
}

func (s *stubService) List(_ context.Context, p pagination.Params) (*analysisUC.PaginatedResult, error) {
	s.gotParams = p
	return s.page, s.err
}

func sampleAnalysis() *entity.Analysis {
	return &entity.Analysis{
		ID:             "5b0c3d4e-8f1a-4b2c-9d3e-6f7a8b9c0d1e",
		CorrelationID:  "corr-1",
		Provider:       "claude",
		InputChars:     812,
		RedactionCount: 2,
		Findings: &entity.Findings{
			NexusStrength:    entity.NexusStrong,
			PrimaryCondition: "tinnitus",
		},
		Scores:          entity.ScoreBreakdown{MedicalOpinion: 25, ServiceConnection: 20, MedicalRationale: 15, ProfessionalFormat: 10, Total: 70},
		Recommendations: []string{"Cite supporting literature."},
		CreatedAt:       createdAt,
	}
}

func newMux(svc Service) *http.ServeMux {
	mux := http.NewServeMux()
	Register(mux, svc, pagination.DefaultConfig(), nil)
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(requestid.WithRequestID(req.Context(), "corr-1"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) respond.ErrorBody {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCreate_Success(t *testing.T) {
	svc := &stubService{result: &analysisUC.Result{
		Analysis:   sampleAnalysis(),
		Redactions: map[phi.Kind]int{phi.KindSSN: 1, phi.KindName: 1},
	}}

	rr := do(t, newMux(svc), http.MethodPost, "/analyses", `{"text":"Dear Sir"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/analyses/5b0c3d4e-8f1a-4b2c-9d3e-6f7a8b9c0d1e", rr.Header().Get("Location"))
	assert.Equal(t, analysisUC.Input{Text: "Dear Sir", CorrelationID: "corr-1"}, svc.gotInput)

	var got CreateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	want := CreateResponse{
		DTO:        toDTO(sampleAnalysis()),
		Redactions: map[string]int{"SSN": 1, "NAME": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_Fallback(t *testing.T) {
	a := sampleAnalysis()
	a.Findings = nil
	a.FallbackApplied = true
	a.ErrorCategory = string(errclass.APITimeout)
	fb := &degrade.FallbackResponse{
		FallbackApplied: true,
		Status:          "degraded",
		ErrorContext:    degrade.ErrorSummary{Category: errclass.APITimeout, UserMessage: "The analysis service is responding slowly."},
	}
	svc := &stubService{result: &analysisUC.Result{Analysis: a, Fallback: fb}}

	rr := do(t, newMux(svc), http.MethodPost, "/analyses", `{"url":"https://example.com/letter"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, true, got["fallback_applied"])
	assert.Equal(t, "api_timeout", got["error_category"])
	assert.NotContains(t, got, "findings")
	require.Contains(t, got, "fallback")
	assert.Equal(t, "degraded", got["fallback"].(map[string]any)["status"])
}

func TestCreate_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `text=hello`},
		{"unknown field", `{"letter":"hi"}`},
		{"array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rr := do(t, newMux(svc), http.MethodPost, "/analyses", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, "request body must be a JSON object with text, url or html", body.Error)
			assert.Equal(t, "corr-1", body.CorrelationID)
			assert.Empty(t, svc.gotInput.CorrelationID, "service must not be called")
		})
	}
}

func TestCreate_BodyTooLarge(t *testing.T) {
	svc := &stubService{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 16)
		CreateHandler{Svc: svc}.ServeHTTP(w, r)
	})

	rr := do(t, h, http.MethodPost, "/analyses", `{"text":"`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestCreate_ErrorMapping(t *testing.T) {
	llmErr := func(kind guard.OutcomeKind, cat errclass.Category) error {
		return &analysisUC.LLMError{Outcome: kind, Category: cat, UserMessage: "msg for " + string(cat), Err: errors.New("upstream")}
	}

	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantMsg      string
		wantCategory string
	}{
		{"circuit open", llmErr(guard.OutcomeCircuitOpen, errclass.APIServerError), http.StatusServiceUnavailable, "msg for api_server_error", "api_server_error"},
		{"retries exhausted", llmErr(guard.OutcomeRetryExhausted, errclass.APITimeout), http.StatusServiceUnavailable, "msg for api_timeout", "api_timeout"},
		{"parse failure", llmErr(guard.OutcomeTerminal, errclass.ParsingError), http.StatusBadGateway, "msg for parsing_error", "parsing_error"},
		{"provider rejected input", llmErr(guard.OutcomeTerminal, errclass.ValidationError), http.StatusBadRequest, "msg for validation_error", "validation_error"},
		{"bad api key", llmErr(guard.OutcomeTerminal, errclass.APIAuthentication), http.StatusInternalServerError, "msg for api_authentication", "api_authentication"},
		{"no input", analysisUC.ErrNoInput, http.StatusBadRequest, "one of text, url or html is required", ""},
		{"too short", fmt.Errorf("analyze: %w", &entity.ValidationError{Field: "text", Message: "letter text must be at least 50 characters"}), http.StatusBadRequest, "letter text must be at least 50 characters", ""},
		{"private url", fmt.Errorf("%w: %w", analysisUC.ErrFetchFailed, fetcher.ErrPrivateIP), http.StatusBadRequest, "url is invalid or not allowed", ""},
		{"fetch failed", fmt.Errorf("%w: %w", analysisUC.ErrFetchFailed, fetcher.ErrTimeout), http.StatusBadGateway, "could not retrieve the letter from url", ""},
		{"store failed", errors.New("persist analysis: database is locked"), http.StatusInternalServerError, "internal server error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newMux(&stubService{err: tt.err}), http.MethodPost, "/analyses", `{"text":"x"}`)

			assert.Equal(t, tt.wantCode, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Equal(t, tt.wantCategory, body.Category)
			assert.Equal(t, "corr-1", body.CorrelationID)
		})
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		svc      *stubService
		wantCode int
	}{
		{"found", &stubService{analysis: sampleAnalysis()}, http.StatusOK},
		{"not found", &stubService{err: analysisUC.ErrAnalysisNotFound}, http.StatusNotFound},
		{"bad id", &stubService{err: analysisUC.ErrInvalidAnalysisID}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newMux(tt.svc), http.MethodGet, "/analyses/5b0c3d4e-8f1a-4b2c-9d3e-6f7a8b9c0d1e", "")
			assert.Equal(t, tt.wantCode, rr.Code)

			if tt.wantCode == http.StatusOK {
				var got DTO
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
				assert.Equal(t, toDTO(sampleAnalysis()), got)
			}
		})
	}
}

func TestList(t *testing.T) {
	svc := &stubService{page: &analysisUC.PaginatedResult{
		Data:       []*entity.Analysis{sampleAnalysis()},
		Pagination: pagination.Metadata{Total: 41, Page: 3, Limit: 20, TotalPages: 3},
	}}

	rr := do(t, newMux(svc), http.MethodGet, "/analyses?page=3&limit=20", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, pagination.Params{Page: 3, Limit: 20}, svc.gotParams)

	var got pagination.Response[DTO]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got.Data, 1)
	assert.Equal(t, int64(41), got.Pagination.Total)
	assert.Equal(t, 3, got.Pagination.TotalPages)
}

func TestList_EmptyIsArray(t *testing.T) {
	svc := &stubService{page: &analysisUC.PaginatedResult{Pagination: pagination.Metadata{Page: 1, Limit: 20}}}

	rr := do(t, newMux(svc), http.MethodGet, "/analyses", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"data":[]`)
	assert.Equal(t, pagination.Params{Page: 1, Limit: 20}, svc.gotParams)
}

func TestList_InvalidParams(t *testing.T) {
	for _, q := range []string{"page=0", "limit=1000", "page=abc"} {
		t.Run(q, func(t *testing.T) {
			rr := do(t, newMux(&stubService{}), http.MethodGet, "/analyses?"+q, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestList_ServiceError(t *testing.T) {
	rr := do(t, newMux(&stubService{err: errors.New("boom")}), http.MethodGet, "/analyses", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
