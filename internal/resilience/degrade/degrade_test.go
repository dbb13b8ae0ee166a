package degrade

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-letter-analyzer/internal/resilience/errclass"
)

func newTestManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleContext() errclass.ErrorContext {
	c := errclass.NewClassifier()
	return errclass.ErrorContext{
		Category:      errclass.APITimeout,
		Attempt:       3,
		TotalAttempts: 3,
		ElapsedMS:     4500,
		CorrelationID: "corr-42",
		UserMessage:   c.UserMessage(errclass.APITimeout, 3),
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		size int
		want SizeBucket
	}{
		{-1, SizeMinimal},
		{0, SizeMinimal},
		{499, SizeMinimal},
		{500, SizeLimited},
		{1999, SizeLimited},
		{2000, SizeModerate},
		{4999, SizeModerate},
		{5000, SizeSubstantial},
		{100000, SizeSubstantial},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketFor(tt.size), "size %d", tt.size)
	}
}

func TestCreateFallbackResponse_Deterministic(t *testing.T) {
	m := newTestManager()
	ec := sampleContext()

	first, err := json.Marshal(m.CreateFallbackResponse(ec, 1200))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(m.CreateFallbackResponse(ec, 1200))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestCreateFallbackResponse_EmbedsErrorContext(t *testing.T) {
	m := newTestManager()
	ec := sampleContext()

	resp := m.CreateFallbackResponse(ec, 3000)

	assert.True(t, resp.FallbackApplied)
	assert.Equal(t, "insufficient_information", resp.NexusStrength)
	want := ErrorSummary{
		Category:      errclass.APITimeout,
		AttemptNumber: 3,
		TotalAttempts: 3,
		ElapsedMS:     4500,
		CorrelationID: "corr-42",
		UserMessage:   ec.UserMessage,
	}
	if diff := cmp.Diff(want, resp.ErrorContext); diff != "" {
		t.Errorf("error context mismatch (-want +got):\n%s", diff)
	}

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fallback_applied":true`)
	assert.Contains(t, string(raw), `"correlation_id":"corr-42"`)
}

func TestCreateFallbackResponse_ScoresRiseWithSize(t *testing.T) {
	m := newTestManager()
	ec := sampleContext()

	prev := -1
	for _, size := range []int{100, 1000, 3000, 8000} {
		resp := m.CreateFallbackResponse(ec, size)
		s := resp.Scores
		assert.Equal(t, s.MedicalOpinion+s.ServiceConnection+s.MedicalRationale+s.ProfessionalFormat, s.Total)
		assert.Greater(t, s.Total, prev, "size %d", size)
		assert.LessOrEqual(t, s.Total, 50)
		prev = s.Total
	}
}

func TestCreateFallbackResponse_Recommendations(t *testing.T) {
	m := newTestManager()

	for _, cat := range errclass.All() {
		ec := errclass.ErrorContext{Category: cat}
		resp := m.CreateFallbackResponse(ec, 6000)
		require.NotEmpty(t, resp.Recommendations, "category %s", cat)
		assert.Equal(t, categoryRecommendations[cat], resp.Recommendations[0])
	}

	short := m.CreateFallbackResponse(errclass.ErrorContext{Category: errclass.APIServerError}, 10)
	long := m.CreateFallbackResponse(errclass.ErrorContext{Category: errclass.APIServerError}, 6000)
	assert.Greater(t, len(short.Recommendations), len(long.Recommendations))

	unknown := m.CreateFallbackResponse(errclass.ErrorContext{Category: "bogus"}, 6000)
	assert.Equal(t, categoryRecommendations[errclass.UnknownError], unknown.Recommendations[0])
}
