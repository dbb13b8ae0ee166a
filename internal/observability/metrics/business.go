package metrics

import (
	"time"
)

// RecordAnalysis records a finished analysis. Outcome is "ok", "fallback" or "error".
// Score is only observed for "ok".
func RecordAnalysis(provider, outcome string, duration time.Duration, score int) {
	AnalysesTotal.WithLabelValues(provider, outcome).Inc()
	AnalysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "ok" {
		AnalysisScore.Observe(float64(score))
	}
}

// RecordRedactions adds the per-kind redaction counts of one letter.
func RecordRedactions(counts map[string]int) {
	for kind, n := range counts {
		if n > 0 {
			PHIRedactionsTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// RecordAnalysesPurged records the number of analyses removed by one retention run.
func RecordAnalysesPurged(n int64) {
	if n > 0 {
		AnalysesPurgedTotal.Add(float64(n))
	}
}

// RecordContentFetch records a letter fetch.
func RecordContentFetch(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	ContentFetchAttemptsTotal.WithLabelValues(result).Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_analysis", "list_analyses").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
