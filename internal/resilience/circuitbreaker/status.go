package circuitbreaker

import "time"

// Status is a read-only diagnostic snapshot of a circuit breaker.
type Status struct {
	Name             string     `json:"name"`
	State            string     `json:"state"`
	FailureCount     int        `json:"failure_count"`
	SuccessCount     int        `json:"success_count"`
	LastFailureTime  *time.Time `json:"last_failure_time,omitempty"`
	FailureThreshold int        `json:"failure_threshold"`
	SuccessThreshold int        `json:"success_threshold"`
	TimeoutSeconds   float64    `json:"timeout_seconds"`
}

// Status returns a snapshot of the breaker's state and thresholds.
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st := Status{
		Name:             cb.cfg.Name,
		State:            cb.state.String(),
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		FailureThreshold: cb.cfg.FailureThreshold,
		SuccessThreshold: cb.cfg.SuccessThreshold,
		TimeoutSeconds:   cb.cfg.Timeout.Seconds(),
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		st.LastFailureTime = &t
	}
	return st
}
