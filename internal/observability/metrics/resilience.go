package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resilience implements resilience.Metrics on Prometheus. Counters and timers are keyed by
// the event name. The correlation id is attached as an exemplar, never as a label.
type Resilience struct {
	events    *prometheus.CounterVec
	durations *prometheus.HistogramVec
	breakers  *prometheus.GaugeVec
}

// NewResilience creates the collectors and registers them on reg.
func NewResilience(reg prometheus.Registerer) (*Resilience, error) {
	r := &Resilience{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_events_total",
			Help: "Retry, circuit breaker and fallback events",
		}, []string{"event"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resilience_duration_seconds",
			Help:    "Duration of retried and guarded operations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		breakers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		}, []string{"name"}),
	}
	for _, c := range []prometheus.Collector{r.events, r.durations, r.breakers} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// IncrementCounter implements resilience.Metrics.
func (r *Resilience) IncrementCounter(name string, value float64, correlationID string) {
	c := r.events.WithLabelValues(name)
	if ea, ok := c.(prometheus.ExemplarAdder); ok && correlationID != "" {
		ea.AddWithExemplar(value, exemplar(correlationID))
		return
	}
	c.Add(value)
}

// RecordTimer implements resilience.Metrics.
func (r *Resilience) RecordTimer(name string, d time.Duration, correlationID string) {
	o := r.durations.WithLabelValues(name)
	if eo, ok := o.(prometheus.ExemplarObserver); ok && correlationID != "" {
		eo.ObserveWithExemplar(d.Seconds(), exemplar(correlationID))
		return
	}
	o.Observe(d.Seconds())
}

// SetCircuitState records the state of the named breaker. State values follow
// circuitbreaker.State.
func (r *Resilience) SetCircuitState(name string, state int) {
	r.breakers.WithLabelValues(name).Set(float64(state))
}

// exemplar label sets are capped at 128 runes.
func exemplar(correlationID string) prometheus.Labels {
	if len(correlationID) > 100 {
		correlationID = correlationID[:100]
	}
	return prometheus.Labels{"correlation_id": correlationID}
}
