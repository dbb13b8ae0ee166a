// Package resilience provides the fault tolerance layer that protects every outbound
// call to the LLM provider.
//
// The subpackages are layered leaves first:
//   - errclass: error taxonomy, retryability and user-facing messages
//   - circuitbreaker: per-dependency CLOSED/OPEN/HALF_OPEN state machine
//   - retry: exponential backoff with category-aware delays and jitter
//   - degrade: deterministic fallback analysis when every attempt fails
//   - guard: composition of the above around an arbitrary operation
//
// Usage Example:
//
//	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig("default"))
//	g := guard.New(retry.NewManager(retry.LLMAPIConfig()),
//	    guard.WithCircuitBreaker(breakers.Get("claude-api")),
//	    guard.WithFallback(degrade.NewManager(nil)))
//
//	res, err := guard.Execute(ctx, g, correlationID, len(text), func(ctx context.Context) (*entity.Findings, error) {
//	    return analyzer.Analyze(ctx, text)
//	})
package resilience
