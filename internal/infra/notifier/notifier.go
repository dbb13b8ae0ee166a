// Package notifier posts circuit breaker alerts to Slack and Discord webhooks.
//
// Each webhook is rate limited to the provider's documented limit and retries 5xx and
// network failures once. 429 responses wait for the advertised retry-after.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Alert describes one circuit breaker transition.
type Alert struct {
	Service string
	Circuit string
	From    string
	To      string
	At      time.Time
}

// Title is a one-line description such as "llm circuit open".
func (a Alert) Title() string {
	return fmt.Sprintf("%s circuit %s", a.Circuit, a.To)
}

// Detail explains what the transition means for analyses.
func (a Alert) Detail() string {
	switch a.To {
	case "open":
		return fmt.Sprintf("%s: calls through %q fail fast until the reset timeout elapses (was %s).", a.Service, a.Circuit, a.From)
	case "half_open":
		return fmt.Sprintf("%s: probing %q with trial calls.", a.Service, a.Circuit)
	default:
		return fmt.Sprintf("%s: %q recovered (was %s).", a.Service, a.Circuit, a.From)
	}
}

// Notifier sends an alert.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Multi sends every alert to all notifiers and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards alerts.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Alert) error { return nil }
