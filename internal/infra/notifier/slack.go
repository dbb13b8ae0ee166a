package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Slack posts alerts to an Incoming Webhook using Block Kit.
type Slack struct {
	hook *webhook
}

// NewSlack creates a Slack notifier limited to one message per second.
func NewSlack(webhookURL string, timeout time.Duration, logger *slog.Logger) *Slack {
	return &Slack{hook: newWebhook("slack", webhookURL, timeout, rate.Limit(1), 1, logger)}
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func slackMessage(a Alert) slackPayload {
	return slackPayload{
		Text: a.Title(),
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("%s *%s*\n%s", slackEmoji(a.To), a.Title(), a.Detail())}},
			{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: a.At.UTC().Format(time.RFC3339)}}},
		},
	}
}

func slackEmoji(state string) string {
	switch state {
	case "open":
		return ":red_circle:"
	case "half_open":
		return ":large_yellow_circle:"
	default:
		return ":large_green_circle:"
	}
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, alert Alert) error {
	return s.hook.post(ctx, slackMessage(alert))
}
