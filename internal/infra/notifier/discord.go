package notifier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Discord embed colors.
const (
	colorRed    = 0xE74C3C
	colorYellow = 0xF1C40F
	colorGreen  = 0x2ECC71
)

// Discord posts alerts to a webhook as embeds.
type Discord struct {
	hook *webhook
}

// NewDiscord creates a Discord notifier limited to 30 messages per minute.
func NewDiscord(webhookURL string, timeout time.Duration, logger *slog.Logger) *Discord {
	return &Discord{hook: newWebhook("discord", webhookURL, timeout, rate.Limit(0.5), 3, logger)}
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Footer      discordFooter `json:"footer"`
	Timestamp   string        `json:"timestamp"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func discordMessage(a Alert) discordPayload {
	color := colorGreen
	switch a.To {
	case "open":
		color = colorRed
	case "half_open":
		color = colorYellow
	}
	return discordPayload{Embeds: []discordEmbed{{
		Title:       a.Title(),
		Description: a.Detail(),
		Color:       color,
		Footer:      discordFooter{Text: a.Service},
		Timestamp:   a.At.UTC().Format(time.RFC3339),
	}}}
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, alert Alert) error {
	return d.hook.post(ctx, discordMessage(alert))
}
