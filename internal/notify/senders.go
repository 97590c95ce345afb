package notify

import (
	"context"
	"net/http"
)

// SlackSender posts a Slack incoming-webhook payload: {"text": message}.
type SlackSender struct {
	Client *http.Client
}

func (s *SlackSender) Send(ctx context.Context, webhook string, _ Event, _ string, message string) error {
	return postJSON(ctx, s.Client, webhook, map[string]string{"text": message})
}

// TeamsSender posts a legacy Office365/Teams "MessageCard" payload.
type TeamsSender struct {
	Client *http.Client
}

func (s *TeamsSender) Send(ctx context.Context, webhook string, _ Event, _ string, message string) error {
	card := map[string]any{
		"@type":      "MessageCard",
		"@context":   "https://schema.org/extensions",
		"text":       message,
		"themeColor": "0076D7",
	}
	return postJSON(ctx, s.Client, webhook, card)
}

// DiscordSender posts a Discord webhook payload: {"content": message}.
type DiscordSender struct {
	Client *http.Client
}

func (s *DiscordSender) Send(ctx context.Context, webhook string, _ Event, _ string, message string) error {
	return postJSON(ctx, s.Client, webhook, map[string]string{"content": message})
}
