// Package notify implements the side-channel Notifier (spec.md §4,
// §6): webhook senders for Slack, Teams, and Discord, driven by a
// static event-to-default-message table, grounded in
// original_source/spraycharles/lib/utils/notify.py.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HookSvc identifies which webhook transport a Notifier targets.
type HookSvc string

const (
	Slack   HookSvc = "Slack"
	Teams   HookSvc = "Teams"
	Discord HookSvc = "Discord"
)

// Event is the lifecycle-transition taxonomy a Notifier fires on,
// spec.md §6's five events exactly.
type Event string

const (
	CredsFound     Event = "creds_found"
	SprayWaiting   Event = "spray_waiting"
	SprayComplete  Event = "spray_complete"
	TimeoutWarning Event = "timeout_warning"
	TimeoutStopped Event = "timeout_stopped"
)

// DefaultMessage returns the stock message for an event against host,
// the table original_source's send_notification hard-codes. A
// caller-supplied message always overrides this.
func DefaultMessage(event Event, host string) string {
	switch event {
	case CredsFound:
		return fmt.Sprintf("Credentials guessed for host: %s", host)
	case SprayWaiting:
		return fmt.Sprintf("Spray queue empty for %s. Waiting for new users/passwords.", host)
	case SprayComplete:
		return fmt.Sprintf("Spray complete for %s. Exiting.", host)
	case TimeoutWarning:
		return fmt.Sprintf("5 consecutive timeouts on %s. Backing off.", host)
	case TimeoutStopped:
		return fmt.Sprintf("Repeated timeouts on %s. Spray paused, awaiting confirmation.", host)
	default:
		return fmt.Sprintf("Notification from lowandslow: %s", host)
	}
}

// Notifier sends a single notification to a configured webhook.
type Notifier interface {
	Send(ctx context.Context, webhook string, event Event, host, message string) error
}

// Send resolves the default message for event/host when message is
// empty, then dispatches to the sender for service.
func Send(ctx context.Context, sender Notifier, webhook string, event Event, host, message string) error {
	if message == "" {
		message = DefaultMessage(event, host)
	}
	return sender.Send(ctx, webhook, event, host, message)
}

// New returns the concrete Notifier for service.
func New(service HookSvc, client *http.Client) (Notifier, error) {
	if client == nil {
		client = NewClient(WebhookClientConfig())
	}
	switch service {
	case Slack:
		return &SlackSender{Client: client}, nil
	case Teams:
		return &TeamsSender{Client: client}, nil
	case Discord:
		return &DiscordSender{Client: client}, nil
	default:
		return nil, fmt.Errorf("notify: unknown service %q", service)
	}
}

func postJSON(ctx context.Context, client *http.Client, webhook string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
