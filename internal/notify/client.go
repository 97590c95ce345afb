package notify

import (
	"net/http"
	"time"
)

// ClientConfig shapes the HTTP client used to POST webhook payloads.
// Grounded on the teacher pack's `pkg/shared/http` client-config
// pattern (timeout, retries, idle-conn tuning as named fields rather
// than a bare http.Client literal).
type ClientConfig struct {
	Timeout               time.Duration
	MaxRetries            int
	MaxIdleConns          int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// WebhookClientConfig returns the defaults used for Slack/Teams/Discord
// webhook posts: a short timeout, since a stalled webhook must never
// block the spray loop for long. MaxRetries is set here but NewClient
// does not use it: a failed webhook post is not retried.
func WebhookClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               10 * time.Second,
		MaxRetries:            2,
		MaxIdleConns:          5,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
}

// NewClient builds an *http.Client from a ClientConfig.
func NewClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:          cfg.MaxIdleConns,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		},
	}
}
