// Package provider talks to the deployment under test and owns the
// per-request retry, timeout, and rate-limit pacing policy.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Sender is the capability of sending one prepared request body and getting
// back a raw response or an error. It is the seam tests use to substitute a
// fake deployment.
type Sender interface {
	Send(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

func (f SenderFunc) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return f(ctx, payload)
}

// ClientConfig configures the OpenAI-compatible provider client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// ExtraBody is merged into every request body before sending.
	ExtraBody map[string]any
}

// Client sends suite payloads to an OpenAI-compatible chat-completions
// endpoint. Payloads stay untyped end to end so provider-specific request
// fields pass through unmodified.
type Client struct {
	api   openai.Client
	extra map[string]any
}

// NewClient builds a provider client. SDK-level retries are disabled; the
// retry budget belongs to the Caller.
func NewClient(cfg ClientConfig) *Client {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Client{
		api:   openai.NewClient(opts...),
		extra: cfg.ExtraBody,
	}
}

// Send posts one request body to chat/completions and decodes the raw
// response. Extra body fields are merged in without overriding the payload's
// own keys.
func (c *Client) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	body := payload
	if len(c.extra) > 0 {
		body = make(map[string]any, len(payload)+len(c.extra))
		for k, v := range c.extra {
			body[k] = v
		}
		for k, v := range payload {
			body[k] = v
		}
	}

	var raw map[string]any
	if err := c.api.Post(ctx, "chat/completions", body, &raw); err != nil {
		return nil, fmt.Errorf("provider: chat/completions: %w", err)
	}
	return raw, nil
}

// IsRateLimited reports whether the error is the provider telling us to slow
// down (HTTP 429).
func IsRateLimited(err error) bool {
	var apierr *openai.Error
	return errors.As(err, &apierr) && apierr.StatusCode == 429
}
