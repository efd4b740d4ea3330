// Package evolution talks to the Evolution messaging gateway.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const sendTextPath = "/message/sendText/{instance}"

// ClientConfig configures the gateway client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SendTextRequest is the body of a text send call.
type SendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Client calls the gateway REST API.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	log        zerolog.Logger
}

// NewClient creates a Resty-backed gateway client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		apiKey: cfg.APIKey,
		log:    log.With().Str("component", "evolution-client").Logger(),
	}
}

// SendText posts a text message through the instance and returns the decoded response body.
// apiKey overrides the client's default key when non-empty.
func (c *Client) SendText(ctx context.Context, instance, apiKey string, req SendTextRequest) (map[string]any, error) {
	if instance == "" {
		return nil, fmt.Errorf("send text: instance name is empty")
	}
	if apiKey == "" {
		apiKey = c.apiKey
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("apikey", apiKey).
		SetPathParam("instance", instance).
		SetBody(req).
		Post(sendTextPath)
	if err != nil {
		return nil, fmt.Errorf("send text via %s: %w", instance, err)
	}

	if resp.IsError() {
		c.log.Warn().
			Int("status", resp.StatusCode()).
			Str("instance", instance).
			Msg("gateway rejected send request")
		if failure, ok := rejection(resp.StatusCode(), resp.Body()); ok {
			return failure, nil
		}
		return nil, fmt.Errorf("evolution api error: %d %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	body := map[string]any{}
	if len(resp.Body()) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	return body, nil
}

// rejection turns a JSON error body into a structured failure response.
// Bodies that are not JSON objects are left to the caller.
func rejection(status int, raw []byte) (map[string]any, bool) {
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}

	var parts []string
	if msg, ok := body["error"].(string); ok && msg != "" {
		parts = append(parts, msg)
	}
	if nested, ok := body["response"].(map[string]any); ok {
		parts = append(parts, messages(nested["message"])...)
	}
	parts = append(parts, messages(body["message"])...)

	reason := fmt.Sprintf("status %d", status)
	if len(parts) > 0 {
		reason = fmt.Sprintf("%s (status %d)", strings.Join(parts, ": "), status)
	}

	failure := map[string]any{"success": false, "error": reason}
	if state, ok := body["state"].(string); ok && state != "" {
		failure["state"] = state
	}
	return failure, true
}

func messages(v any) []string {
	switch m := v.(type) {
	case string:
		if m != "" {
			return []string{m}
		}
	case []any:
		var out []string
		for _, item := range m {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
