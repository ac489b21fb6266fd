// Package suggest turns aggregated job description text into portfolio
// project suggestions via the OpenRouter chat-completions API, with a
// fingerprint cache in front of the model call.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	httpTimeout    = 120 * time.Second
)

// ErrMalformedResponse means the model endpoint answered with a body missing
// choices[0].message.content. Surfaced as a terminal pipeline error, no retry.
var ErrMalformedResponse = errors.New("suggest: malformed model response")

// Client issues chat-completion requests against OpenRouter.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	client  *http.Client
}

// NewClient constructs a client with a shared HTTP client.
func NewClient(apiKey, model string) *Client {
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: defaultBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatResponse mirrors the subset of the response contract this service
// depends on. Anything that does not fit this shape is a failure.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete issues one chat-completion request and returns the first choice's
// content. Transport failures and unexpected shapes are returned as errors;
// this layer never retries.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   4000,
		Temperature: 0.7,
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrMalformedResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping issues a minimal request to verify the credential and endpoint are
// usable. Used by startup checks only.
func (c *Client) Ping(ctx context.Context) error {
	payload := chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: "Ping test"}},
	}
	_, err := c.post(ctx, payload)
	return err
}

func (c *Client) post(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("suggest: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "http://localhost")
	req.Header.Set("X-Title", "jobscout")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggest: http POST: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("suggest: read body: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: model endpoint returned %d: %s", httpResp.StatusCode, string(raw))
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}
