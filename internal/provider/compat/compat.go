// Package compat implements the OpenAI chat-completions wire protocol shared
// by every supported vendor. Vendor packages only supply name, endpoint and
// credential.
package compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vnmchuo/adstream-gateway/internal/provider"
)

// maxErrorBody bounds how much of a failed upstream response is kept.
const maxErrorBody = 64 << 10

type Client struct {
	name       provider.Name
	apiKey     string
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

func New(name provider.Name, apiKey, url string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		apiKey:     apiKey,
		url:        url,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Messages  []provider.Message `json:"messages"`
	Model     string             `json:"model"`
	Stream    bool               `json:"stream"`
	MaxTokens int                `json:"max_tokens"`
}

func (c *Client) Name() provider.Name {
	return c.name
}

func (c *Client) StreamChat(ctx context.Context, messages []provider.Message, model string) (provider.Stream, error) {
	if model == "" {
		model = provider.DefaultModel
	}
	body, err := json.Marshal(chatRequest{
		Messages:  messages,
		Model:     model,
		Stream:    true,
		MaxTokens: provider.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s api request: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &provider.UpstreamError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &provider.UpstreamError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Body:       "response body is empty",
		}
	}

	return provider.NewBodyStream(c.name, resp.Body, c.logger), nil
}

func (c *Client) CountTokens(text string) provider.TokenCount {
	return provider.EstimateTokens(text)
}
