// Package gemini calls the Gemini generateContent API for single-shot
// completions. It does not stream.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vnmchuo/adstream-gateway/internal/provider"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	maxErrorBody   = 64 << 10
)

// DefaultModel is used when Complete is called without a model.
const DefaultModel = "gemini-1.5-pro"

type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*GeminiProvider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *GeminiProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

func New(apiKey, baseURL string, opts ...Option) *GeminiProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() provider.Name {
	return provider.Gemini
}

func (p *GeminiProvider) Complete(ctx context.Context, messages []provider.Message, model string) (*provider.Completion, error) {
	if model == "" {
		model = DefaultModel
	}
	body, err := json.Marshal(mapRequest(messages))
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &provider.UpstreamError{
			Provider:   provider.Gemini,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, &provider.UpstreamError{
			Provider:   provider.Gemini,
			StatusCode: resp.StatusCode,
			Body:       "no candidates in response",
		}
	}

	var text strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &provider.Completion{
		Text:             text.String(),
		Model:            model,
		PromptTokens:     geminiResp.UsageMetadata.PromptTokenCount,
		CompletionTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// mapRequest moves system messages into the system instruction and renames
// the assistant role to "model".
func mapRequest(messages []provider.Message) geminiRequest {
	req := geminiRequest{
		GenerationConfig: generationConfig{MaxOutputTokens: provider.MaxTokens},
	}
	for _, m := range messages {
		part := geminiPart{Text: m.Content}
		switch m.Role {
		case provider.RoleSystem:
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, part)
		case provider.RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{part}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{part}})
		}
	}
	return req
}
