// Package factory builds the configured chat provider for one request.
package factory

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vnmchuo/adstream-gateway/config"
	"github.com/vnmchuo/adstream-gateway/internal/provider"
	"github.com/vnmchuo/adstream-gateway/internal/provider/compat"
	"github.com/vnmchuo/adstream-gateway/internal/provider/gemini"
	"github.com/vnmchuo/adstream-gateway/internal/provider/github"
	"github.com/vnmchuo/adstream-gateway/internal/provider/openai"
)

// New returns a provider for the vendor named in cfg. An empty name selects
// GitHub Models. A missing credential for the selected vendor or an unknown
// vendor yields *provider.ConfigError.
func New(cfg config.ProviderConfig, httpClient *http.Client, logger *slog.Logger) (provider.Provider, error) {
	opts := []compat.Option{compat.WithHTTPClient(httpClient), compat.WithLogger(logger)}

	name := provider.Name(strings.ToLower(strings.TrimSpace(cfg.Name)))
	switch name {
	case "", provider.GitHub:
		if cfg.GitHubToken == "" {
			return nil, &provider.ConfigError{Provider: string(provider.GitHub), Reason: "GITHUB_TOKEN is required"}
		}
		return github.New(cfg.GitHubToken, cfg.GitHubBaseURL, opts...), nil
	case provider.OpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, &provider.ConfigError{Provider: string(provider.OpenAI), Reason: "OPENAI_API_KEY is required"}
		}
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, opts...), nil
	default:
		return nil, &provider.ConfigError{Provider: cfg.Name, Reason: "unsupported provider"}
	}
}

// NewAdCompleter returns the Gemini completer used for ad creative, or nil
// when no Gemini key is configured.
func NewAdCompleter(cfg config.ProviderConfig, httpClient *http.Client) provider.Completer {
	if cfg.GeminiAPIKey == "" {
		return nil
	}
	return gemini.New(cfg.GeminiAPIKey, cfg.GeminiBaseURL, gemini.WithHTTPClient(httpClient))
}
