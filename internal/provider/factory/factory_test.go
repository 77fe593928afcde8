package factory

import (
	"errors"
	"testing"

	"github.com/vnmchuo/adstream-gateway/config"
	"github.com/vnmchuo/adstream-gateway/internal/provider"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ProviderConfig
		want    provider.Name
		wantErr bool
	}{
		{"default is github", config.ProviderConfig{GitHubToken: "ghp"}, provider.GitHub, false},
		{"github explicit", config.ProviderConfig{Name: "github", GitHubToken: "ghp"}, provider.GitHub, false},
		{"openai", config.ProviderConfig{Name: "OpenAI", OpenAIAPIKey: "sk"}, provider.OpenAI, false},
		{"github missing token", config.ProviderConfig{Name: "github", OpenAIAPIKey: "sk"}, "", true},
		{"openai missing key", config.ProviderConfig{Name: "openai", GitHubToken: "ghp"}, "", true},
		{"unknown vendor", config.ProviderConfig{Name: "claude", GitHubToken: "ghp", OpenAIAPIKey: "sk"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, nil, nil)
			if tt.wantErr {
				var cfgErr *provider.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("Expected ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, p.Name())
			}
			if _, ok := p.(provider.TokenCounter); !ok {
				t.Errorf("Expected %s to count tokens", p.Name())
			}
		})
	}
}

func TestNewAdCompleter(t *testing.T) {
	if c := NewAdCompleter(config.ProviderConfig{}, nil); c != nil {
		t.Errorf("Expected no completer without a Gemini key, got %v", c)
	}
	c := NewAdCompleter(config.ProviderConfig{GeminiAPIKey: "AIza"}, nil)
	if c == nil || c.Name() != provider.Gemini {
		t.Errorf("Expected gemini completer, got %v", c)
	}
}
