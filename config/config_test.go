package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("STREAM_TIMEOUT", "2m")
	t.Setenv("RATE_LIMIT_RPM", "60")
	t.Setenv("OTEL_EXPORTER_TYPE", "stdout")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StreamTimeout != 2*time.Minute {
		t.Errorf("Expected 2m stream timeout, got %s", cfg.StreamTimeout)
	}
	if cfg.RateLimitRPM != 60 {
		t.Errorf("Expected 60 rpm, got %d", cfg.RateLimitRPM)
	}
}

func TestLoad_ProviderSelection(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.Name != "openai" {
		t.Errorf("Expected provider openai, got %s", cfg.Provider.Name)
	}
	if cfg.Provider.OpenAIAPIKey != "sk-test" {
		t.Errorf("Expected OpenAI key to be loaded, got %q", cfg.Provider.OpenAIAPIKey)
	}
}

func TestLoad_MissingCredentialIsNotFatal(t *testing.T) {
	t.Setenv("AI_PROVIDER", "github")
	t.Setenv("GITHUB_TOKEN", "")

	if _, err := Load(); err != nil {
		t.Fatalf("Load should not check credentials, got %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "STREAM_TIMEOUT", "soon"},
		{"negative timeout", "STREAM_TIMEOUT", "-5s"},
		{"bad rpm", "RATE_LIMIT_RPM", "many"},
		{"zero rpm", "RATE_LIMIT_RPM", "0"},
		{"bad exporter", "OTEL_EXPORTER_TYPE", "zipkin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_AdSettings(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "AIza-test")
	t.Setenv("AD_MODEL", "gemini-1.5-flash")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.GeminiAPIKey != "AIza-test" {
		t.Errorf("Expected Gemini key, got %q", cfg.Provider.GeminiAPIKey)
	}
	if cfg.Provider.AdModel != "gemini-1.5-flash" {
		t.Errorf("Expected ad model override, got %q", cfg.Provider.AdModel)
	}
}
