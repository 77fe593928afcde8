package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port          string        // default: 8080
	StreamTimeout time.Duration // default: 2m, caps one upstream stream

	// Providers
	Provider ProviderConfig

	// Database, usage persistence is disabled when empty
	PostgresDSN string

	// Cache, rate limiting is disabled when empty
	RedisAddr string

	// Rate Limiting
	RateLimitRPM int64 // requests per minute per client, default: 60

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // "text" or "json"
}

// ProviderConfig selects the chat vendor and carries every vendor credential.
// Only the credential of the selected vendor is checked, at resolution time.
type ProviderConfig struct {
	Name          string // "github" or "openai", default: github
	GitHubToken   string
	OpenAIAPIKey  string
	GitHubBaseURL string // optional endpoint override
	OpenAIBaseURL string // optional endpoint override

	// Ad creative. Sample creative is served when GeminiAPIKey is empty.
	GeminiAPIKey  string
	GeminiBaseURL string
	AdModel       string // default: gemini-1.5-pro
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Provider: ProviderConfig{
			Name:          getEnv("AI_PROVIDER", "github"),
			GitHubToken:   os.Getenv("GITHUB_TOKEN"),
			OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
			GitHubBaseURL: os.Getenv("GITHUB_MODELS_BASE_URL"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiBaseURL: os.Getenv("GEMINI_BASE_URL"),
			AdModel:       getEnv("AD_MODEL", "gemini-1.5-pro"),
		},
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
	}

	timeout, err := time.ParseDuration(getEnv("STREAM_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STREAM_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("STREAM_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.StreamTimeout = timeout

	rpm, err := strconv.ParseInt(getEnv("RATE_LIMIT_RPM", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPM: %w", err)
	}
	if rpm <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", rpm)
	}
	cfg.RateLimitRPM = rpm

	switch cfg.OTELExporterType {
	case "stdout", "otlp", "none":
	default:
		return nil, fmt.Errorf("invalid OTEL_EXPORTER_TYPE %q (use stdout, otlp or none)", cfg.OTELExporterType)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
