package provider

import (
	"context"
	"fmt"
)

// Name identifies one of the supported chat vendors.
type Name string

const (
	GitHub Name = "github" // GitHub Models, free during preview
	OpenAI Name = "openai"

	// Gemini only serves single-shot completions, see Completer.
	Gemini Name = "gemini"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gpt-4o-mini"

// MaxTokens caps every upstream completion.
const MaxTokens = 2000

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles vendors accept.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider opens one upstream streaming completion per call.
type Provider interface {
	Name() Name
	// StreamChat sends messages upstream and returns a cursor over the
	// generated text fragments. A non-success upstream status is reported
	// here as *UpstreamError, before any fragment is produced.
	StreamChat(ctx context.Context, messages []Message, model string) (Stream, error)
}

// Completion is the full text of a non-streamed generation together with
// the token counts reported by the vendor.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Completer generates a whole response in one round trip.
type Completer interface {
	Name() Name
	Complete(ctx context.Context, messages []Message, model string) (*Completion, error)
}

// TokenCount is a token estimate split by side of the exchange.
type TokenCount struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// TokenCounter is implemented by providers able to estimate token usage.
type TokenCounter interface {
	CountTokens(text string) TokenCount
}

// UpstreamError is a non-success response from a vendor API.
type UpstreamError struct {
	Provider   Name
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s api error: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ConfigError means the configured provider cannot be built.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Reason)
}
