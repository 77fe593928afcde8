package openai

import (
	"strings"

	"github.com/vnmchuo/adstream-gateway/internal/provider"
	"github.com/vnmchuo/adstream-gateway/internal/provider/compat"
)

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIProvider struct {
	*compat.Client
}

func New(apiKey, baseURL string, opts ...compat.Option) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	return &OpenAIProvider{Client: compat.New(provider.OpenAI, apiKey, url, opts...)}
}
