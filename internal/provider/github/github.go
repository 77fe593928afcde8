// Package github adapts the GitHub Models inference endpoint.
package github

import (
	"strings"

	"github.com/vnmchuo/adstream-gateway/internal/provider"
	"github.com/vnmchuo/adstream-gateway/internal/provider/compat"
)

const defaultBaseURL = "https://models.inference.ai.azure.com"

type GitHubProvider struct {
	*compat.Client
}

// New returns a provider authenticated with a GitHub token. An empty baseURL
// selects the public endpoint.
func New(token, baseURL string, opts ...compat.Option) *GitHubProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	return &GitHubProvider{Client: compat.New(provider.GitHub, token, url, opts...)}
}
