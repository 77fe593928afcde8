// Package adgen turns a product brief into ad creative: a headline, body
// copy and a prompt for an image model.
package adgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vnmchuo/adstream-gateway/internal/provider"
)

const (
	DefaultTone = "professional"

	// SourceSample marks creative built locally because no model is configured.
	SourceSample = "sample"

	maxHeadlineRunes = 60
	maxBodyRunes     = 300
)

type Brief struct {
	Product  string `json:"product"`
	Audience string `json:"audience"`
	Tone     string `json:"tone"`
}

type Creative struct {
	Headline    string `json:"headline"`
	Body        string `json:"body"`
	ImagePrompt string `json:"imagePrompt"`
}

type Result struct {
	Creative Creative
	// Source is SourceSample or the name of the vendor that wrote the copy.
	Source string
	// Completion is nil for sample creative.
	Completion *provider.Completion
}

type Generator struct {
	completer provider.Completer
	model     string
	logger    *slog.Logger
}

// New returns a generator backed by completer. A nil completer makes every
// call return sample creative.
func New(completer provider.Completer, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, model: model, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, b Brief) (*Result, error) {
	if b.Tone == "" {
		b.Tone = DefaultTone
	}

	if g.completer == nil {
		g.logger.Debug("no ad model configured, returning sample creative")
		return &Result{Creative: Sample(b), Source: SourceSample}, nil
	}

	c, err := g.completer.Complete(ctx, []provider.Message{
		{Role: provider.RoleUser, Content: Prompt(b)},
	}, g.model)
	if err != nil {
		return nil, err
	}

	creative, ok := ParseCreative(c.Text, b)
	if !ok {
		g.logger.Warn("model reply held no JSON creative, using raw text",
			slog.String("provider", string(g.completer.Name())),
		)
	}
	return &Result{Creative: creative, Source: string(g.completer.Name()), Completion: c}, nil
}

// Prompt is the copywriting instruction sent to the model.
func Prompt(b Brief) string {
	return fmt.Sprintf(`You are an expert advertising copywriter. Generate compelling ad creative for the following:

Product: %s
Target Audience: %s
Tone: %s

Please provide:
1. A catchy headline (max 60 characters)
2. Persuasive body copy (2-3 sentences, max 150 words)
3. An image prompt for AI image generation (detailed description)

Format your response as JSON:
{
  "headline": "...",
  "body": "...",
  "imagePrompt": "..."
}`, b.Product, b.Audience, b.Tone)
}

func Sample(b Brief) Creative {
	return Creative{
		Headline:    fmt.Sprintf("Transform Your Experience with %s", b.Product),
		Body:        fmt.Sprintf("Discover how %s can revolutionize the way %s approach their daily challenges. Built with cutting-edge technology and designed for real results.", b.Product, b.Audience),
		ImagePrompt: fmt.Sprintf("Professional advertising image for %s, targeting %s, %s style, high quality, modern aesthetic", b.Product, b.Audience, b.Tone),
	}
}

// ParseCreative reads the outermost JSON object in text, which models often
// wrap in a markdown fence. When there is none, the first line becomes the
// headline and the leading text the body; ok is false in that case.
func ParseCreative(text string, b Brief) (creative Creative, ok bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &creative); err == nil {
			return creative, true
		}
	}

	firstLine, _, _ := strings.Cut(text, "\n")
	return Creative{
		Headline:    truncate(firstLine, maxHeadlineRunes),
		Body:        truncate(text, maxBodyRunes),
		ImagePrompt: fmt.Sprintf("%s advertisement for %s, %s style", b.Product, b.Audience, b.Tone),
	}, false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
