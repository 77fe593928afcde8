// Package pricing estimates the USD cost of a completion from token counts
// and a static per-model rate table.
package pricing

import "strings"

// CostInfo holds USD rates per 1K tokens for one model.
type CostInfo struct {
	Model               string  `json:"model"`
	PromptCostPer1K     float64 `json:"prompt_cost_per_1k"`
	CompletionCostPer1K float64 `json:"completion_cost_per_1k"`
}

type matchKind int

const (
	exact matchKind = iota
	contains
)

type rule struct {
	match      matchKind
	pattern    string
	prompt     float64
	completion float64
}

func (r rule) matches(model string) bool {
	if r.match == exact {
		return model == r.pattern
	}
	return strings.Contains(model, r.pattern)
}

// rates is checked in order; the first matching rule wins.
var rates = map[string][]rule{
	// GitHub Models is free during preview, every model resolves to zero.
	"github": {
		{match: contains, pattern: "", prompt: 0, completion: 0},
	},
	"openai": {
		{match: exact, pattern: "gpt-4o", prompt: 0.005, completion: 0.015},
		{match: exact, pattern: "gpt-4o-mini", prompt: 0.00015, completion: 0.0006},
		{match: contains, pattern: "gpt-3.5-turbo", prompt: 0.0005, completion: 0.0015},
	},
}

// GetCostInfo returns the rates for a vendor and model. Unknown pairs get
// zero rates.
func GetCostInfo(vendor, model string) CostInfo {
	info := CostInfo{Model: model}
	for _, r := range rates[vendor] {
		if r.matches(model) {
			info.PromptCostPer1K = r.prompt
			info.CompletionCostPer1K = r.completion
			break
		}
	}
	return info
}

// CalculateCost returns the estimated USD cost of a completion. Token counts
// are not validated; negative input yields a negative cost.
func CalculateCost(vendor, model string, promptTokens, completionTokens int) float64 {
	info := GetCostInfo(vendor, model)
	promptCost := (float64(promptTokens) / 1000) * info.PromptCostPer1K
	completionCost := (float64(completionTokens) / 1000) * info.CompletionCostPer1K
	return promptCost + completionCost
}

// Vendors lists the vendors with a rate table.
func Vendors() []string {
	return []string{"github", "openai"}
}
