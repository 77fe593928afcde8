package provider

import "unicode/utf8"

// EstimateTokens approximates tokenization at four characters per token,
// rounded up, and reports the result as prompt tokens.
func EstimateTokens(text string) TokenCount {
	n := utf8.RuneCountInString(text)
	return TokenCount{Prompt: (n + 3) / 4}
}
