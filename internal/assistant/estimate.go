package assistant

import (
	"strings"
	"unicode/utf8"
)

// Model names used for requests and cost estimation
const (
	ModelOpus   = "claude-3-opus-20240229"
	ModelSonnet = "claude-3-sonnet-20240229"
	ModelHaiku  = "claude-3-haiku-20240307"
	ModelCodex  = "gpt-4o"
)

// Per-token rates in dollars
const (
	rateOpus   = 0.00003
	rateSonnet = 0.00001
	rateHaiku  = 0.0000025
	rateCodex  = 0.00001
)

// EstimateTokens approximates a token count as characters divided by four
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// EstimateCost prices a token count for a model. Model names match by
// family ("opus", "sonnet", "haiku", "gpt"); anything else, including "",
// is priced as opus.
func EstimateCost(tokens int, model string) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) * rateFor(model)
}

func rateFor(model string) float64 {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "sonnet"):
		return rateSonnet
	case strings.Contains(m, "haiku"):
		return rateHaiku
	case strings.Contains(m, "gpt"), strings.Contains(m, "codex"):
		return rateCodex
	default:
		return rateOpus
	}
}
