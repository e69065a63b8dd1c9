// Package assemble composes a prompt-ready knowledge context from the graph
// store under hard token budgets. Section caps are independent soft maxima;
// the total cap is the invariant that always holds.
package assemble

import (
	"github.com/recallhq/recall/internal/cost"
)

// Budget allocates tokens per section plus an overall hard cap
type Budget struct {
	Identity   int
	State      int
	Knowledge  int
	Recent     int
	Entities   int
	Reflection int

	TotalCap      int
	CharsPerToken int

	MaxRecentEvents int // how many recent events are considered (default 15)
	FactsPerEntity  int // facts listed under each entity (default 3)
}

// DefaultBudget is tuned for a ~1.5k-token context block
func DefaultBudget() Budget {
	return Budget{
		Identity:        150,
		State:           100,
		Knowledge:       400,
		Recent:          350,
		Entities:        500,
		Reflection:      150,
		TotalCap:        1500,
		CharsPerToken:   cost.DefaultCharsPerToken,
		MaxRecentEvents: 15,
		FactsPerEntity:  3,
	}
}

func (b Budget) charsPerToken() int {
	if b.CharsPerToken <= 0 {
		return cost.DefaultCharsPerToken
	}
	return b.CharsPerToken
}

// Tokens estimates the token count of text under this budget's ratio
func (b Budget) Tokens(text string) int {
	return cost.EstimateTokens(text, b.charsPerToken())
}
