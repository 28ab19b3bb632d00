package api

import "github.com/shopspring/decimal"

// PricingResult is the outcome of one evaluation. It is created once by the
// engine and owned by the caller thereafter; the engine keeps no reference.
type PricingResult struct {
	NewPrice           decimal.Decimal `json:"new_price"`
	Confidence         float64         `json:"confidence"`
	Reason             string          `json:"reason"`
	RulesApplied       []string        `json:"rules_applied"`
	SafetyChecksPassed bool            `json:"safety_checks_passed"`
	Warnings           []string        `json:"warnings"`
	Metadata           map[string]any  `json:"metadata"`
}

// FailedResult is the contract for evaluations that cannot be carried out
// at all, for example when no strategy exists: the current price is kept,
// confidence is zero, and safety checks are reported as not passed.
func FailedResult(ctx *PricingContext, reason string) *PricingResult {
	return &PricingResult{
		NewPrice:           ctx.CurrentPrice,
		Confidence:         0,
		Reason:             reason,
		RulesApplied:       []string{},
		SafetyChecksPassed: false,
		Warnings:           []string{reason},
		Metadata:           map[string]any{},
	}
}
