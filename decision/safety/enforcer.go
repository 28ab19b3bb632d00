// Package safety enforces hard invariants on candidate prices. It is the
// single place price validity is decided; neither the rule pipeline nor the
// ML optimizer may bypass it.
package safety

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repricer/pkg/api"
)

var one = decimal.NewFromInt(1)

// Enforcer validates and clamps a provisional pricing result against the
// active safety constraints.
type Enforcer struct {
	log zerolog.Logger
}

// NewEnforcer creates a constraint enforcer.
func NewEnforcer(log zerolog.Logger) *Enforcer {
	return &Enforcer{log: log}
}

// violation describes a failed constraint check. suggested is the nearest
// compliant price when one exists.
type violation struct {
	message      string
	suggested    decimal.Decimal
	hasSuggested bool
}

// Enforce evaluates each active constraint in declaration order against the
// final candidate price. block reverts to the current price and is final
// for the evaluation: later constraints still run so their warnings are
// recorded, but none may move the price again. adjust clamps to the
// constraint's suggested compliant price and keeps checking; warn records
// only. Only block flips safety_checks_passed to false.
func (e *Enforcer) Enforce(constraints []api.SafetyConstraint, result *api.PricingResult, pc *api.PricingContext) *api.PricingResult {
	price := result.NewPrice
	warnings := append([]string{}, result.Warnings...)
	passed := true
	blocked := false

	for i := range constraints {
		c := &constraints[i]
		if !c.IsActive {
			continue
		}
		if !scopeApplies(c.Scope, pc) {
			continue
		}

		v := e.check(c, price, pc)
		if v == nil {
			continue
		}

		switch c.Action {
		case api.ViolationBlock:
			if !blocked {
				price = pc.CurrentPrice
				blocked = true
			}
			passed = false
			warnings = append(warnings, fmt.Sprintf("Safety constraint '%s' blocked price change: %s", c.Name, v.message))
			e.log.Warn().Str("constraint", c.Name).Str("product", pc.ProductID).Msg("price change blocked")

		case api.ViolationAdjust:
			if !blocked && v.hasSuggested {
				price = v.suggested
			}
			warnings = append(warnings, fmt.Sprintf("Safety constraint '%s' adjusted price: %s", c.Name, v.message))

		case api.ViolationWarn:
			warnings = append(warnings, fmt.Sprintf("Safety constraint '%s' warning: %s", c.Name, v.message))
		}
	}

	return &api.PricingResult{
		NewPrice:           price,
		Confidence:         result.Confidence,
		Reason:             result.Reason,
		RulesApplied:       result.RulesApplied,
		SafetyChecksPassed: passed,
		Warnings:           warnings,
		Metadata:           result.Metadata,
	}
}

// check evaluates one constraint against the candidate price. Constraints
// always see the final candidate, never intermediate pipeline prices.
func (e *Enforcer) check(c *api.SafetyConstraint, price decimal.Decimal, pc *api.PricingContext) *violation {
	switch c.Type {
	case api.ConstraintMinMargin:
		var margin decimal.Decimal
		if price.IsPositive() {
			margin = price.Sub(pc.Cost).Div(price)
		}
		if margin.LessThan(c.Threshold) {
			v := &violation{
				message: fmt.Sprintf("margin %s below minimum %s", margin.Round(4), c.Threshold),
			}
			// Minimum price that yields the required margin: cost / (1 - threshold).
			if c.Threshold.LessThan(one) {
				v.suggested = pc.Cost.Div(one.Sub(c.Threshold))
				v.hasSuggested = true
			}
			return v
		}

	case api.ConstraintMaxPriceChange:
		change := price.Sub(pc.CurrentPrice).Abs().Div(pc.CurrentPrice)
		if change.GreaterThan(c.Threshold) {
			maxDelta := pc.CurrentPrice.Mul(c.Threshold)
			suggested := pc.CurrentPrice.Sub(maxDelta)
			if price.GreaterThan(pc.CurrentPrice) {
				suggested = pc.CurrentPrice.Add(maxDelta)
			}
			return &violation{
				message:      fmt.Sprintf("price change %s exceeds maximum %s", change.Round(4), c.Threshold),
				suggested:    suggested,
				hasSuggested: true,
			}
		}

	case api.ConstraintMinPrice:
		if price.LessThan(c.Threshold) {
			return &violation{
				message:      fmt.Sprintf("price %s below minimum %s", price.Round(2), c.Threshold),
				suggested:    c.Threshold,
				hasSuggested: true,
			}
		}

	case api.ConstraintMaxPrice:
		if price.GreaterThan(c.Threshold) {
			return &violation{
				message:      fmt.Sprintf("price %s above maximum %s", price.Round(2), c.Threshold),
				suggested:    c.Threshold,
				hasSuggested: true,
			}
		}

	default:
		e.log.Warn().Str("constraint", c.Name).Str("type", string(c.Type)).Msg("unknown constraint type, skipping")
	}

	return nil
}

// scopeApplies checks the constraint's product/category scope. Deny lists
// win over allow lists; empty lists leave the dimension unconstrained.
func scopeApplies(s api.ConstraintScope, pc *api.PricingContext) bool {
	for _, cat := range s.ExcludeCategories {
		if cat == pc.Category {
			return false
		}
	}
	for _, p := range s.ExcludeProducts {
		if p == pc.ProductID {
			return false
		}
	}
	if len(s.Categories) > 0 && !containsStr(s.Categories, pc.Category) {
		return false
	}
	if len(s.Products) > 0 && !containsStr(s.Products, pc.ProductID) {
		return false
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
