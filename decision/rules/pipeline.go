package rules

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repricer/pkg/api"
	"repricer/pkg/confidence"
	"repricer/pkg/expr"
)

// DefaultUndercutFactor is the multiplier applied by undercut_competitor:
// price the reference 1% down. Tuned per deployment via WithUndercutFactor.
var DefaultUndercutFactor = decimal.RequireFromString("0.99")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Engine applies pricing rules to a context.
type Engine struct {
	log      zerolog.Logger
	undercut decimal.Decimal
}

// NewEngine creates a rule engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log:      log,
		undercut: DefaultUndercutFactor,
	}
}

// WithUndercutFactor overrides the undercut_competitor multiplier.
func (e *Engine) WithUndercutFactor(f decimal.Decimal) *Engine {
	e.undercut = f
	return e
}

// Apply folds the ordered rules over the context. The running price starts
// at the current price and the running confidence at 1.0; each applied rule
// transforms the price and multiplies confidence by its weight. A rule
// whose condition or action fails is skipped with a warning; it never
// aborts the pass. Safety is validated separately, so the returned result
// reports safety_checks_passed provisionally as true.
func (e *Engine) Apply(matched []api.Rule, pc *api.PricingContext) *api.PricingResult {
	price := pc.CurrentPrice
	conf := 1.0
	applied := []string{}
	warnings := []string{}
	reasons := []string{}

	vars := EvalVars(pc)

	for i := range matched {
		rule := &matched[i]

		ok, err := ruleConditionHolds(rule, vars)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Rule '%s' failed: %v", rule.Name, err))
			e.log.Warn().Str("rule", rule.Name).Err(err).Msg("rule condition failed, skipping")
			continue
		}
		if !ok {
			continue
		}

		value, err := ruleActionValue(rule, vars)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Rule '%s' failed: %v", rule.Name, err))
			e.log.Warn().Str("rule", rule.Name).Err(err).Msg("rule action failed, skipping")
			continue
		}
		if value.IsZero() {
			continue
		}

		next, err := e.transform(price, value, rule.ActionType)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Rule '%s' failed: %v", rule.Name, err))
			continue
		}

		e.log.Debug().
			Str("rule", rule.Name).
			Str("from", price.String()).
			Str("to", next.String()).
			Msg("applied pricing rule")

		price = next
		applied = append(applied, rule.Name)
		reasons = append(reasons, fmt.Sprintf("%s: %s %s", rule.Name, rule.ActionType, value))
		conf *= rule.EffectiveWeight()
	}

	reason := "No rules applied"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return &api.PricingResult{
		NewPrice:           price,
		Confidence:         confidence.Clamp(conf),
		Reason:             reason,
		RulesApplied:       applied,
		SafetyChecksPassed: true,
		Warnings:           warnings,
		Metadata:           map[string]any{},
	}
}

// ruleConditionHolds evaluates the rule's condition; an empty condition
// always holds.
func ruleConditionHolds(rule *api.Rule, vars expr.Vars) (bool, error) {
	prog := rule.ConditionProgram()
	if prog == nil {
		if rule.Condition == "" {
			return true, nil
		}
		// The configuration store compiles expressions at load; reaching
		// here means the rule bypassed it.
		if err := rule.Compile(); err != nil {
			return false, err
		}
		prog = rule.ConditionProgram()
	}
	return prog.EvalBool(vars)
}

// ruleActionValue evaluates the rule's action-value expression. A rule
// without one contributes no price change.
func ruleActionValue(rule *api.Rule, vars expr.Vars) (decimal.Decimal, error) {
	prog := rule.ValueProgram()
	if prog == nil {
		if rule.ActionValue == "" {
			return decimal.Zero, nil
		}
		if err := rule.Compile(); err != nil {
			return decimal.Zero, err
		}
		prog = rule.ValueProgram()
	}
	return prog.EvalNumber(vars)
}

// transform maps (action_type, value) to a concrete price change.
func (e *Engine) transform(price, value decimal.Decimal, action api.ActionType) (decimal.Decimal, error) {
	switch action {
	case api.ActionIncreasePercentage:
		return price.Mul(one.Add(value.Div(hundred))), nil
	case api.ActionDecreasePercentage:
		return price.Mul(one.Sub(value.Div(hundred))), nil
	case api.ActionIncreaseAmount:
		return price.Add(value), nil
	case api.ActionDecreaseAmount:
		return price.Sub(value), nil
	case api.ActionSetPrice:
		return value, nil
	case api.ActionMatchCompetitor:
		// The action value carries the competitor reference price.
		return value, nil
	case api.ActionUndercutCompetitor:
		return value.Mul(e.undercut), nil
	default:
		return price, fmt.Errorf("unknown action type: %s", action)
	}
}
