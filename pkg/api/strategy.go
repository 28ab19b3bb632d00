package api

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"repricer/pkg/expr"
)

// StrategyType selects the evaluation path. It is a closed set; the engine
// switches exhaustively over these values.
type StrategyType string

const (
	StrategyRuleBased StrategyType = "rule_based"
	StrategyMLBased   StrategyType = "ml_based"
	StrategyHybrid    StrategyType = "hybrid"
)

// Strategy is an externally owned, read-only evaluation configuration. At
// most one strategy per tenant is the default.
type Strategy struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        StrategyType   `json:"strategy_type"`
	IsDefault   bool           `json:"is_default"`
	IsActive    bool           `json:"is_active"`
	Config      StrategyConfig `json:"config"`

	RuleSets    []RuleSet          `json:"rule_sets,omitempty"`
	Constraints []SafetyConstraint `json:"constraints,omitempty"`
}

// StrategyConfig carries the price band and margin floor the ML optimizer
// searches within. A nil bound means the path falls back to the single-shot
// regression instead of the constrained grid search.
type StrategyConfig struct {
	MinPrice  *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice  *decimal.Decimal `json:"max_price,omitempty"`
	MinMargin float64          `json:"min_margin,omitempty"`
}

// RuleSetFilter gates whether a rule set's rules are considered for a
// context. Each present dimension must match; an absent dimension is
// unconstrained.
type RuleSetFilter struct {
	Marketplaces []string `json:"marketplaces,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Brands       []string `json:"brands,omitempty"`

	InventoryMin *int `json:"inventory_min,omitempty"`
	InventoryMax *int `json:"inventory_max,omitempty"`

	PriceMin *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax *decimal.Decimal `json:"price_max,omitempty"`
}

// RuleSet is an ordered, independently scoped collection of rules.
type RuleSet struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Priority int           `json:"priority"`
	Filter   RuleSetFilter `json:"conditions"`
	IsActive bool          `json:"is_active"`
	Rules    []Rule        `json:"rules"`
}

// ActionType maps an evaluated action value to a concrete price transform.
type ActionType string

const (
	ActionIncreasePercentage ActionType = "increase_percentage"
	ActionDecreasePercentage ActionType = "decrease_percentage"
	ActionIncreaseAmount     ActionType = "increase_amount"
	ActionDecreaseAmount     ActionType = "decrease_amount"
	ActionSetPrice           ActionType = "set_price"
	ActionMatchCompetitor    ActionType = "match_competitor"
	ActionUndercutCompetitor ActionType = "undercut_competitor"
)

// Rule is a single conditional price adjustment. Condition and ActionValue
// are expressions in the closed rule language; they are compiled when the
// configuration is loaded, and invalid expressions are rejected there.
type Rule struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Priority    int        `json:"priority"`
	Condition   string     `json:"condition"`
	ActionType  ActionType `json:"action_type"`
	ActionValue string     `json:"action_value"`
	Weight      float64    `json:"weight,omitempty"`
	IsActive    bool       `json:"is_active"`

	condProgram  *expr.Program
	valueProgram *expr.Program
}

// Compile parses the rule's condition and action-value expressions. An
// empty condition means "always applies"; an empty action value means the
// rule never changes the price.
func (r *Rule) Compile() error {
	r.condProgram = nil
	r.valueProgram = nil

	if r.Condition != "" {
		p, err := expr.Compile(r.Condition)
		if err != nil {
			return fmt.Errorf("rule %q condition: %w", r.Name, err)
		}
		r.condProgram = p
	}
	if r.ActionValue != "" {
		p, err := expr.Compile(r.ActionValue)
		if err != nil {
			return fmt.Errorf("rule %q action value: %w", r.Name, err)
		}
		r.valueProgram = p
	}
	return nil
}

// ConditionProgram returns the compiled condition, or nil when the rule is
// unconditional.
func (r *Rule) ConditionProgram() *expr.Program { return r.condProgram }

// ValueProgram returns the compiled action-value expression, or nil when
// the rule has none.
func (r *Rule) ValueProgram() *expr.Program { return r.valueProgram }

// EffectiveWeight is the confidence weight, defaulting to 1.0 when unset.
func (r *Rule) EffectiveWeight() float64 {
	if r.Weight <= 0 {
		return 1.0
	}
	return r.Weight
}

// ConstraintType names a safety invariant on the final price.
type ConstraintType string

const (
	ConstraintMinMargin      ConstraintType = "min_margin"
	ConstraintMaxPriceChange ConstraintType = "max_price_change"
	ConstraintMinPrice       ConstraintType = "min_price"
	ConstraintMaxPrice       ConstraintType = "max_price"
)

// ViolationAction decides what happens when a constraint is violated.
type ViolationAction string

const (
	ViolationBlock  ViolationAction = "block"
	ViolationAdjust ViolationAction = "adjust"
	ViolationWarn   ViolationAction = "warn"
)

// ConstraintScope limits which products a constraint applies to. Empty
// lists leave the dimension unconstrained; deny lists win over allow lists.
type ConstraintScope struct {
	Categories        []string `json:"categories,omitempty"`
	ExcludeCategories []string `json:"exclude_categories,omitempty"`
	Products          []string `json:"products,omitempty"`
	ExcludeProducts   []string `json:"exclude_products,omitempty"`
}

// SafetyConstraint is a hard invariant on the final candidate price,
// independent of which rules or models produced it. Constraints are
// evaluated in declaration order.
type SafetyConstraint struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Type      ConstraintType  `json:"constraint_type"`
	Threshold decimal.Decimal `json:"threshold"`
	Action    ViolationAction `json:"violation_action"`
	Scope     ConstraintScope `json:"scope"`
	IsActive  bool            `json:"is_active"`
}
