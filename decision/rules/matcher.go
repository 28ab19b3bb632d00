// Package rules provides the rule-based pricing path: scoping a strategy's
// rule sets to a market context and folding the matched rules into a price.
package rules

import (
	"sort"

	"repricer/pkg/api"
)

// ApplicableRules returns the flattened, ordered list of rules whose owning
// rule set matches the context. Rule sets order by (priority, name), rules
// inside each by (priority, name); the resulting sequence is deterministic
// so repeated evaluations of the same snapshot reproduce exactly.
func (e *Engine) ApplicableRules(strategy *api.Strategy, pc *api.PricingContext) []api.Rule {
	sets := make([]api.RuleSet, 0, len(strategy.RuleSets))
	for _, rs := range strategy.RuleSets {
		if !rs.IsActive {
			continue
		}
		if !filterMatches(rs.Filter, pc) {
			continue
		}
		sets = append(sets, rs)
	}

	sort.SliceStable(sets, func(i, j int) bool {
		if sets[i].Priority != sets[j].Priority {
			return sets[i].Priority < sets[j].Priority
		}
		return sets[i].Name < sets[j].Name
	})

	var matched []api.Rule
	for _, rs := range sets {
		inSet := make([]api.Rule, 0, len(rs.Rules))
		for _, r := range rs.Rules {
			if r.IsActive {
				inSet = append(inSet, r)
			}
		}
		sort.SliceStable(inSet, func(i, j int) bool {
			if inSet[i].Priority != inSet[j].Priority {
				return inSet[i].Priority < inSet[j].Priority
			}
			return inSet[i].Name < inSet[j].Name
		})
		matched = append(matched, inSet...)
	}

	return matched
}

// filterMatches checks the rule set's scoping filter against the context.
// Every present dimension must match; an absent dimension is unconstrained.
func filterMatches(f api.RuleSetFilter, pc *api.PricingContext) bool {
	if len(f.Marketplaces) > 0 && !contains(f.Marketplaces, pc.Marketplace) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, pc.Category) {
		return false
	}
	if len(f.Brands) > 0 && !contains(f.Brands, pc.Brand) {
		return false
	}

	if f.InventoryMin != nil && pc.InventoryLevel < *f.InventoryMin {
		return false
	}
	if f.InventoryMax != nil && pc.InventoryLevel > *f.InventoryMax {
		return false
	}

	if f.PriceMin != nil && pc.CurrentPrice.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && pc.CurrentPrice.GreaterThan(*f.PriceMax) {
		return false
	}

	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
