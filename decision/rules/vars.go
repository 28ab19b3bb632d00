package rules

import (
	"repricer/pkg/api"
	"repricer/pkg/expr"
)

// EvalVars builds the fixed variable environment rule expressions see.
// Derived from the original context only: conditions in one pass never
// observe the running price produced by earlier rules.
func EvalVars(pc *api.PricingContext) expr.Vars {
	vars := expr.Vars{
		"current_price":  expr.Number(pc.CurrentPrice),
		"cost":           expr.Number(pc.Cost),
		"inventory":      expr.NumberFromInt(int64(pc.InventoryLevel)),
		"sales_velocity": expr.NumberFromFloat(pc.SalesVelocity),
		"seasonality":    expr.NumberFromFloat(pc.SeasonalityFactor),
		"demand_score":   expr.NumberFromFloat(pc.DemandScore),
		"margin_current": expr.Number(pc.Margin()),
		"margin_target":  expr.NumberFromFloat(pc.TargetMargin),
		"buy_box":        expr.Boolean(pc.BuyBoxStatus == api.BuyBoxWon),
	}

	// Missing competitor data evaluates as zero, matching how rules have
	// historically been written ("competitor_min > 0 and ...").
	if min, ok := pc.CompetitorMin(); ok {
		vars["competitor_min"] = expr.Number(min)
	} else {
		vars["competitor_min"] = expr.NumberFromInt(0)
	}
	if max, ok := pc.CompetitorMax(); ok {
		vars["competitor_max"] = expr.Number(max)
	} else {
		vars["competitor_max"] = expr.NumberFromInt(0)
	}
	if avg, ok := pc.CompetitorAvg(); ok {
		vars["competitor_avg"] = expr.Number(avg)
	} else {
		vars["competitor_avg"] = expr.NumberFromInt(0)
	}
	vars["competitor_count"] = expr.NumberFromInt(int64(len(pc.CompetitorPrices)))

	// Custom attributes join the environment when they carry a usable type;
	// anything else stays invisible and reads as an unknown variable.
	for name, raw := range pc.CustomAttributes {
		if _, taken := vars[name]; taken {
			continue
		}
		switch v := raw.(type) {
		case bool:
			vars[name] = expr.Boolean(v)
		case float64:
			vars[name] = expr.NumberFromFloat(v)
		case int:
			vars[name] = expr.NumberFromInt(int64(v))
		case int64:
			vars[name] = expr.NumberFromInt(v)
		}
	}

	return vars
}
