// Package ml provides the ML-assisted pricing path: feature extraction,
// model artifact loading, and the constrained grid search over candidate
// prices using demand and buy-box sub-models.
package ml

import (
	"fmt"

	"github.com/shopspring/decimal"

	"repricer/pkg/api"
)

// Features extracts the full named feature map from a context. Models
// select the subset they were trained on via Vector.
func Features(pc *api.PricingContext) map[string]float64 {
	price := pc.CurrentPrice.InexactFloat64()
	cost := pc.Cost.InexactFloat64()

	feats := map[string]float64{
		"current_price":   price,
		"cost":            cost,
		"inventory_level": float64(pc.InventoryLevel),
		"sales_velocity":  pc.SalesVelocity,
		"seasonality":     pc.SeasonalityFactor,
		"demand_score":    pc.DemandScore,
		"target_margin":   pc.TargetMargin,
	}

	if price > 0 {
		feats["margin"] = (price - cost) / price
	} else {
		feats["margin"] = 0
	}

	if pc.BuyBoxStatus == api.BuyBoxWon {
		feats["buy_box_won"] = 1
	} else {
		feats["buy_box_won"] = 0
	}

	if n := len(pc.CompetitorPrices); n > 0 {
		min, _ := pc.CompetitorMin()
		max, _ := pc.CompetitorMax()
		avg, _ := pc.CompetitorAvg()
		feats["competitor_min_price"] = min.InexactFloat64()
		feats["competitor_max_price"] = max.InexactFloat64()
		feats["competitor_avg_price"] = avg.InexactFloat64()
		feats["competitor_count"] = float64(n)

		below := 0
		for _, p := range pc.CompetitorPrices {
			if p.LessThan(pc.CurrentPrice) {
				below++
			}
		}
		feats["price_rank"] = float64(below + 1)
		feats["price_percentile"] = float64(below) / float64(n)
	} else {
		feats["competitor_min_price"] = 0
		feats["competitor_max_price"] = 0
		feats["competitor_avg_price"] = 0
		feats["competitor_count"] = 0
		feats["price_rank"] = 1
		feats["price_percentile"] = 0.5
	}

	// One-hot categoricals, matching how the training pipeline encodes them.
	feats[fmt.Sprintf("marketplace_%s", pc.Marketplace)] = 1
	feats[fmt.Sprintf("category_%s", pc.Category)] = 1
	feats[fmt.Sprintf("brand_%s", pc.Brand)] = 1

	for name, raw := range pc.CustomAttributes {
		switch v := raw.(type) {
		case float64:
			feats[name] = v
		case int:
			feats[name] = float64(v)
		case int64:
			feats[name] = float64(v)
		case bool:
			if v {
				feats[name] = 1
			} else {
				feats[name] = 0
			}
		}
	}

	return feats
}

// FeaturesAt extracts features as though the product were listed at the
// given candidate price; price-derived features shift with it.
func FeaturesAt(pc *api.PricingContext, price decimal.Decimal) map[string]float64 {
	shifted := *pc
	shifted.CurrentPrice = price
	return Features(&shifted)
}

// Vector orders features into the model's declared feature list. Features
// the context lacks default to 0.0; features the model does not declare are
// dropped.
func Vector(feats map[string]float64, order []string) []float64 {
	vec := make([]float64, len(order))
	for i, name := range order {
		vec[i] = feats[name]
	}
	return vec
}
