package ml

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"repricer/pkg/api"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func featureContext() *api.PricingContext {
	return &api.PricingContext{
		ProductID:         "SKU-1",
		CurrentPrice:      dec("25.00"),
		Cost:              dec("15.00"),
		InventoryLevel:    8,
		CompetitorPrices:  []decimal.Decimal{dec("20.00"), dec("24.00"), dec("30.00")},
		SalesVelocity:     2.5,
		Marketplace:       "amazon",
		Category:          "electronics",
		Brand:             "acme",
		SeasonalityFactor: 1.1,
		DemandScore:       0.7,
		BuyBoxStatus:      api.BuyBoxWon,
		TargetMargin:      0.35,
	}
}

func TestFeaturesBase(t *testing.T) {
	feats := Features(featureContext())

	assert.Equal(t, 25.0, feats["current_price"])
	assert.Equal(t, 15.0, feats["cost"])
	assert.Equal(t, 8.0, feats["inventory_level"])
	assert.Equal(t, 2.5, feats["sales_velocity"])
	assert.InDelta(t, 0.4, feats["margin"], 1e-9)
	assert.Equal(t, 1.0, feats["buy_box_won"])
}

func TestFeaturesCompetitorStats(t *testing.T) {
	feats := Features(featureContext())

	assert.Equal(t, 20.0, feats["competitor_min_price"])
	assert.Equal(t, 30.0, feats["competitor_max_price"])
	assert.InDelta(t, 24.666, feats["competitor_avg_price"], 0.001)
	assert.Equal(t, 3.0, feats["competitor_count"])

	// Two competitors price below 25.00.
	assert.Equal(t, 3.0, feats["price_rank"])
	assert.InDelta(t, 2.0/3.0, feats["price_percentile"], 1e-9)
}

func TestFeaturesNoCompetitors(t *testing.T) {
	pc := featureContext()
	pc.CompetitorPrices = nil

	feats := Features(pc)

	assert.Equal(t, 0.0, feats["competitor_count"])
	assert.Equal(t, 1.0, feats["price_rank"])
	assert.Equal(t, 0.5, feats["price_percentile"])
}

func TestFeaturesOneHot(t *testing.T) {
	feats := Features(featureContext())

	assert.Equal(t, 1.0, feats["marketplace_amazon"])
	assert.Equal(t, 1.0, feats["category_electronics"])
	assert.Equal(t, 1.0, feats["brand_acme"])
}

func TestFeaturesCustomAttributes(t *testing.T) {
	pc := featureContext()
	pc.CustomAttributes = map[string]any{
		"is_fba":       true,
		"review_score": 4.5,
		"supplier":     "acme-supply",
	}

	feats := Features(pc)

	assert.Equal(t, 1.0, feats["is_fba"])
	assert.Equal(t, 4.5, feats["review_score"])
	_, ok := feats["supplier"]
	assert.False(t, ok, "string attributes are not features")
}

func TestFeaturesAtShiftsPriceDerived(t *testing.T) {
	pc := featureContext()
	feats := FeaturesAt(pc, dec("19.00"))

	assert.Equal(t, 19.0, feats["current_price"])
	// No competitor prices below 19.00.
	assert.Equal(t, 1.0, feats["price_rank"])

	// The original context must be untouched.
	assert.True(t, pc.CurrentPrice.Equal(dec("25.00")))
}

func TestVector(t *testing.T) {
	feats := map[string]float64{"a": 1, "b": 2}
	vec := Vector(feats, []string{"b", "missing", "a"})
	assert.Equal(t, []float64{2, 0, 1}, vec)
}
