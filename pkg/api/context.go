// Package api defines the shared contracts of the repricing decision plane:
// the evaluation context, strategy configuration, the pricing result, and
// the audit records. All money fields are decimal.Decimal; binary floats are
// never used for price arithmetic.
package api

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BuyBoxStatus is the product's standing in the marketplace buy box.
type BuyBoxStatus string

const (
	BuyBoxWon     BuyBoxStatus = "won"
	BuyBoxLost    BuyBoxStatus = "lost"
	BuyBoxUnknown BuyBoxStatus = "unknown"
)

// PricingContext is the immutable market snapshot one evaluation runs
// against. It is constructed fresh per call by the scheduler; the engine
// never mutates it and performs no external fetch of its own.
type PricingContext struct {
	ProductID    string          `json:"product_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Cost         decimal.Decimal `json:"cost"`

	InventoryLevel   int               `json:"inventory_level"`
	CompetitorPrices []decimal.Decimal `json:"competitor_prices"`
	SalesVelocity    float64           `json:"sales_velocity"`

	Marketplace string `json:"marketplace"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`

	SeasonalityFactor float64      `json:"seasonality_factor"`
	DemandScore       float64      `json:"demand_score"`
	BuyBoxStatus      BuyBoxStatus `json:"buy_box_status"`
	TargetMargin      float64      `json:"target_margin"`

	CustomAttributes map[string]any `json:"custom_attributes,omitempty"`
}

// Validate checks the context invariants: a strictly positive current price
// and a non-negative cost.
func (c *PricingContext) Validate() error {
	if !c.CurrentPrice.IsPositive() {
		return fmt.Errorf("pricing context for %q: current_price must be positive, got %s", c.ProductID, c.CurrentPrice)
	}
	if c.Cost.IsNegative() {
		return fmt.Errorf("pricing context for %q: cost must not be negative, got %s", c.ProductID, c.Cost)
	}
	return nil
}

// Margin is the current margin (current_price - cost) / current_price.
func (c *PricingContext) Margin() decimal.Decimal {
	if !c.CurrentPrice.IsPositive() {
		return decimal.Zero
	}
	return c.CurrentPrice.Sub(c.Cost).Div(c.CurrentPrice)
}

// CompetitorMin returns the lowest competitor price. ok is false when there
// are no competitor prices in the snapshot.
func (c *PricingContext) CompetitorMin() (decimal.Decimal, bool) {
	if len(c.CompetitorPrices) == 0 {
		return decimal.Zero, false
	}
	min := c.CompetitorPrices[0]
	for _, p := range c.CompetitorPrices[1:] {
		if p.LessThan(min) {
			min = p
		}
	}
	return min, true
}

// CompetitorMax returns the highest competitor price.
func (c *PricingContext) CompetitorMax() (decimal.Decimal, bool) {
	if len(c.CompetitorPrices) == 0 {
		return decimal.Zero, false
	}
	max := c.CompetitorPrices[0]
	for _, p := range c.CompetitorPrices[1:] {
		if p.GreaterThan(max) {
			max = p
		}
	}
	return max, true
}

// CompetitorAvg returns the mean competitor price.
func (c *PricingContext) CompetitorAvg() (decimal.Decimal, bool) {
	if len(c.CompetitorPrices) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, p := range c.CompetitorPrices {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(c.CompetitorPrices)))), true
}
