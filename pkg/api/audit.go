package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContextSnapshot is the part of the evaluation context preserved in the
// audit trail so an execution can be replayed and explained later.
type ContextSnapshot struct {
	InventoryLevel    int               `json:"inventory_level"`
	CompetitorPrices  []decimal.Decimal `json:"competitor_prices"`
	SalesVelocity     float64           `json:"sales_velocity"`
	BuyBoxStatus      BuyBoxStatus      `json:"buy_box_status"`
	SeasonalityFactor float64           `json:"seasonality_factor"`
	DemandScore       float64           `json:"demand_score"`
}

// ExecutionRecord is the immutable audit record of one evaluation.
type ExecutionRecord struct {
	ID           uuid.UUID `json:"id"`
	TenantID     string    `json:"tenant_id"`
	StrategyID   uuid.UUID `json:"strategy_id"`
	StrategyName string    `json:"strategy_name"`
	ProductID    string    `json:"product_id"`
	Marketplace  string    `json:"marketplace"`

	OriginalPrice decimal.Decimal `json:"original_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`

	Confidence         float64  `json:"confidence"`
	RulesApplied       []string `json:"rules_applied"`
	SafetyChecksPassed bool     `json:"safety_checks_passed"`
	Warnings           []string `json:"warnings"`
	Reason             string   `json:"reason"`

	Context     ContextSnapshot `json:"context"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// PredictionRecord is the audit record of one ML model invocation.
type PredictionRecord struct {
	ID           uuid.UUID `json:"id"`
	TenantID     string    `json:"tenant_id"`
	ModelID      uuid.UUID `json:"model_id"`
	ModelRole    ModelRole `json:"model_type"`
	ModelVersion string    `json:"model_version"`
	ProductID    string    `json:"product_id"`
	Marketplace  string    `json:"marketplace"`

	Prediction   float64   `json:"prediction_value"`
	Confidence   float64   `json:"confidence_score"`
	FeatureCount int       `json:"feature_count"`
	CreatedAt    time.Time `json:"created_at"`
}
