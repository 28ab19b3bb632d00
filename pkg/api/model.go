package api

import "github.com/google/uuid"

// ModelRole is the semantic role a sub-model plays in the ML pricing path.
type ModelRole string

const (
	ModelPriceOptimization ModelRole = "price_optimization"
	ModelDemandForecasting ModelRole = "demand_forecasting"
	ModelBuyBoxPrediction  ModelRole = "buy_box_prediction"
)

// ModelSpec is a model-registry entry: an already-trained model artifact
// plus its declared, ordered feature list. Artifacts are loaded lazily and
// cached per (tenant, role) until a new default version is published.
type ModelSpec struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Role        ModelRole `json:"model_type"`
	Algorithm   string    `json:"algorithm"`
	Version     string    `json:"version"`
	Features    []string  `json:"features"`
	ArtifactURI string    `json:"artifact_uri"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
}
