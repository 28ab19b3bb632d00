package ml

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repricer/pkg/api"
	"repricer/pkg/confidence"
	engerrors "repricer/pkg/errors"
)

// Grid-search defaults. These match the tuning the models were validated
// with; override them via the With* builders rather than editing here.
const (
	DefaultGridSamples   = 20
	DefaultProfitWeight  = 0.6
	DefaultRevenueWeight = 0.3
	DefaultBuyBoxWeight  = 0.1
)

var one = decimal.NewFromInt(1)

// PredictionRecorder persists model invocations for audit. Failures are
// reported but never affect the prediction itself.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, rec api.PredictionRecord) error
}

// Optimizer composes the three model roles into price decisions.
type Optimizer struct {
	models   ModelProvider
	recorder PredictionRecorder
	log      zerolog.Logger

	samples       int
	profitWeight  float64
	revenueWeight float64
	buyBoxWeight  float64
}

// NewOptimizer creates an optimizer with the default grid tuning.
func NewOptimizer(models ModelProvider, log zerolog.Logger) *Optimizer {
	if models == nil {
		models = NoModels{}
	}
	return &Optimizer{
		models:        models,
		log:           log,
		samples:       DefaultGridSamples,
		profitWeight:  DefaultProfitWeight,
		revenueWeight: DefaultRevenueWeight,
		buyBoxWeight:  DefaultBuyBoxWeight,
	}
}

// WithRecorder adds prediction audit logging.
func (o *Optimizer) WithRecorder(rec PredictionRecorder) *Optimizer {
	o.recorder = rec
	return o
}

// WithSamples overrides the number of grid candidates.
func (o *Optimizer) WithSamples(n int) *Optimizer {
	if n >= 2 {
		o.samples = n
	}
	return o
}

// WithScoreWeights overrides the composite score weights.
func (o *Optimizer) WithScoreWeights(profit, revenue, buyBox float64) *Optimizer {
	o.profitWeight = profit
	o.revenueWeight = revenue
	o.buyBoxWeight = buyBox
	return o
}

// PredictOptimalPrice runs the price-optimization regression directly. It
// fails with a MODEL_UNAVAILABLE error when the tenant has no active
// regression model.
func (o *Optimizer) PredictOptimalPrice(ctx context.Context, tenantID string, pc *api.PricingContext) (*api.PricingResult, error) {
	model, err := o.models.Active(ctx, tenantID, api.ModelPriceOptimization)
	if err != nil {
		return nil, err
	}

	feats := Features(pc)
	value, conf, err := model.Predict(feats)
	if err != nil {
		return nil, &engerrors.EngineError{
			Code:      engerrors.ErrCodeEvaluationFailed,
			Message:   err.Error(),
			Severity:  engerrors.SeverityError,
			ProductID: pc.ProductID,
		}
	}

	o.recordPrediction(ctx, tenantID, model, pc, value, conf, len(feats))

	return &api.PricingResult{
		NewPrice:           decimal.NewFromFloat(value),
		Confidence:         conf,
		Reason:             "ML price optimization",
		RulesApplied:       []string{},
		SafetyChecksPassed: true,
		Warnings:           []string{},
		Metadata: map[string]any{
			"model_id":      model.Spec.ID.String(),
			"model_version": model.Spec.Version,
			"features_used": len(model.Spec.Features),
		},
	}, nil
}

// PredictDemand predicts expected demand at each candidate price. Demand is
// clamped at zero. Fails when the tenant has no demand-forecasting model.
func (o *Optimizer) PredictDemand(ctx context.Context, tenantID string, pc *api.PricingContext, prices []decimal.Decimal) ([]float64, error) {
	model, err := o.models.Active(ctx, tenantID, api.ModelDemandForecasting)
	if err != nil {
		return nil, err
	}

	demand := make([]float64, len(prices))
	for i, price := range prices {
		v, _, err := model.Predict(FeaturesAt(pc, price))
		if err != nil {
			return nil, err
		}
		if v < 0 {
			v = 0
		}
		demand[i] = v
	}
	return demand, nil
}

// BuyBoxProbability predicts the chance of winning the buy box at a given
// price, clamped to [0,1]. Without a model it returns the neutral default
// rather than failing.
func (o *Optimizer) BuyBoxProbability(ctx context.Context, tenantID string, pc *api.PricingContext, price decimal.Decimal) (float64, error) {
	model, err := o.models.Active(ctx, tenantID, api.ModelBuyBoxPrediction)
	if err != nil {
		if engerrors.IsModelUnavailable(err) {
			return confidence.NeutralBuyBoxProbability, nil
		}
		return 0, err
	}

	p, _, err := model.Predict(FeaturesAt(pc, price))
	if err != nil {
		return 0, err
	}
	return confidence.Clamp(p), nil
}

// OptimizeWithConstraints searches the feasible price band for the
// candidate with the best composite score. The margin constraint tightens
// the lower bound to cost/(1-minMargin); when that exceeds maxPrice the
// search is infeasible and no price is returned at all. Candidates that
// fail to score are skipped; if none score, the single-shot regression is
// the fallback. The caller still passes the result through the safety
// enforcer.
func (o *Optimizer) OptimizeWithConstraints(ctx context.Context, tenantID string, pc *api.PricingContext, minPrice, maxPrice decimal.Decimal, minMargin float64) (*api.PricingResult, error) {
	floor := minPrice
	if minMargin > 0 {
		if minMargin >= 1 {
			return nil, engerrors.NewConstraintInfeasibleError("unbounded", maxPrice.String())
		}
		marginFloor := pc.Cost.Div(one.Sub(decimal.NewFromFloat(minMargin)))
		if marginFloor.GreaterThan(floor) {
			floor = marginFloor
		}
	}

	if floor.GreaterThan(maxPrice) {
		return nil, engerrors.NewConstraintInfeasibleError(floor.Round(2).String(), maxPrice.String())
	}

	step := maxPrice.Sub(floor).Div(decimal.NewFromInt(int64(o.samples - 1)))

	var best *api.PricingResult
	bestScore := 0.0
	evaluated := 0

	for i := 0; i < o.samples; i++ {
		price := floor.Add(step.Mul(decimal.NewFromInt(int64(i))))

		demand, err := o.PredictDemand(ctx, tenantID, pc, []decimal.Decimal{price})
		if err != nil {
			o.log.Warn().Str("price", price.String()).Err(err).Msg("candidate price evaluation failed")
			continue
		}

		buyBoxProb, err := o.BuyBoxProbability(ctx, tenantID, pc, price)
		if err != nil {
			o.log.Warn().Str("price", price.String()).Err(err).Msg("candidate price evaluation failed")
			continue
		}

		// Scores rank candidates; they are not money, so float math is fine
		// here. The candidate price itself stays an exact decimal.
		priceF := price.InexactFloat64()
		costF := pc.Cost.InexactFloat64()
		expectedSales := demand[0] * buyBoxProb
		revenue := priceF * expectedSales
		profit := (priceF - costF) * expectedSales
		score := profit*o.profitWeight + revenue*o.revenueWeight + buyBoxProb*100*o.buyBoxWeight

		evaluated++
		if best == nil || score > bestScore {
			bestScore = score
			margin := 0.0
			if priceF > 0 {
				margin = (priceF - costF) / priceF
			}
			best = &api.PricingResult{
				NewPrice:           price,
				Confidence:         buyBoxProb,
				Reason:             "ML-optimized price from constrained search",
				RulesApplied:       []string{},
				SafetyChecksPassed: true,
				Warnings:           []string{},
				Metadata: map[string]any{
					"expected_demand":      demand[0],
					"expected_sales":       expectedSales,
					"expected_revenue":     revenue,
					"expected_profit":      profit,
					"margin":               margin,
					"buy_box_probability":  buyBoxProb,
					"optimization_score":   score,
					"candidates_evaluated": 0, // filled below
				},
			}
		}
	}

	if best == nil {
		o.log.Info().Str("product", pc.ProductID).Msg("no grid candidate scored, falling back to direct regression")
		return o.PredictOptimalPrice(ctx, tenantID, pc)
	}

	best.Metadata["candidates_evaluated"] = evaluated
	return best, nil
}

func (o *Optimizer) recordPrediction(ctx context.Context, tenantID string, model *Model, pc *api.PricingContext, value, conf float64, featureCount int) {
	if o.recorder == nil {
		return
	}
	rec := api.PredictionRecord{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ModelID:      model.Spec.ID,
		ModelRole:    model.Spec.Role,
		ModelVersion: model.Spec.Version,
		ProductID:    pc.ProductID,
		Marketplace:  pc.Marketplace,
		Prediction:   value,
		Confidence:   conf,
		FeatureCount: featureCount,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.recorder.RecordPrediction(ctx, rec); err != nil {
		o.log.Error().Err(err).Str("model", model.Spec.ID.String()).Msg("failed to log prediction")
	}
}
