// Package repricer provides the pricing decision engine: strategy dispatch,
// rule evaluation, ML optimization, safety enforcement, and audit logging.
// Evaluation is synchronous and stateless per call; the engine is safe for
// concurrent use because contexts are immutable and configuration arrives
// as read-only snapshots.
package repricer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repricer/decision/ml"
	"repricer/decision/rules"
	"repricer/decision/safety"
	"repricer/pkg/api"
	"repricer/pkg/confidence"
	engerrors "repricer/pkg/errors"
)

// defaultMinMargin is the optimizer's margin floor when a strategy does not
// configure one.
const defaultMinMargin = 0.1

// ConfigProvider resolves strategies from the configuration snapshot. An
// empty strategyID selects the tenant's default strategy. Implementations
// return a STRATEGY_NOT_FOUND error when nothing is configured.
type ConfigProvider interface {
	Strategy(ctx context.Context, tenantID, strategyID string) (*api.Strategy, error)
}

// Recorder persists execution records for audit and replay. Recording is
// best-effort: failures are reported out of band and never change the
// evaluation outcome.
type Recorder interface {
	RecordExecution(ctx context.Context, rec api.ExecutionRecord) error
}

// Options carries the tuning constants of the evaluation paths.
type Options struct {
	UndercutFactor decimal.Decimal
	GridSamples    int
	ProfitWeight   float64
	RevenueWeight  float64
	BuyBoxWeight   float64
}

// DefaultOptions returns the tuning the engine ships with.
func DefaultOptions() Options {
	return Options{
		UndercutFactor: rules.DefaultUndercutFactor,
		GridSamples:    ml.DefaultGridSamples,
		ProfitWeight:   ml.DefaultProfitWeight,
		RevenueWeight:  ml.DefaultRevenueWeight,
		BuyBoxWeight:   ml.DefaultBuyBoxWeight,
	}
}

// Engine evaluates pricing for one context at a time.
type Engine struct {
	config    ConfigProvider
	rules     *rules.Engine
	safety    *safety.Enforcer
	optimizer *ml.Optimizer
	recorder  Recorder
	log       zerolog.Logger
}

// NewEngine builds an engine. models may be nil for deployments without an
// ML path; ML-based strategies then fail with MODEL_UNAVAILABLE.
func NewEngine(config ConfigProvider, models ml.ModelProvider, log zerolog.Logger, opts Options) *Engine {
	ruleEngine := rules.NewEngine(log)
	if !opts.UndercutFactor.IsZero() {
		ruleEngine = ruleEngine.WithUndercutFactor(opts.UndercutFactor)
	}

	optimizer := ml.NewOptimizer(models, log)
	if opts.GridSamples > 0 {
		optimizer = optimizer.WithSamples(opts.GridSamples)
	}
	if opts.ProfitWeight != 0 || opts.RevenueWeight != 0 || opts.BuyBoxWeight != 0 {
		optimizer = optimizer.WithScoreWeights(opts.ProfitWeight, opts.RevenueWeight, opts.BuyBoxWeight)
	}

	return &Engine{
		config:    config,
		rules:     ruleEngine,
		safety:    safety.NewEnforcer(log),
		optimizer: optimizer,
		log:       log,
	}
}

// WithRecorder attaches an execution audit recorder.
func (e *Engine) WithRecorder(rec Recorder) *Engine {
	e.recorder = rec
	return e
}

// Optimizer exposes the ML optimizer for callers that drive the
// constrained search directly.
func (e *Engine) Optimizer() *ml.Optimizer { return e.optimizer }

// Evaluate computes a new price for the context using the named strategy,
// or the tenant's default strategy when strategyID is empty. A missing
// strategy yields the failed result contract (current price, zero
// confidence, safety not passed) rather than an error; an infeasible ML
// constraint search propagates as a typed error with no partial price.
func (e *Engine) Evaluate(ctx context.Context, tenantID string, pc *api.PricingContext, strategyID string) (*api.PricingResult, error) {
	if err := pc.Validate(); err != nil {
		return nil, engerrors.NewInvalidContextError(pc.ProductID, err)
	}

	strategy, err := e.config.Strategy(ctx, tenantID, strategyID)
	if err != nil {
		if engerrors.IsStrategyNotFound(err) {
			e.log.Warn().Str("tenant", tenantID).Str("strategy_id", strategyID).Msg("no pricing strategy available")
			return api.FailedResult(pc, "No valid pricing strategy found"), nil
		}
		return nil, err
	}

	candidate, err := e.candidate(ctx, tenantID, strategy, pc)
	if err != nil {
		return nil, err
	}

	final := e.safety.Enforce(strategy.Constraints, candidate, pc)

	e.record(ctx, tenantID, strategy, pc, final)

	return final, nil
}

// Simulate runs the full pipeline for each context without applying any
// price; the only side effect is audit logging. Used for dry runs.
func (e *Engine) Simulate(ctx context.Context, tenantID string, contexts []*api.PricingContext, strategyID string) ([]*api.PricingResult, error) {
	results := make([]*api.PricingResult, 0, len(contexts))
	for _, pc := range contexts {
		res, err := e.Evaluate(ctx, tenantID, pc, strategyID)
		if err != nil {
			return nil, fmt.Errorf("simulating product %s: %w", pc.ProductID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// candidate produces the provisional result for the strategy's type. The
// strategy type set is closed; an unknown value is a configuration defect.
func (e *Engine) candidate(ctx context.Context, tenantID string, strategy *api.Strategy, pc *api.PricingContext) (*api.PricingResult, error) {
	switch strategy.Type {
	case api.StrategyRuleBased:
		return e.evaluateRules(strategy, pc), nil

	case api.StrategyMLBased:
		return e.evaluateML(ctx, tenantID, strategy, pc)

	case api.StrategyHybrid:
		return e.evaluateHybrid(ctx, tenantID, strategy, pc)

	default:
		return nil, &engerrors.EngineError{
			Code:     engerrors.ErrCodeEvaluationFailed,
			Message:  fmt.Sprintf("unknown strategy type %q", strategy.Type),
			Severity: engerrors.SeverityError,
		}
	}
}

func (e *Engine) evaluateRules(strategy *api.Strategy, pc *api.PricingContext) *api.PricingResult {
	matched := e.rules.ApplicableRules(strategy, pc)
	return e.rules.Apply(matched, pc)
}

// evaluateML runs the constrained grid search when the strategy configures
// a price band, and the direct regression otherwise.
func (e *Engine) evaluateML(ctx context.Context, tenantID string, strategy *api.Strategy, pc *api.PricingContext) (*api.PricingResult, error) {
	cfg := strategy.Config
	if cfg.MinPrice != nil && cfg.MaxPrice != nil {
		minMargin := cfg.MinMargin
		if minMargin <= 0 {
			minMargin = defaultMinMargin
		}
		return e.optimizer.OptimizeWithConstraints(ctx, tenantID, pc, *cfg.MinPrice, *cfg.MaxPrice, minMargin)
	}
	return e.optimizer.PredictOptimalPrice(ctx, tenantID, pc)
}

// evaluateHybrid runs both paths and keeps the candidate reporting higher
// confidence; ties favor the rule result, which is the explainable one.
// When the ML path has no usable model or an infeasible band, the hybrid
// degrades to the rule result with a warning instead of failing.
func (e *Engine) evaluateHybrid(ctx context.Context, tenantID string, strategy *api.Strategy, pc *api.PricingContext) (*api.PricingResult, error) {
	ruleResult := e.evaluateRules(strategy, pc)

	mlResult, err := e.evaluateML(ctx, tenantID, strategy, pc)
	if err != nil {
		if engerrors.IsModelUnavailable(err) || engerrors.IsConstraintInfeasible(err) {
			ruleResult.Warnings = append(ruleResult.Warnings, fmt.Sprintf("ML path skipped: %v", err))
			return ruleResult, nil
		}
		return nil, err
	}

	chosen, other := ruleResult, mlResult
	if mlResult.Confidence > ruleResult.Confidence {
		chosen, other = mlResult, ruleResult
	}

	chosen.Metadata["hybrid_rule_price"] = ruleResult.NewPrice.String()
	chosen.Metadata["hybrid_ml_price"] = mlResult.NewPrice.String()
	chosen.Metadata["hybrid_blended_confidence"] = confidence.Aggregate([]float64{ruleResult.Confidence, mlResult.Confidence})
	chosen.Warnings = append(chosen.Warnings, other.Warnings...)

	return chosen, nil
}

// record persists the execution audit trail. Failures are logged and
// swallowed: an audit outage must never change a pricing decision.
func (e *Engine) record(ctx context.Context, tenantID string, strategy *api.Strategy, pc *api.PricingContext, result *api.PricingResult) {
	if e.recorder == nil {
		return
	}

	rec := api.ExecutionRecord{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		StrategyID:         strategy.ID,
		StrategyName:       strategy.Name,
		ProductID:          pc.ProductID,
		Marketplace:        pc.Marketplace,
		OriginalPrice:      pc.CurrentPrice,
		FinalPrice:         result.NewPrice,
		Confidence:         result.Confidence,
		RulesApplied:       result.RulesApplied,
		SafetyChecksPassed: result.SafetyChecksPassed,
		Warnings:           result.Warnings,
		Reason:             result.Reason,
		Context: api.ContextSnapshot{
			InventoryLevel:    pc.InventoryLevel,
			CompetitorPrices:  pc.CompetitorPrices,
			SalesVelocity:     pc.SalesVelocity,
			BuyBoxStatus:      pc.BuyBoxStatus,
			SeasonalityFactor: pc.SeasonalityFactor,
			DemandScore:       pc.DemandScore,
		},
		EvaluatedAt: time.Now().UTC(),
	}

	if err := e.recorder.RecordExecution(ctx, rec); err != nil {
		e.log.Error().Err(err).Str("product", pc.ProductID).Msg("failed to log rule execution")
	}
}
