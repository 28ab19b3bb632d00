package repricer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer/pkg/api"
	engerrors "repricer/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubConfig struct {
	strategy *api.Strategy
	err      error
}

func (s stubConfig) Strategy(context.Context, string, string) (*api.Strategy, error) {
	return s.strategy, s.err
}

type stubRecorder struct {
	records []api.ExecutionRecord
	err     error
}

func (r *stubRecorder) RecordExecution(_ context.Context, rec api.ExecutionRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func engineContext() *api.PricingContext {
	return &api.PricingContext{
		ProductID:        "SKU-1",
		CurrentPrice:     dec("29.99"),
		Cost:             dec("15.00"),
		CompetitorPrices: []decimal.Decimal{dec("28.50")},
		Marketplace:      "amazon",
		Category:         "electronics",
	}
}

func ruleBasedStrategy(t *testing.T) *api.Strategy {
	t.Helper()
	rule := api.Rule{
		Name:        "stay competitive",
		Condition:   "competitor_min > 0 and current_price > competitor_min",
		ActionType:  api.ActionDecreasePercentage,
		ActionValue: "1",
		IsActive:    true,
	}
	require.NoError(t, rule.Compile())

	return &api.Strategy{
		ID:       uuid.New(),
		TenantID: "t1",
		Name:     "competitive",
		Type:     api.StrategyRuleBased,
		IsActive: true,
		RuleSets: []api.RuleSet{{
			ID:       uuid.New(),
			Name:     "default",
			IsActive: true,
			Rules:    []api.Rule{rule},
		}},
		Constraints: []api.SafetyConstraint{{
			ID:        uuid.New(),
			Name:      "margin floor",
			Type:      api.ConstraintMinMargin,
			Threshold: dec("0.30"),
			Action:    api.ViolationAdjust,
			IsActive:  true,
		}},
	}
}

func TestEvaluateRuleBased(t *testing.T) {
	e := NewEngine(stubConfig{strategy: ruleBasedStrategy(t)}, nil, zerolog.Nop(), DefaultOptions())

	result, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err)

	// 29.99 * 0.99 = 29.6901, margin well above 0.30: no clamping.
	assert.True(t, result.NewPrice.Equal(dec("29.6901")), "got %s", result.NewPrice)
	assert.Equal(t, []string{"stay competitive"}, result.RulesApplied)
	assert.True(t, result.SafetyChecksPassed)
}

func TestEvaluateAppliesSafety(t *testing.T) {
	strategy := ruleBasedStrategy(t)
	strategy.Constraints = []api.SafetyConstraint{{
		ID:        uuid.New(),
		Name:      "hard floor",
		Type:      api.ConstraintMinPrice,
		Threshold: dec("29.90"),
		Action:    api.ViolationBlock,
		IsActive:  true,
	}}

	e := NewEngine(stubConfig{strategy: strategy}, nil, zerolog.Nop(), DefaultOptions())

	result, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err)

	assert.True(t, result.NewPrice.Equal(dec("29.99")), "blocked change keeps the current price")
	assert.False(t, result.SafetyChecksPassed)
}

func TestEvaluateStrategyNotFound(t *testing.T) {
	e := NewEngine(stubConfig{err: engerrors.NewStrategyNotFoundError("")}, nil, zerolog.Nop(), DefaultOptions())

	pc := engineContext()
	result, err := e.Evaluate(context.Background(), "t1", pc, "")
	require.NoError(t, err, "a missing strategy is a failed result, not an error")

	assert.True(t, result.NewPrice.Equal(pc.CurrentPrice))
	assert.Equal(t, 0.0, result.Confidence)
	assert.False(t, result.SafetyChecksPassed)
}

func TestEvaluateInvalidContext(t *testing.T) {
	e := NewEngine(stubConfig{strategy: ruleBasedStrategy(t)}, nil, zerolog.Nop(), DefaultOptions())

	pc := engineContext()
	pc.CurrentPrice = decimal.Zero

	_, err := e.Evaluate(context.Background(), "t1", pc, "")
	require.Error(t, err)

	var ee *engerrors.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, engerrors.ErrCodeInvalidContext, ee.Code)
}

func TestEvaluateMLWithoutModels(t *testing.T) {
	strategy := ruleBasedStrategy(t)
	strategy.Type = api.StrategyMLBased

	e := NewEngine(stubConfig{strategy: strategy}, nil, zerolog.Nop(), DefaultOptions())

	_, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.Error(t, err)
	assert.True(t, engerrors.IsModelUnavailable(err))
}

func TestEvaluateHybridDegradesToRules(t *testing.T) {
	strategy := ruleBasedStrategy(t)
	strategy.Type = api.StrategyHybrid

	e := NewEngine(stubConfig{strategy: strategy}, nil, zerolog.Nop(), DefaultOptions())

	result, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err, "an unavailable model degrades a hybrid, it does not fail it")

	assert.True(t, result.NewPrice.Equal(dec("29.6901")), "got %s", result.NewPrice)
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "ML path skipped") {
			found = true
		}
	}
	assert.True(t, found, "expected an ML degradation warning, got %v", result.Warnings)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEngine(stubConfig{strategy: ruleBasedStrategy(t)}, nil, zerolog.Nop(), DefaultOptions())

	first, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err)

	assert.True(t, first.NewPrice.Equal(second.NewPrice))
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.RulesApplied, second.RulesApplied)
}

func TestEvaluateRecordsExecution(t *testing.T) {
	rec := &stubRecorder{}
	e := NewEngine(stubConfig{strategy: ruleBasedStrategy(t)}, nil, zerolog.Nop(), DefaultOptions()).
		WithRecorder(rec)

	_, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "t1", rec.records[0].TenantID)
	assert.Equal(t, "SKU-1", rec.records[0].ProductID)
	assert.True(t, rec.records[0].OriginalPrice.Equal(dec("29.99")))
	assert.True(t, rec.records[0].FinalPrice.Equal(dec("29.6901")))
}

func TestEvaluateToleratesRecorderFailure(t *testing.T) {
	rec := &stubRecorder{err: errors.New("sink down")}
	e := NewEngine(stubConfig{strategy: ruleBasedStrategy(t)}, nil, zerolog.Nop(), DefaultOptions()).
		WithRecorder(rec)

	result, err := e.Evaluate(context.Background(), "t1", engineContext(), "")
	require.NoError(t, err, "audit failures never change pricing outcomes")
	assert.True(t, result.NewPrice.Equal(dec("29.6901")))
}

func TestSimulateBatch(t *testing.T) {
	e := NewEngine(stubConfig{strategy: ruleBasedStrategy(t)}, nil, zerolog.Nop(), DefaultOptions())

	contexts := []*api.PricingContext{engineContext(), engineContext()}
	results, err := e.Simulate(context.Background(), "t1", contexts, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].NewPrice.Equal(results[1].NewPrice))
}
