package ml

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer/pkg/api"
	"repricer/pkg/confidence"
	engerrors "repricer/pkg/errors"
)

func linearSpecJSON() []byte {
	return []byte(`{"algorithm":"linear","intercept":2.0,"weights":[0.5,1.0]}`)
}

func TestNewModelLinear(t *testing.T) {
	spec := api.ModelSpec{
		ID:        uuid.New(),
		Role:      api.ModelPriceOptimization,
		Algorithm: "linear",
		Features:  []string{"a", "b"},
	}
	m, err := NewModel(spec, linearSpecJSON())
	require.NoError(t, err)

	v, conf, err := m.Predict(map[string]float64{"a": 4, "b": 3})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, v, 1e-9) // 2 + 0.5*4 + 1*3
	assert.Equal(t, confidence.DefaultPrediction, conf)
}

func TestNewModelLogistic(t *testing.T) {
	spec := api.ModelSpec{
		ID:        uuid.New(),
		Role:      api.ModelBuyBoxPrediction,
		Algorithm: "logistic",
		Features:  []string{"x"},
	}
	m, err := NewModel(spec, []byte(`{"algorithm":"logistic","intercept":0,"weights":[1]}`))
	require.NoError(t, err)

	p, conf, err := m.Predict(map[string]float64{"x": 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
	assert.InDelta(t, 0.5, conf, 1e-9)

	p, conf, err = m.Predict(map[string]float64{"x": 5})
	require.NoError(t, err)
	assert.Greater(t, p, 0.99)
	assert.Greater(t, conf, 0.99)
}

func TestNewModelEnsemble(t *testing.T) {
	spec := api.ModelSpec{
		ID:        uuid.New(),
		Role:      api.ModelDemandForecasting,
		Algorithm: "ensemble",
		Features:  []string{"x"},
	}
	artifact := []byte(`{"algorithm":"ensemble","members":[
		{"intercept":10,"weights":[0]},
		{"intercept":10,"weights":[0]},
		{"intercept":10,"weights":[0]}
	]}`)
	m, err := NewModel(spec, artifact)
	require.NoError(t, err)

	v, conf, err := m.Predict(map[string]float64{"x": 1})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v, 1e-9)
	assert.Equal(t, 0.99, conf, "agreeing members are capped at 0.99")
}

func TestNewModelEnsembleDisagreement(t *testing.T) {
	spec := api.ModelSpec{
		ID:        uuid.New(),
		Algorithm: "ensemble",
		Features:  []string{"x"},
	}
	artifact := []byte(`{"algorithm":"ensemble","members":[
		{"intercept":1,"weights":[0]},
		{"intercept":100,"weights":[0]}
	]}`)
	m, err := NewModel(spec, artifact)
	require.NoError(t, err)

	_, conf, err := m.Predict(map[string]float64{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 0.1, conf, "wild disagreement floors confidence")
}

func TestNewModelRejectsUnknownAlgorithm(t *testing.T) {
	spec := api.ModelSpec{ID: uuid.New(), Algorithm: "forest"}
	_, err := NewModel(spec, []byte(`{"algorithm":"forest"}`))
	require.Error(t, err)
}

func TestNewModelRejectsMalformedArtifact(t *testing.T) {
	spec := api.ModelSpec{ID: uuid.New()}
	_, err := NewModel(spec, []byte(`{not json`))
	require.Error(t, err)
}

func TestPredictWeightMismatch(t *testing.T) {
	spec := api.ModelSpec{
		ID:        uuid.New(),
		Algorithm: "linear",
		Features:  []string{"a"}, // artifact carries two weights
	}
	m, err := NewModel(spec, linearSpecJSON())
	require.NoError(t, err)

	_, _, err = m.Predict(map[string]float64{"a": 1})
	require.Error(t, err)
}

func TestNoModels(t *testing.T) {
	_, err := NoModels{}.Active(context.Background(), "t1", api.ModelPriceOptimization)
	require.Error(t, err)
	assert.True(t, engerrors.IsModelUnavailable(err))
}
