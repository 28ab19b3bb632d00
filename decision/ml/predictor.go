package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"repricer/pkg/api"
	"repricer/pkg/confidence"
	engerrors "repricer/pkg/errors"
)

// Predictor scores a fixed-length feature vector. value is the raw model
// output (a price, a demand estimate, or a probability depending on the
// model's role); conf is the model's own [0,1] trust in that output.
type Predictor interface {
	Predict(features []float64) (value float64, conf float64, err error)
}

// linearSpec is one linear term set within an artifact.
type linearSpec struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

// artifact is the serialized model document stored in the artifact store.
type artifact struct {
	Algorithm string       `json:"algorithm"`
	Intercept float64      `json:"intercept"`
	Weights   []float64    `json:"weights"`
	Members   []linearSpec `json:"members,omitempty"`
}

const (
	algorithmLinear   = "linear"
	algorithmLogistic = "logistic"
	algorithmEnsemble = "ensemble"
)

// Model is a loaded, ready-to-score model: the registry spec plus its
// deserialized predictor. Models are read-only once constructed.
type Model struct {
	Spec      api.ModelSpec
	predictor Predictor
}

// NewModel deserializes an artifact document against its registry spec.
func NewModel(spec api.ModelSpec, data []byte) (*Model, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("model %s: malformed artifact: %w", spec.ID, err)
	}

	var p Predictor
	switch a.Algorithm {
	case algorithmLinear:
		p = &linearModel{intercept: a.Intercept, weights: a.Weights}
	case algorithmLogistic:
		p = &logisticModel{intercept: a.Intercept, weights: a.Weights}
	case algorithmEnsemble:
		if len(a.Members) == 0 {
			return nil, fmt.Errorf("model %s: ensemble artifact has no members", spec.ID)
		}
		members := make([]linearModel, len(a.Members))
		for i, m := range a.Members {
			members[i] = linearModel{intercept: m.Intercept, weights: m.Weights}
		}
		p = &ensembleModel{members: members}
	default:
		return nil, fmt.Errorf("model %s: unsupported algorithm %q", spec.ID, a.Algorithm)
	}

	return &Model{Spec: spec, predictor: p}, nil
}

// Predict scores the named feature map through the model's declared,
// ordered feature list.
func (m *Model) Predict(feats map[string]float64) (float64, float64, error) {
	vec := Vector(feats, m.Spec.Features)
	return m.predictor.Predict(vec)
}

type linearModel struct {
	intercept float64
	weights   []float64
}

func (m *linearModel) Predict(features []float64) (float64, float64, error) {
	v, err := dot(m.intercept, m.weights, features)
	if err != nil {
		return 0, 0, err
	}
	return v, confidence.DefaultPrediction, nil
}

// logisticModel is a binary classifier; the prediction is the positive
// class probability and confidence is how far it sits from the decision
// boundary.
type logisticModel struct {
	intercept float64
	weights   []float64
}

func (m *logisticModel) Predict(features []float64) (float64, float64, error) {
	v, err := dot(m.intercept, m.weights, features)
	if err != nil {
		return 0, 0, err
	}
	p := sigmoid(v)
	conf := p
	if 1-p > conf {
		conf = 1 - p
	}
	return p, conf, nil
}

// ensembleModel averages its members. Confidence comes from the spread of
// member predictions: low relative variance means high confidence, clamped
// to [0.1, 0.99].
type ensembleModel struct {
	members []linearModel
}

func (m *ensembleModel) Predict(features []float64) (float64, float64, error) {
	preds := make([]float64, len(m.members))
	for i := range m.members {
		v, _, err := m.members[i].Predict(features)
		if err != nil {
			return 0, 0, err
		}
		preds[i] = v
	}

	mean := stat.Mean(preds, nil)
	variance := stat.Variance(preds, nil)

	conf := 0.1
	if mean != 0 {
		conf = confidence.ClampRange(1.0-variance/(mean*mean), 0.1, 0.99)
	}
	return mean, conf, nil
}

func dot(intercept float64, weights, features []float64) (float64, error) {
	if len(weights) != len(features) {
		return 0, fmt.Errorf("feature vector length %d does not match model weights %d", len(features), len(weights))
	}
	v := intercept
	for i, w := range weights {
		v += w * features[i]
	}
	return v, nil
}

func sigmoid(x float64) float64 {
	// Stable for the magnitudes produced by pricing features.
	if x >= 0 {
		e := math.Exp(-x)
		return 1 / (1 + e)
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// ModelProvider resolves the active default model for a tenant and role.
// Implementations return a MODEL_UNAVAILABLE error when none exists.
type ModelProvider interface {
	Active(ctx context.Context, tenantID string, role api.ModelRole) (*Model, error)
}

// NoModels is a ModelProvider with no models at all; every lookup reports
// the model as unavailable. Used by file-driven CLI runs.
type NoModels struct{}

func (NoModels) Active(_ context.Context, _ string, role api.ModelRole) (*Model, error) {
	return nil, engerrors.NewModelUnavailableError(string(role))
}
