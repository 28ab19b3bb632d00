package audit

import (
	"context"
	"errors"

	"repricer/pkg/api"
)

// Sink receives both record kinds. The ClickHouse store and the webhook
// sink implement it.
type Sink interface {
	RecordExecution(ctx context.Context, rec api.ExecutionRecord) error
	RecordPrediction(ctx context.Context, rec api.PredictionRecord) error
}

// Multi fans records out to every sink. Each sink is attempted even when
// an earlier one fails; the errors are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti builds a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) RecordExecution(ctx context.Context, rec api.ExecutionRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordExecution(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) RecordPrediction(ctx context.Context, rec api.PredictionRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordPrediction(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Sink = (*Multi)(nil)
