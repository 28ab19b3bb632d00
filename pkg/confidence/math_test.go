package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate(nil))
	assert.Equal(t, 0.8, Aggregate([]float64{0.8}))
	assert.InDelta(t, 0.6, Aggregate([]float64{0.9, 0.4}), 0.01)

	// Any zero component zeroes the aggregate.
	assert.Equal(t, 0.0, Aggregate([]float64{0.9, 0}))
}

func TestAggregatePenalizesLowScores(t *testing.T) {
	geo := Aggregate([]float64{0.9, 0.1})
	arith := (0.9 + 0.1) / 2
	assert.Less(t, geo, arith)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.5))
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.Equal(t, 0.42, Clamp(0.42))
}

func TestClampRange(t *testing.T) {
	assert.Equal(t, 0.1, ClampRange(-3, 0.1, 0.99))
	assert.Equal(t, 0.99, ClampRange(2, 0.1, 0.99))
	assert.Equal(t, 0.5, ClampRange(0.5, 0.1, 0.99))
}
