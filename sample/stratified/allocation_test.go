package stratified

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWelfordVarianceOfConstantIsZero(t *testing.T) {
	var w Welford
	for i := 0; i < 10; i++ {
		w.Add(5)
	}
	assert.Equal(t, 0.0, w.Variance())
	assert.Equal(t, 0.0, w.Stdev())
}

func TestWelfordMatchesKnownVariance(t *testing.T) {
	var w Welford
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Add(x)
	}
	assert.InDelta(t, 4.0, w.Variance(), 1e-9)
}

func TestAllocateEqualSumsToNumSamples(t *testing.T) {
	quotas, err := Allocate(AllocationEqual, 10, []int64{100, 100, 100}, nil, 300)
	assert.NoError(t, err)
	var total int64
	for _, q := range quotas {
		total += q
	}
	assert.Equal(t, int64(10), total)
}

func TestAllocateCapsAtStratumPopulation(t *testing.T) {
	quotas, err := Allocate(AllocationEqual, 10, []int64{1, 100, 100}, nil, 201)
	assert.NoError(t, err)
	assert.True(t, quotas[0] <= 1)
}

func TestAllocatePropWeightsByPopulation(t *testing.T) {
	quotas, err := Allocate(AllocationProp, 10, []int64{90, 10}, nil, 100)
	assert.NoError(t, err)
	assert.True(t, quotas[0] > quotas[1])
}

func TestAllocateManualRequiresWeightsPerStratum(t *testing.T) {
	_, err := Allocate(AllocationManual, 10, []int64{1, 2, 3}, []float64{0.5, 0.5}, 6)
	assert.Error(t, err)
}

func TestAllocateRejectsUnknownMethod(t *testing.T) {
	_, err := Allocate(Allocation("bogus"), 10, []int64{1}, nil, 1)
	assert.Error(t, err)
}

func TestOptimWeightsSumToOne(t *testing.T) {
	weights := OptimWeights([]int64{10, 20}, []float64{1, 2})
	var total float64
	for _, w := range weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestOptimWeightsAllZeroWhenNoVariance(t *testing.T) {
	weights := OptimWeights([]int64{10, 20}, []float64{0, 0})
	assert.Equal(t, []float64{0, 0}, weights)
}
