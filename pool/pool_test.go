package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateAddAndGet(t *testing.T) {
	c := NewCandidate(2)
	c.Add([]float64{1, 2}, 3, 4)
	c.Add([]float64{5, 6}, 7, 8)
	assert.Equal(t, 2, c.Count())

	feat, x, y := c.Get(0)
	assert.Equal(t, []float64{1, 2}, feat)
	assert.Equal(t, 3, x)
	assert.Equal(t, 4, y)

	feat, x, y = c.Get(1)
	assert.Equal(t, []float64{5, 6}, feat)
	assert.Equal(t, 7, x)
	assert.Equal(t, 8, y)
}

func TestCandidateFinalizeRejectsTooFewRecords(t *testing.T) {
	c := NewCandidate(1)
	c.Add([]float64{1}, 0, 0)
	err := c.Finalize(5, nil)
	assert.Error(t, err)
}

func TestCandidateRandomIndexStaysInRange(t *testing.T) {
	c := NewCandidate(1)
	for i := 0; i < 10; i++ {
		c.Add([]float64{float64(i)}, i, i)
	}
	assert.NoError(t, c.Finalize(10, nil))

	counter := uint64(0)
	next := func() uint64 {
		counter++
		return counter * 0x9E3779B97F4A7C15
	}
	for i := 0; i < 1000; i++ {
		idx := c.RandomIndex(next)
		assert.True(t, idx >= 0 && idx < 10)
	}
}
