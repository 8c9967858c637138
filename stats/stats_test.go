package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatMulIdentity(t *testing.T) {
	a := [][]float64{{1, 2}, {3, 4}}
	identity := [][]float64{{1, 0}, {0, 1}}
	got := MatMul(a, identity)
	assert.Equal(t, a, got)
}

func TestMatMulDimensions(t *testing.T) {
	a := [][]float64{{1, 2, 3}, {4, 5, 6}}
	b := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	got := MatMul(a, b)
	assert.Equal(t, [][]float64{{4, 5}, {10, 11}}, got)
}

func TestMatMulEmpty(t *testing.T) {
	assert.Nil(t, MatMul(nil, nil))
}
