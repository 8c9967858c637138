package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next64(), b.Next64())
	}
}

func TestSplitDisjointStreams(t *testing.T) {
	a := Split(7, 0)
	b := Split(7, 1)
	assert.NotEqual(t, a.Next64(), b.Next64())
}

func TestShuffleIsPermutation(t *testing.T) {
	s := New(1)
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}
	Shuffle(s, idx)
	seen := make(map[int]bool)
	for _, v := range idx {
		seen[v] = true
	}
	assert.Len(t, seen, 8)
}

func TestUniformRange(t *testing.T) {
	s := New(3)
	for i := 0; i < 1000; i++ {
		v := Uniform(s)
		assert.True(t, v >= 0 && v < 1)
	}
}

func TestProbabilityClampsTo1(t *testing.T) {
	p := Probability(1000, 10, 10, SafetyFactorDefault, 1, 1.0)
	assert.Equal(t, 1.0, p)
}

func TestProbabilityFormula(t *testing.T) {
	p := Probability(10, 100, 100, 4, 3, 1.0)
	assert.InDelta(t, float64(10*4*3)/(100*100), p, 1e-9)
}

func TestNewSelectorAlwaysAcceptsAtP1(t *testing.T) {
	sel := NewSelector(1.0)
	s := New(9)
	for i := 0; i < 50; i++ {
		assert.True(t, sel.Accept(s))
	}
}

func TestPrecomputeMatchesRepeatedAccept(t *testing.T) {
	sel := NewSelector(0.5)
	seed := uint64(123)

	s1 := New(seed)
	bb := sel.Precompute(s1, 64)

	s2 := New(seed)
	for i := 0; i < 64; i++ {
		assert.Equal(t, sel.Accept(s2), bb.Get(i))
	}
}

func TestPopCountMatchesGetScan(t *testing.T) {
	sel := NewSelector(0.5)
	bb := sel.Precompute(New(7), 200)

	want := 0
	for i := 0; i < bb.Len(); i++ {
		if bb.Get(i) {
			want++
		}
	}
	assert.Equal(t, want, bb.PopCount())
}

func TestPopCountOfAllRejectingSelectorIsZero(t *testing.T) {
	sel := Selector{mask: (1 << 53) - 1}
	bb := sel.Precompute(New(7), 64)
	assert.Equal(t, 0, bb.PopCount())
}
