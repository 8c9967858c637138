package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrementCountAndStrataCounts(t *testing.T) {
	s := NewStratumStore(2, 10)
	s.IncrementCount(0)
	s.IncrementCount(0)
	s.IncrementCount(1)
	assert.Equal(t, []int64{2, 1}, s.StrataCounts())
}

func TestAddFirstXDiscardsOnOverflow(t *testing.T) {
	s := NewStratumStore(1, 2)
	s.AddFirstX(0, StratumIndex{X: 1, Y: 1})
	s.AddFirstX(0, StratumIndex{X: 2, Y: 2})
	// third push overflows the cap: the first-X store is discarded.
	s.AddFirstX(0, StratumIndex{X: 3, Y: 3})
	pool := s.Pool(0, 0, 10)
	assert.Empty(t, pool)
}

func TestPoolUsesFirstXWhenUnderfull(t *testing.T) {
	s := NewStratumStore(1, 10)
	s.AddFirstX(0, StratumIndex{X: 1, Y: 1})
	s.AddFirstX(0, StratumIndex{X: 2, Y: 2})
	pool := s.Pool(0, 0, 5)
	assert.Len(t, pool, 2)
}

func TestPoolUsesProbWhenItCoversRemaining(t *testing.T) {
	s := NewStratumStore(1, 10)
	s.AddProb(0, StratumIndex{X: 1, Y: 1})
	s.AddProb(0, StratumIndex{X: 2, Y: 2})
	s.AddFirstX(0, StratumIndex{X: 3, Y: 3})
	pool := s.Pool(0, 0, 2)
	assert.Len(t, pool, 2)
}

func TestPoolCopyDoesNotAliasStore(t *testing.T) {
	s := NewStratumStore(1, 10)
	s.AddFirstX(0, StratumIndex{X: 1, Y: 1})
	pool := s.Pool(0, 0, 5)
	pool[0] = StratumIndex{X: 99, Y: 99}
	pool2 := s.Pool(0, 0, 5)
	assert.Equal(t, StratumIndex{X: 1, Y: 1}, pool2[0])
}

func TestQueinnecPoolIsIndependentOfPool(t *testing.T) {
	s := NewStratumStore(1, 10)
	s.AddFirstX(0, StratumIndex{X: 1, Y: 1})
	s.AddQueinnecFirstX(0, StratumIndex{X: 2, Y: 2})
	assert.Equal(t, []StratumIndex{{X: 1, Y: 1}}, s.Pool(0, 0, 5))
	assert.Equal(t, []StratumIndex{{X: 2, Y: 2}}, s.QueinnecPool(0, 0, 5))
}
