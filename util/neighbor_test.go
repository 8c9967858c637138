package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeighborMapEmpty(t *testing.T) {
	nm := NewNeighborMap(5)
	assert.False(t, nm.NearestWithin(Point{X: 0, Y: 0}, 5))
	assert.Equal(t, 0, nm.Len())
}

func TestNeighborMapWithinRange(t *testing.T) {
	nm := NewNeighborMap(10)
	nm.Add(Point{X: 0, Y: 0})
	assert.True(t, nm.NearestWithin(Point{X: 3, Y: 3}, 5))
	assert.False(t, nm.NearestWithin(Point{X: 100, Y: 100}, 5))
}

func TestNeighborMapZeroMindistNeverBlocks(t *testing.T) {
	nm := NewNeighborMap(1)
	nm.Add(Point{X: 0, Y: 0})
	assert.False(t, nm.NearestWithin(Point{X: 0, Y: 0}, 0))
}

func TestNeighborMapCrossesCellBoundary(t *testing.T) {
	nm := NewNeighborMap(10)
	nm.Add(Point{X: 9.9, Y: 9.9})
	assert.True(t, nm.NearestWithin(Point{X: 10.1, Y: 10.1}, 1))
}

func TestNeighborMapLen(t *testing.T) {
	nm := NewNeighborMap(1)
	nm.Add(Point{X: 0, Y: 0})
	nm.Add(Point{X: 1, Y: 1})
	nm.Add(Point{X: 2, Y: 2})
	assert.Equal(t, 3, nm.Len())
}
