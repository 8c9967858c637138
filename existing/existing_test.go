package existing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/internal/vectorfake"
)

func identityTransform() geo.Affine {
	return geo.Affine{OX: 0, SX: 1, RX: 0, OY: 0, RY: 0, SY: 1}
}

func TestNewRejectsSingularTransform(t *testing.T) {
	_, err := New(10, 10, geo.Affine{})
	assert.Error(t, err)
}

func TestAddAndContains(t *testing.T) {
	s, err := New(10, 10, identityTransform())
	assert.NoError(t, err)
	s.Add(geo.Point{X: 3.5, Y: 4.5})
	assert.True(t, s.ContainsIndex(3, 4))
	assert.False(t, s.ContainsIndex(3, 5))
	assert.True(t, s.ContainsCoord(3.5, 4.5))
}

func TestGetPoint(t *testing.T) {
	s, err := New(10, 10, identityTransform())
	assert.NoError(t, err)
	pt := geo.Point{X: 1.2, Y: 1.7}
	s.Add(pt)
	got, ok := s.GetPoint(1, 1)
	assert.True(t, ok)
	assert.Equal(t, pt, got)
	_, ok = s.GetPoint(9, 9)
	assert.False(t, ok)
}

func TestLoadFromLayer(t *testing.T) {
	s, err := New(10, 10, identityTransform())
	assert.NoError(t, err)
	layer := vectorfake.NewLayer("existing", "", []vectorfake.Geometry{
		{GeomType: geo.GeomPoint, Pts: []geo.Point{{X: 1.1, Y: 1.1}}},
		{GeomType: geo.GeomMultiPoint, Pts: []geo.Point{{X: 2.1, Y: 2.1}, {X: 3.1, Y: 3.1}}},
	})
	assert.NoError(t, Load(layer, s))
	assert.Equal(t, 3, s.Count())
	assert.True(t, s.ContainsIndex(1, 1))
	assert.True(t, s.ContainsIndex(2, 2))
	assert.True(t, s.ContainsIndex(3, 3))
}

func TestLoadRejectsNonPointGeometry(t *testing.T) {
	s, err := New(10, 10, identityTransform())
	assert.NoError(t, err)
	layer := vectorfake.NewLayer("existing", "", []vectorfake.Geometry{
		{GeomType: geo.GeomPolygon, Pts: []geo.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
	})
	assert.Error(t, Load(layer, s))
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := New(10, 10, identityTransform())
	assert.NoError(t, err)
	s.Add(geo.Point{X: 1.1, Y: 1.1})
	s.Add(geo.Point{X: 5.5, Y: 6.5})

	var buf bytes.Buffer
	assert.NoError(t, s.WriteSnapshot(&buf))

	restored, err := New(10, 10, identityTransform())
	assert.NoError(t, err)
	assert.NoError(t, restored.LoadSnapshot(&buf))
	assert.Equal(t, s.Count(), restored.Count())
	assert.True(t, restored.ContainsIndex(1, 1))
	assert.True(t, restored.ContainsIndex(5, 6))
}
