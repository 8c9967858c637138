package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/internal/vectorfake"
)

func identityTransform() geo.Affine {
	return geo.Affine{OX: 0, SX: 1, RX: 0, OY: 0, RY: 0, SY: 1}
}

func TestBuildRejectsNonLineGeometry(t *testing.T) {
	layer := vectorfake.NewLayer("access", "", []vectorfake.Geometry{
		{GeomType: geo.GeomPoint, Pts: []geo.Point{{X: 0, Y: 0}}},
	})
	_, err := Build(context.Background(), vectorfake.Ops{}, layer, 10, 10, identityTransform(), 1, 0)
	assert.Error(t, err)
}

func TestBuildRejectsEmptyLayer(t *testing.T) {
	layer := vectorfake.NewLayer("access", "", nil)
	_, err := Build(context.Background(), vectorfake.Ops{}, layer, 10, 10, identityTransform(), 1, 0)
	assert.Error(t, err)
}

func TestBuildRasterizesLine(t *testing.T) {
	// A square ring covering the left half of a 10x10 grid.
	layer := vectorfake.NewLayer("access", "", []vectorfake.Geometry{
		{GeomType: geo.GeomLineString, Pts: []geo.Point{
			{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 10}, {X: 0, Y: 10},
		}},
	})
	mask, err := Build(context.Background(), vectorfake.Ops{}, layer, 10, 10, identityTransform(), 0, 0)
	assert.NoError(t, err)
	assert.True(t, mask.Accessible(2, 5))
	assert.False(t, mask.Accessible(8, 5))
	assert.True(t, mask.AccessibleArea > 0)
}

func TestBuildInnerBufferUsesPerLineNotUnionErosion(t *testing.T) {
	layer := vectorfake.NewLayer("access", "", []vectorfake.Geometry{
		{GeomType: geo.GeomLineString, Pts: []geo.Point{{X: 0, Y: 0}, {X: 5, Y: 0}}},
		{GeomType: geo.GeomLineString, Pts: []geo.Point{{X: 0, Y: 8}, {X: 5, Y: 8}}},
	})
	ops := &vectorfake.BufferRecordingOps{}
	_, err := Build(context.Background(), ops, layer, 10, 10, identityTransform(), 2, 1)
	assert.NoError(t, err)

	var innerCalls, outerCalls int
	for _, c := range ops.Calls {
		switch c.Distance {
		case 1:
			innerCalls++
		case 2:
			outerCalls++
		case -1:
			t.Fatalf("inner buffer must not be computed by eroding the union with a negative distance")
		}
	}
	assert.Equal(t, 2, innerCalls, "expected one inner buffer call per input line, not one erosion of the union")
	assert.Equal(t, 2, outerCalls, "expected one outer buffer call per input line")
}

func TestAsBandReadWindow(t *testing.T) {
	layer := vectorfake.NewLayer("access", "", []vectorfake.Geometry{
		{GeomType: geo.GeomLineString, Pts: []geo.Point{
			{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 10}, {X: 0, Y: 10},
		}},
	})
	mask, err := Build(context.Background(), vectorfake.Ops{}, layer, 10, 10, identityTransform(), 0, 0)
	assert.NoError(t, err)
	band := mask.AsBand()
	assert.Equal(t, geo.Uint8, band.PixelType())

	dst := make([]byte, 10*10)
	_, _, err = band.ReadBlock(context.Background(), 0, 0, dst)
	assert.NoError(t, err)
	assert.Equal(t, byte(1), dst[5*10+2])
	assert.Equal(t, byte(0), dst[5*10+8])

	assert.Error(t, band.WriteWindow(context.Background(), 0, 0, 1, 1, []byte{1}))
}
