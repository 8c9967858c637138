package raster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/internal/rasterfake"
	"github.com/terrastrata/geosample/prng"
)

func identityTransform() geo.Affine {
	return geo.Affine{OX: 0, SX: 1, RX: 0, OY: 0, RY: 0, SY: 1}
}

func TestNewPipelineRequiresBands(t *testing.T) {
	_, err := NewPipeline(10, 10, Opts{})
	assert.Error(t, err)
}

func TestRunVisitsEveryPixelRowMajor(t *testing.T) {
	ds := rasterfake.NewDataset(4, 3, identityTransform())
	values := make([]float64, 12)
	for i := range values {
		values[i] = float64(i)
	}
	band := ds.AddBand(values, geo.Float64, 0, false)
	band.SetBlockSize(geo.BlockSize{BX: 2, BY: 2})

	pipe, err := NewPipeline(4, 3, Opts{Bands: []geo.Band{ds.Band(0)}})
	assert.NoError(t, err)

	var seen []Index
	err = pipe.Run(context.Background(), func(px Pixel) error {
		seen = append(seen, px.Index)
		assert.Equal(t, values[px.Y*4+px.X], px.Values[0])
		return nil
	})
	assert.NoError(t, err)
	assert.Len(t, seen, 12)
	// Blocks in row-major order, pixels row-major within each 2x2 block.
	assert.Equal(t, []Index{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1},
		{X: 2, Y: 0}, {X: 3, Y: 0}, {X: 2, Y: 1}, {X: 3, Y: 1},
		{X: 0, Y: 2}, {X: 1, Y: 2},
		{X: 2, Y: 2}, {X: 3, Y: 2},
	}, seen)
}

func TestNoDataDetection(t *testing.T) {
	ds := rasterfake.NewDataset(2, 1, identityTransform())
	ds.AddBand([]float64{5, -9999}, geo.Int16, -9999, true)

	pipe, err := NewPipeline(2, 1, Opts{Bands: []geo.Band{ds.Band(0)}})
	assert.NoError(t, err)

	var noData []bool
	err = pipe.Run(context.Background(), func(px Pixel) error {
		noData = append(noData, px.NoData)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []bool{false, true}, noData)
}

func TestAccessMaskGating(t *testing.T) {
	ds := rasterfake.NewDataset(2, 1, identityTransform())
	ds.AddBand([]float64{1, 2}, geo.Float64, 0, false)
	accessDS := rasterfake.NewDataset(2, 1, identityTransform())
	accessDS.AddBand([]float64{1, 0}, geo.Uint8, 0, false)

	pipe, err := NewPipeline(2, 1, Opts{Bands: []geo.Band{ds.Band(0)}, Access: accessDS.Band(0)})
	assert.NoError(t, err)

	var accessible []bool
	err = pipe.Run(context.Background(), func(px Pixel) error {
		accessible = append(accessible, px.Accessible)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []bool{true, false}, accessible)
}

func TestSelectedMatchesPrecomputedBits(t *testing.T) {
	ds := rasterfake.NewDataset(8, 1, identityTransform())
	values := make([]float64, 8)
	ds.AddBand(values, geo.Float64, 0, false)

	sel := prng.NewSelector(0.5)
	rng := prng.New(99)
	pipe, err := NewPipeline(8, 1, Opts{Bands: []geo.Band{ds.Band(0)}, Selector: sel, RNG: rng})
	assert.NoError(t, err)

	expectRng := prng.New(99)
	expectBits := sel.Precompute(expectRng, 8)

	i := 0
	err = pipe.Run(context.Background(), func(px Pixel) error {
		assert.Equal(t, expectBits.Get(i), px.Selected)
		i++
		return nil
	})
	assert.NoError(t, err)
}

func TestWriteValueReadValueRoundTrip(t *testing.T) {
	for _, pt := range []geo.PixelType{geo.Int8, geo.Uint8, geo.Int16, geo.Uint16, geo.Int32, geo.Uint32, geo.Float32, geo.Float64} {
		buf := make([]byte, pt.ByteSize())
		WriteValue(buf, 7, pt)
		assert.Equal(t, float64(7), readValue(buf, 0, pt))
	}
}
