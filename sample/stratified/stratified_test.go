package stratified

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/internal/rasterfake"
	"github.com/terrastrata/geosample/internal/vectorfake"
)

func identityTransform() geo.Affine {
	return geo.Affine{OX: 0, SX: 1, RX: 0, OY: 0, RY: 0, SY: 1}
}

func halfAndHalfStrata(w, h int) []float64 {
	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.0
			if x >= w/2 {
				v = 1
			}
			values[y*w+x] = v
		}
	}
	return values
}

func TestRunRandomProportionalAllocation(t *testing.T) {
	w, h := 20, 20
	ds := rasterfake.NewDataset(w, h, identityTransform())
	ds.AddBand(halfAndHalfStrata(w, h), geo.Uint8, 0, false)

	out := vectorfake.NewOutputLayer()
	res, err := Run(context.Background(), ds, Opts{
		NumStrata: 2, NumSamples: 10, Allocation: AllocationProp, Method: MethodRandom, Seed: 1,
	}, out)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(res.StrataSampleCount))
	assert.True(t, res.Count > 0)
	assert.Equal(t, res.Count, out.Count())
}

func TestRunRejectsStratumValueOutOfRange(t *testing.T) {
	w, h := 4, 4
	ds := rasterfake.NewDataset(w, h, identityTransform())
	values := make([]float64, w*h)
	values[0] = 5 // out of [0, numStrata) range
	ds.AddBand(values, geo.Uint8, 255, true)

	out := vectorfake.NewOutputLayer()
	_, err := Run(context.Background(), ds, Opts{
		NumStrata: 2, NumSamples: 4, Allocation: AllocationEqual, Method: MethodRandom, Seed: 1,
	}, out)
	assert.Error(t, err)
}

func TestRunQueinnecHomogeneousInterior(t *testing.T) {
	w, h := 20, 20
	ds := rasterfake.NewDataset(w, h, identityTransform())
	values := make([]float64, w*h) // all stratum 0: fully homogeneous
	ds.AddBand(values, geo.Uint8, 0, false)

	out := vectorfake.NewOutputLayer()
	res, err := Run(context.Background(), ds, Opts{
		NumStrata: 1, NumSamples: 5, Allocation: AllocationEqual,
		Method: MethodQueinnec, WRow: 3, WCol: 3, Seed: 7,
	}, out)
	assert.NoError(t, err)
	assert.True(t, res.Count > 0)
}

func rowStripedStrata(w, h int) []float64 {
	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		v := float64(y % 2)
		for x := 0; x < w; x++ {
			values[y*w+x] = v
		}
	}
	return values
}

// TestRunQueinnecRowStripedCompletes drives the full Run path over a
// raster where every row is internally constant but alternates value from
// its neighbours (§4.G: not a valid Queinnec neighbourhood, even though
// each row alone is horizontally homogeneous). It is a regression guard for
// Run wiring the vertical raw-value check into the pipeline; the precise
// rejection behaviour is asserted directly against FocalWindow.Check in
// focal_test.go.
func TestRunQueinnecRowStripedCompletes(t *testing.T) {
	w, h := 20, 20
	ds := rasterfake.NewDataset(w, h, identityTransform())
	ds.AddBand(rowStripedStrata(w, h), geo.Uint8, 0, false)

	out := vectorfake.NewOutputLayer()
	res, err := Run(context.Background(), ds, Opts{
		NumStrata: 2, NumSamples: 5, Allocation: AllocationEqual,
		Method: MethodQueinnec, WRow: 3, WCol: 3, Seed: 7,
	}, out)
	assert.NoError(t, err)
	assert.Equal(t, res.Count, out.Count())
}

func TestRunManualAllocationRequiresWeights(t *testing.T) {
	w, h := 4, 4
	ds := rasterfake.NewDataset(w, h, identityTransform())
	ds.AddBand(halfAndHalfStrata(w, h), geo.Uint8, 0, false)

	out := vectorfake.NewOutputLayer()
	_, err := Run(context.Background(), ds, Opts{
		NumStrata: 2, NumSamples: 4, Allocation: AllocationManual, Method: MethodRandom, Seed: 1,
	}, out)
	assert.Error(t, err)
}
