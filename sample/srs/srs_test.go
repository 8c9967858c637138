package srs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrastrata/geosample/existing"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/internal/rasterfake"
	"github.com/terrastrata/geosample/internal/vectorfake"
)

func identityTransform() geo.Affine {
	return geo.Affine{OX: 0, SX: 1, RX: 0, OY: 0, RY: 0, SY: 1}
}

func newDataset(w, h int) *rasterfake.Dataset {
	ds := rasterfake.NewDataset(w, h, identityTransform())
	values := make([]float64, w*h)
	for i := range values {
		values[i] = float64(i)
	}
	ds.AddBand(values, geo.Float64, 0, false)
	return ds
}

func TestRunRejectsZeroSamples(t *testing.T) {
	ds := newDataset(10, 10)
	out := vectorfake.NewOutputLayer()
	_, err := Run(context.Background(), ds, Opts{NumSamples: 0}, out)
	assert.Error(t, err)
}

func TestRunProducesRequestedCount(t *testing.T) {
	ds := newDataset(50, 50)
	out := vectorfake.NewOutputLayer()
	res, err := Run(context.Background(), ds, Opts{NumSamples: 20, Seed: 1}, out)
	assert.NoError(t, err)
	assert.Equal(t, 20, res.Count)
	assert.Equal(t, 20, out.Count())
}

func TestRunIsDeterministicForSameSeed(t *testing.T) {
	ds1 := newDataset(30, 30)
	out1 := vectorfake.NewOutputLayer()
	res1, err := Run(context.Background(), ds1, Opts{NumSamples: 10, Seed: 5}, out1)
	assert.NoError(t, err)

	ds2 := newDataset(30, 30)
	out2 := vectorfake.NewOutputLayer()
	res2, err := Run(context.Background(), ds2, Opts{NumSamples: 10, Seed: 5}, out2)
	assert.NoError(t, err)

	assert.Equal(t, res1.Points, res2.Points)
}

func TestRunRespectsMinDist(t *testing.T) {
	ds := newDataset(50, 50)
	out := vectorfake.NewOutputLayer()
	res, err := Run(context.Background(), ds, Opts{NumSamples: 30, MinDist: 5, Seed: 2}, out)
	assert.NoError(t, err)
	for i, p := range res.Points {
		for j, q := range res.Points {
			if i == j {
				continue
			}
			dx, dy := p.X-q.X, p.Y-q.Y
			assert.True(t, dx*dx+dy*dy >= 5*5-1e-6)
		}
	}
}

func TestRunSkipsExistingSamples(t *testing.T) {
	ds := newDataset(2, 1)
	set, err := existing.New(2, 1, identityTransform())
	assert.NoError(t, err)
	set.Add(geo.Point{X: 0.5, Y: 0.5})
	set.Add(geo.Point{X: 1.5, Y: 0.5})

	out := vectorfake.NewOutputLayer()
	res, err := Run(context.Background(), ds, Opts{NumSamples: 1, Existing: set, Seed: 1}, out)
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}
