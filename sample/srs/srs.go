// Package srs implements Simple Random Sampling (§4.F): block-pipeline
// candidate retention, a full shuffle, and a min-distance post-filter.
package srs

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/terrastrata/geosample/access"
	"github.com/terrastrata/geosample/existing"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/prng"
	"github.com/terrastrata/geosample/raster"
	"github.com/terrastrata/geosample/util"
)

// Opts configures an SRS run (§6 `srs` op).
type Opts struct {
	NumSamples int
	MinDist    float64
	Existing   *existing.Set
	Access     *access.Mask
	Seed       uint64
}

// Result is the SRS outcome (§6 `srs` op: "sample layer, count").
type Result struct {
	Points []geo.Point
	Count  int
}

// Run executes SRS against ds's primary band using opts, appending accepted
// points to out.
func Run(ctx context.Context, ds geo.Dataset, opts Opts, out geo.OutputVectorLayer) (Result, error) {
	if opts.NumSamples <= 0 {
		return Result{}, errors.E("srs: numSamples must be > 0")
	}
	width, height := ds.Width(), ds.Height()
	transform := ds.Transform()

	accessRatio := 1.0
	var accessBand geo.Band
	if opts.Access != nil {
		accessBand = opts.Access.AsBand()
		if opts.Access.AccessibleArea > 0 {
			accessRatio = totalArea(width, height, transform) / opts.Access.AccessibleArea
		}
	}
	mindistFactor := 1
	if opts.MinDist > 0 {
		mindistFactor = prng.MindistFactor
	}
	p := prng.Probability(opts.NumSamples, width, height, prng.SafetyFactorDefault, mindistFactor, accessRatio)
	selector := prng.NewSelector(p)
	rng := prng.New(opts.Seed)

	pipe, err := raster.NewPipeline(width, height, raster.Opts{
		Bands:    []geo.Band{ds.Band(0)},
		Access:   accessBand,
		Existing: existingPredicate(opts.Existing),
		Selector: selector,
		RNG:      rng,
	})
	if err != nil {
		return Result{}, err
	}

	var candidates []raster.Index
	if err := pipe.Run(ctx, func(px raster.Pixel) error {
		if px.NoData || !px.Accessible || px.Existing {
			return nil
		}
		if px.Selected {
			candidates = append(candidates, px.Index)
		}
		return nil
	}); err != nil {
		return Result{}, err
	}

	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	prng.Shuffle(rng, idx)

	nm := util.NewNeighborMap(maxFloat(opts.MinDist, 1))
	res := Result{}
	for _, i := range idx {
		if res.Count == opts.NumSamples {
			break
		}
		c := candidates[i]
		X, Y := transform.ToWorld(c.X, c.Y)
		p := util.Point{X: X, Y: Y}
		if opts.MinDist > 0 && nm.NearestWithin(p, opts.MinDist) {
			continue
		}
		if err := out.AppendPoint(geo.Point{X: X, Y: Y}); err != nil {
			return res, errors.E(err, "srs: append point failed")
		}
		nm.Add(p)
		res.Points = append(res.Points, geo.Point{X: X, Y: Y})
		res.Count++
	}
	if res.Count < opts.NumSamples {
		log.Printf("srs: only %d of %d requested samples could be placed (candidate pool exhausted or min-dist packing limit reached)", res.Count, opts.NumSamples)
	}
	return res, nil
}

func totalArea(width, height int, t geo.Affine) float64 {
	x0, y0 := t.ToWorld(0, 0)
	x1, y1 := t.ToWorld(width, height)
	dx, dy := x1-x0, y1-y0
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx * dy
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func existingPredicate(s *existing.Set) raster.ExistingPredicate {
	if s == nil {
		return nil
	}
	return s
}
