// Package stratified implements the Stratified sampler (§4.G): per-stratum
// pools built during block iteration, an optional Queinnec focal-window
// eligibility pass, allocation-policy-driven quotas, and a per-stratum
// selection walk subject to existing-sample and min-distance filters.
package stratified

import (
	"context"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/terrastrata/geosample/access"
	"github.com/terrastrata/geosample/existing"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/pool"
	"github.com/terrastrata/geosample/prng"
	"github.com/terrastrata/geosample/raster"
	"github.com/terrastrata/geosample/util"
)

// Method selects between the two stratified variants (§4.G).
type Method string

const (
	MethodRandom   Method = "random"
	MethodQueinnec Method = "queinnec"
)

// Opts configures a Stratified run (§6 `strat` op).
type Opts struct {
	NumStrata  int
	NumSamples int
	Allocation Allocation
	Weights    []float64

	Method Method
	WRow   int // required when Method == MethodQueinnec
	WCol   int

	SecondaryBand geo.Band // required when Allocation == AllocationOptim

	MinDist  float64
	Existing *existing.Set
	Force    bool
	Access   *access.Mask
	FirstX   int // 0 defaults to pool.DefaultFirstX
	Seed     uint64
}

// Result is the Stratified outcome.
type Result struct {
	Points            []geo.Point
	Count             int
	StrataSampleCount []int64
}

// scanlineBand forces full-width block tiling on an underlying band, so
// raster.Pipeline visits pixels in true global row-major order regardless
// of the band's native tile layout -- required for the Queinnec rolling
// focal window (§9 "the source reads ... scanlines ... for the FocalWindow
// struct to work well").
type scanlineBand struct {
	geo.Band
	width, height int
}

func (s scanlineBand) NativeBlockSize() geo.BlockSize {
	h := s.height
	if h > 128 {
		h = 128
	}
	return geo.BlockSize{BX: s.width, BY: h}
}

// ReadBlock reads scanline block (0, by) as a full-width window, so the
// underlying band's own tile layout never decides which pixels are read.
func (s scanlineBand) ReadBlock(ctx context.Context, bx, by int, dst []byte) (int, int, error) {
	bs := s.NativeBlockSize()
	y0, h := by*bs.BY, bs.BY
	if y0+h > s.height {
		h = s.height - y0
	}
	return s.width, h, s.Band.ReadWindow(ctx, 0, y0, s.width, h, dst)
}

// Run executes the Stratified sampler over ds's primary band (already
// containing strata labels) using opts.
func Run(ctx context.Context, ds geo.Dataset, opts Opts, out geo.OutputVectorLayer) (Result, error) {
	if opts.NumStrata <= 0 {
		return Result{}, errors.E("stratified: numStrata must be > 0")
	}
	firstX := opts.FirstX
	if firstX == 0 {
		firstX = pool.DefaultFirstX
	}
	width, height := ds.Width(), ds.Height()
	transform := ds.Transform()

	var fw *FocalWindow
	if opts.Method == MethodQueinnec {
		var err error
		fw, err = NewFocalWindow(opts.WRow, opts.WCol, width)
		if err != nil {
			return Result{}, err
		}
	}

	accessRatio := 1.0
	var accessBand geo.Band
	if opts.Access != nil {
		accessBand = opts.Access.AsBand()
		if opts.Access.AccessibleArea > 0 {
			accessRatio = rasterArea(width, height, transform) / opts.Access.AccessibleArea
		}
	}
	mindistFactor := 1
	if opts.MinDist > 0 {
		mindistFactor = prng.MindistFactor
	}
	p := prng.Probability(opts.NumSamples, width, height, prng.SafetyFactorDefault, mindistFactor, accessRatio)
	selector := prng.NewSelector(p)
	rng := prng.New(opts.Seed)

	var queinnecSelector prng.Selector
	if opts.Method == MethodQueinnec {
		pq := prng.Probability(opts.NumSamples, width, height, prng.SafetyFactorQueinnec, mindistFactor, accessRatio)
		queinnecSelector = prng.NewSelector(pq)
	}

	store := pool.NewStratumStore(opts.NumStrata, firstX)
	existingSamples := make([][]geo.Point, opts.NumStrata)

	var welford []Welford
	if opts.Allocation == AllocationOptim {
		welford = make([]Welford, opts.NumStrata)
	}

	bands := []geo.Band{scanlineBand{Band: ds.Band(0), width: width, height: height}}
	if opts.SecondaryBand != nil {
		bands = append(bands, scanlineBand{Band: opts.SecondaryBand, width: width, height: height})
	}

	var existingPred raster.ExistingPredicate
	if opts.Existing != nil {
		existingPred = opts.Existing
	}
	pipe, err := raster.NewPipeline(width, height, raster.Opts{
		Bands:    bands,
		Access:   accessBand,
		Existing: existingPred,
		Selector: selector,
		RNG:      rng,
	})
	if err != nil {
		return Result{}, err
	}

	lastRow := -1
	var ring []float64
	if fw != nil {
		ring = make([]float64, opts.WCol)
	}
	err = pipe.Run(ctx, func(px raster.Pixel) error {
		if fw != nil && px.Y != lastRow {
			fw.Reset(px.Y)
			lastRow = px.Y
		}
		if px.NoData {
			return nil
		}
		v := int(math.Round(px.Values[0]))
		if v < 0 || v >= opts.NumStrata {
			return errors.E("stratified: stratum value outside [0, numStrata) and not no-data",
				"band 0", "value", px.Values[0])
		}
		store.IncrementCount(v)
		if opts.Allocation == AllocationOptim && len(px.Values) > 1 {
			welford[v].Add(px.Values[1])
		}

		alreadySampled := px.Existing
		if alreadySampled && opts.Existing != nil {
			if pt, ok := opts.Existing.GetPoint(px.X, px.Y); ok {
				existingSamples[v] = append(existingSamples[v], pt)
			}
		}

		idx := pool.StratumIndex{X: px.X, Y: px.Y}
		if px.Accessible && !alreadySampled {
			store.AddFirstX(v, idx)
			if px.Selected {
				store.AddProb(v, idx)
			}
			if fw != nil {
				fw.SetValid(px.Y, px.X, true)
			}
		}

		if fw != nil {
			// ring holds the last wcol raw stratum values seen on this row,
			// row-cyclic by column like FocalWindow's own buffers; a window
			// only becomes checkable once wcol columns have been read, and
			// it is then centred wcol/2 columns behind the current one
			// (§3 "Focal-window matrix (Queinnec)").
			ring[px.X%len(ring)] = px.Values[0]
			if px.X >= len(ring)-1 {
				homogeneous := true
				for _, rv := range ring {
					if rv != ring[0] {
						homogeneous = false
						break
					}
				}
				centerCol := px.X - fw.HPad()
				fw.SetHomogeneous(px.Y, centerCol, homogeneous)
				fw.SetValue(px.Y, centerCol, ring[centerCol%len(ring)])
				centerRow := px.Y - fw.VPad()
				if fw.Check(centerCol, centerRow) {
					qIdx := pool.StratumIndex{X: centerCol, Y: centerRow}
					store.AddQueinnecFirstX(v, qIdx)
					if queinnecSelector.Accept(rng) {
						store.AddQueinnecProb(v, qIdx)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	strataCounts := store.StrataCounts()
	var weights []float64
	switch opts.Allocation {
	case AllocationManual:
		weights = opts.Weights
	case AllocationOptim:
		stdevs := make([]float64, opts.NumStrata)
		for i := range stdevs {
			stdevs[i] = welford[i].Stdev()
		}
		weights = OptimWeights(strataCounts, stdevs)
	}
	totalPixels := int64(0)
	for _, c := range strataCounts {
		totalPixels += c
	}
	quotas, err := Allocate(opts.Allocation, int64(opts.NumSamples), strataCounts, weights, totalPixels)
	if err != nil {
		return Result{}, err
	}

	res := Result{StrataSampleCount: quotas}
	nm := util.NewNeighborMap(maxFloat(opts.MinDist, 1))

	for s := 0; s < opts.NumStrata; s++ {
		quota := quotas[s]
		placed := int64(0)

		// (i) existing samples first.
		for _, pt := range existingSamples[s] {
			if placed >= quota {
				break
			}
			if !opts.Force && opts.MinDist > 0 && nm.NearestWithin(util.Point{X: pt.X, Y: pt.Y}, opts.MinDist) {
				continue
			}
			if err := out.AppendPoint(pt); err != nil {
				return res, errors.E(err, "stratified: append existing point failed")
			}
			nm.Add(util.Point{X: pt.X, Y: pt.Y})
			res.Points = append(res.Points, pt)
			res.Count++
			placed++
		}

		// (ii) Queinnec pool.
		if fw != nil {
			qpool := store.QueinnecPool(s, int64(len(existingSamples[s])), quota)
			idxOrder := make([]int, len(qpool))
			for i := range idxOrder {
				idxOrder[i] = i
			}
			prng.Shuffle(rng, idxOrder)
			for _, oi := range idxOrder {
				if placed >= quota {
					break
				}
				c := qpool[oi]
				placed += placePoint(out, transform, nm, c, opts.MinDist, &res)
			}
		}

		// (iii) ordinary pool.
		ppool := store.Pool(s, int64(len(existingSamples[s])), quota)
		idxOrder := make([]int, len(ppool))
		for i := range idxOrder {
			idxOrder[i] = i
		}
		prng.Shuffle(rng, idxOrder)
		for _, oi := range idxOrder {
			if placed >= quota {
				break
			}
			c := ppool[oi]
			placed += placePoint(out, transform, nm, c, opts.MinDist, &res)
		}

		if placed < quota {
			log.Printf("stratified: stratum %d placed %d of %d requested samples", s, placed, quota)
		}
	}

	return res, nil
}

func placePoint(out geo.OutputVectorLayer, transform geo.Affine, nm *util.NeighborMap, c pool.StratumIndex, mindist float64, res *Result) int64 {
	X, Y := transform.ToWorld(c.X, c.Y)
	p := util.Point{X: X, Y: Y}
	if mindist > 0 && nm.NearestWithin(p, mindist) {
		return 0
	}
	if err := out.AppendPoint(geo.Point{X: X, Y: Y}); err != nil {
		return 0
	}
	nm.Add(p)
	res.Points = append(res.Points, geo.Point{X: X, Y: Y})
	res.Count++
	return 1
}

func rasterArea(width, height int, t geo.Affine) float64 {
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
