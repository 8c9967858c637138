// Package clhs implements Conditioned Latin Hypercube Sampling (§4.I):
// a block-pipeline pass that streams per-band quantiles and the
// population correlation matrix into a Candidate Pool, followed by a
// simulated-annealing pass that refines an initial random sample toward
// one-per-quantile coverage and population-matching correlation.
package clhs

import (
	"context"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/terrastrata/geosample/access"
	"github.com/terrastrata/geosample/existing"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/pool"
	"github.com/terrastrata/geosample/prng"
	"github.com/terrastrata/geosample/raster"
	"github.com/terrastrata/geosample/stats"
)

// Opts configures a CLHS run (§6 `clhs` op).
type Opts struct {
	NumSamples int
	Iterations int

	// NewQuantile/NewCovariance construct one estimator per band / one
	// accumulator for the whole feature set; callers supply
	// gonumstats.NewQuantile/NewCovariance or their own implementation
	// (§ DOMAIN STACK "stats" interfaces stay swappable).
	NewQuantile   func() stats.QuantileEstimator
	NewCovariance func(nFeat int) stats.CovarianceAccumulator

	Existing *existing.Set
	Access   *access.Mask
	Seed     uint64
}

// Result is the CLHS outcome.
type Result struct {
	Points    []geo.Point
	Count     int
	Objective float64
}

// Run executes CLHS over ds's bands using opts.
func Run(ctx context.Context, ds geo.Dataset, opts Opts, out geo.OutputVectorLayer) (Result, error) {
	if opts.NumSamples <= 0 {
		return Result{}, errors.E("clhs: numSamples must be > 0")
	}
	if opts.NewQuantile == nil || opts.NewCovariance == nil {
		return Result{}, errors.E("clhs: NewQuantile and NewCovariance constructors are required")
	}
	nFeat := ds.NumBands()
	if nFeat == 0 {
		return Result{}, errors.E("clhs: dataset has no bands")
	}
	width, height := ds.Width(), ds.Height()
	transform := ds.Transform()
	rng := prng.New(opts.Seed)

	bands := make([]geo.Band, nFeat)
	for i := range bands {
		bands[i] = ds.Band(i)
	}
	var accessBand geo.Band
	if opts.Access != nil {
		accessBand = opts.Access.AsBand()
	}

	quantiles := make([]stats.QuantileEstimator, nFeat)
	for i := range quantiles {
		quantiles[i] = opts.NewQuantile()
	}
	cov := opts.NewCovariance(nFeat)
	candidates := pool.NewCandidate(nFeat)

	pipe, err := raster.NewPipeline(width, height, raster.Opts{
		Bands:    bands,
		Access:   accessBand,
		Existing: existingPredicate(opts.Existing),
		RNG:      rng,
	})
	if err != nil {
		return Result{}, err
	}
	if err := pipe.Run(ctx, func(px raster.Pixel) error {
		if px.NoData || !px.Accessible || px.Existing {
			return nil
		}
		for i, v := range px.Values {
			quantiles[i].Add(v)
		}
		cov.AddRow(px.Values)
		candidates.Add(px.Values, px.X, px.Y)
		return nil
	}); err != nil {
		return Result{}, err
	}

	corrPop := cov.Correlation()
	if err := candidates.Finalize(opts.NumSamples, corrPop); err != nil {
		return Result{}, err
	}

	breaks := make([][]float64, nFeat)
	for i := range breaks {
		breaks[i] = probes(quantiles[i], opts.NumSamples)
	}

	result, err := anneal(candidates, breaks, corrPop, opts.NumSamples, opts.Iterations, rng)
	if err != nil {
		return Result{}, err
	}

	res := Result{Objective: result.objective}
	for _, i := range result.indices {
		_, x, y := candidates.Get(i)
		X, Y := transform.ToWorld(x, y)
		if err := out.AppendPoint(geo.Point{X: X, Y: Y}); err != nil {
			return res, errors.E(err, "clhs: append point failed")
		}
		res.Points = append(res.Points, geo.Point{X: X, Y: Y})
		res.Count++
	}
	return res, nil
}

// probes returns nSamp-1 cut points at levels i/nSamp (§4.I Pass 1).
func probes(q stats.QuantileEstimator, nSamp int) []float64 {
	out := make([]float64, nSamp-1)
	for i := 1; i < nSamp; i++ {
		out[i-1] = q.Query(float64(i) / float64(nSamp))
	}
	return out
}

// bucketOf returns the quantile bucket index in [0, nSamp) that v falls
// into given nSamp-1 ascending cut points.
func bucketOf(breaks []float64, v float64) int {
	lo, hi := 0, len(breaks)
	for lo < hi {
		mid := (lo + hi) / 2
		if v < breaks[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

type annealResult struct {
	indices   []int
	objective float64
}

// anneal runs Pass 2 (§4.I): simulated annealing over a fixed-size sample
// drawn from candidates, driving per-feature quantile occupancy toward
// exactly one member per bucket and sample correlation toward corrPop.
func anneal(candidates *pool.Candidate, breaks [][]float64, corrPop [][]float64, nSamp, iterations int, rng *prng.Source) (annealResult, error) {
	nFeat := len(breaks)
	nextRaw := func() uint64 { return rng.Next64() }

	indices := make([]int, nSamp)
	used := make(map[int]bool, nSamp)
	for i := 0; i < nSamp; i++ {
		idx := drawUnused(candidates, used, nextRaw)
		indices[i] = idx
		used[idx] = true
	}

	// counts[f][bucket] = number of sample members whose feature f falls in
	// that quantile bucket; members[f][bucket] = their sample-slot indices.
	counts := make([][]int, nFeat)
	members := make([][][]int, nFeat)
	for f := 0; f < nFeat; f++ {
		counts[f] = make([]int, nSamp)
		members[f] = make([][]int, nSamp)
	}
	rows := make([][]float64, nSamp)
	for slot, idx := range indices {
		feat, _, _ := candidates.Get(idx)
		row := append([]float64(nil), feat...)
		rows[slot] = row
		for f := 0; f < nFeat; f++ {
			b := bucketOf(breaks[f], row[f])
			counts[f][b]++
			members[f][b] = append(members[f][b], slot)
		}
	}

	objective := objectiveOf(counts, rows, corrPop)

	for t := 0; t < iterations; t++ {
		temp := 1 - float64(t)/float64(iterations)
		if temp <= 0 {
			break
		}
		quantilePart := 0.0
		for f := 0; f < nFeat; f++ {
			for _, c := range counts[f] {
				quantilePart += math.Abs(float64(c - 1))
			}
		}
		if quantilePart == 0 {
			break
		}

		var targetSlot int
		if prng.Uniform(rng) < 0.5 {
			targetSlot = int(nextRaw() % uint64(nSamp))
		} else {
			targetSlot = overfilledMember(counts, members)
		}

		newIdx := drawUnused(candidates, used, nextRaw)
		oldIdx := indices[targetSlot]
		oldRow := rows[targetSlot]
		oldCounts := snapshotCounts(counts, nFeat)

		feat, _, _ := candidates.Get(newIdx)
		newRow := append([]float64(nil), feat...)

		for f := 0; f < nFeat; f++ {
			oldB := bucketOf(breaks[f], oldRow[f])
			counts[f][oldB]--
			members[f][oldB] = removeSlot(members[f][oldB], targetSlot)
			newB := bucketOf(breaks[f], newRow[f])
			counts[f][newB]++
			members[f][newB] = append(members[f][newB], targetSlot)
		}
		rows[targetSlot] = newRow
		delete(used, oldIdx)
		used[newIdx] = true
		indices[targetSlot] = newIdx

		newObjective := objectiveOf(counts, rows, corrPop)
		delta := newObjective - objective
		accept := delta <= 0 || prng.Uniform(rng) < math.Exp(-delta/temp)
		if accept {
			objective = newObjective
			continue
		}

		// Revert: restore the previous row, index, and bucket counts.
		for f := 0; f < nFeat; f++ {
			newB := bucketOf(breaks[f], newRow[f])
			counts[f][newB]--
			members[f][newB] = removeSlot(members[f][newB], targetSlot)
		}
		rows[targetSlot] = oldRow
		delete(used, newIdx)
		used[oldIdx] = true
		indices[targetSlot] = oldIdx
		for f := 0; f < nFeat; f++ {
			counts[f] = oldCounts[f]
			oldB := bucketOf(breaks[f], oldRow[f])
			members[f][oldB] = append(members[f][oldB], targetSlot)
		}
	}

	return annealResult{indices: indices, objective: objective}, nil
}

func snapshotCounts(counts [][]int, nFeat int) [][]int {
	out := make([][]int, nFeat)
	for f := range counts {
		out[f] = append([]int(nil), counts[f]...)
	}
	return out
}

func removeSlot(slots []int, slot int) []int {
	for i, s := range slots {
		if s == slot {
			return append(slots[:i], slots[i+1:]...)
		}
	}
	return slots
}

// overfilledMember picks a member from the quantile with the largest
// count in the first feature that has an over-filled quantile (§9 Open
// Question "CLHS worst sample selection": fixed to this policy).
func overfilledMember(counts [][]int, members [][][]int) int {
	for f := range counts {
		worstBucket, worstCount := -1, 1
		for b, c := range counts[f] {
			if c > worstCount {
				worstCount = c
				worstBucket = b
			}
		}
		if worstBucket >= 0 && len(members[f][worstBucket]) > 0 {
			return members[f][worstBucket][0]
		}
	}
	return 0
}

func drawUnused(candidates *pool.Candidate, used map[int]bool, next func() uint64) int {
	for {
		idx := candidates.RandomIndex(next)
		if !used[idx] {
			return idx
		}
	}
}

// objectiveOf computes O = sum |count - 1| + sum |corrSample - corrPop|
// (§4.I Pass 2 "Objective").
func objectiveOf(counts [][]int, rows [][]float64, corrPop [][]float64) float64 {
	var o float64
	for f := range counts {
		for _, c := range counts[f] {
			o += math.Abs(float64(c - 1))
		}
	}
	corrSample := sampleCorrelation(rows, len(corrPop))
	for i := range corrPop {
		for j := range corrPop[i] {
			o += math.Abs(corrSample[i][j] - corrPop[i][j])
		}
	}
	return o
}

func sampleCorrelation(rows [][]float64, nFeat int) [][]float64 {
	n := len(rows)
	means := make([]float64, nFeat)
	for _, row := range rows {
		for f := 0; f < nFeat; f++ {
			means[f] += row[f]
		}
	}
	for f := range means {
		means[f] /= float64(n)
	}
	stdev := make([]float64, nFeat)
	for _, row := range rows {
		for f := 0; f < nFeat; f++ {
			d := row[f] - means[f]
			stdev[f] += d * d
		}
	}
	for f := range stdev {
		stdev[f] = math.Sqrt(stdev[f] / float64(n))
	}

	out := make([][]float64, nFeat)
	for i := range out {
		out[i] = make([]float64, nFeat)
	}
	for i := 0; i < nFeat; i++ {
		out[i][i] = 1
		for j := i + 1; j < nFeat; j++ {
			var cov float64
			for _, row := range rows {
				cov += (row[i] - means[i]) * (row[j] - means[j])
			}
			cov /= float64(n)
			var r float64
			if stdev[i] > 0 && stdev[j] > 0 {
				r = cov / (stdev[i] * stdev[j])
			}
			out[i][j] = r
			out[j][i] = r
		}
	}
	return out
}

func existingPredicate(s *existing.Set) raster.ExistingPredicate {
	if s == nil {
		return nil
	}
	return s
}
