// Package balanced exposes the collaborator interfaces a balanced-sampling
// algorithm (original_source/sgs/sample/balanced, via its
// extern/BalancedSampling vendor dependency) would need, without
// implementing the algorithm itself: the retrieval pack has no Go
// equivalent of that vendor library, so wiring it in would mean
// fabricating a dependency that does not exist in the ecosystem. The
// interfaces below are the seam a future implementation would plug into.
// sample/stratified's `optim` allocation policy does not use them; it
// keeps its own per-stratum weights.
package balanced

import "github.com/terrastrata/geosample/geo"

// Allocation assigns a per-unit sampling weight from a scalar covariate,
// the same role stratified.OptimWeights plays per stratum (§4.G "optim").
type Allocation interface {
	// Weight returns the relative sampling weight for the unit at (x, y)
	// given its covariate value v.
	Weight(x, y int, v float64) float64
}

// Inclusion computes per-unit target inclusion probabilities from a total
// sample size and a set of weights, the quantity a balanced/spatially-
// balanced design (e.g. local pivotal method, cube method) would use to
// decide admission instead of Stratified's pool-and-shuffle approach.
type Inclusion interface {
	// Probabilities returns one inclusion probability per unit, summing to
	// numSamples, given each unit's weight.
	Probabilities(numSamples int, weights []float64) []float64
}

// ProportionalAllocation is the simplest Allocation: weight equals the
// covariate value itself, matching the `prop` policy's intent without the
// stratum grouping (§4.G "prop").
type ProportionalAllocation struct{}

func (ProportionalAllocation) Weight(x, y int, v float64) float64 { return v }

// ProportionalInclusion spreads numSamples across units in direct
// proportion to weight, clamped to [0, 1]. The excess of a clamped unit is
// not redistributed, so the probabilities sum to numSamples only when no
// unit is clamped.
type ProportionalInclusion struct{}

func (ProportionalInclusion) Probabilities(numSamples int, weights []float64) []float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make([]float64, len(weights))
	if total == 0 {
		return out
	}
	for i, w := range weights {
		p := float64(numSamples) * w / total
		if p > 1 {
			p = 1
		}
		out[i] = p
	}
	return out
}

// Candidate is the minimal per-unit record a balanced sampler would need:
// position plus covariate value, mirroring pool.Candidate's (features, x,
// y) shape so a future implementation can reuse the same Block Pipeline
// collection pass CLHS uses.
type Candidate struct {
	Point geo.Point
	X, Y  int
	Value float64
}
