package stratified

import (
	"math"

	"github.com/grailbio/base/errors"
)

// Allocation names the strata-sample-count policy (§4.G "Allocation per
// stratum").
type Allocation string

const (
	AllocationProp   Allocation = "prop"
	AllocationEqual  Allocation = "equal"
	AllocationManual Allocation = "manual"
	AllocationOptim  Allocation = "optim"
)

// Welford is a numerically-stable single-pass running mean/variance
// accumulator (§GLOSSARY "Welford update"), used by the `optim` allocation
// policy to compute each stratum's secondary-band standard deviation.
type Welford struct {
	n        int64
	mean, m2 float64
}

// Add folds in one observation.
func (w *Welford) Add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

// Variance returns the population variance accumulated so far.
func (w *Welford) Variance() float64 {
	if w.n < 2 {
		return 0
	}
	return w.m2 / float64(w.n)
}

// Stdev returns sqrt(Variance()).
func (w *Welford) Stdev() float64 {
	return math.Sqrt(w.Variance())
}

// Allocate computes strataSampleCounts (§4.G): per-stratum quotas summing
// to at most numSamples, with the integer-division remainder redistributed
// from the last stratum back to the first, capped at each stratum's
// population.
func Allocate(method Allocation, numSamples int64, strataCounts []int64, weights []float64, numPixels int64) ([]int64, error) {
	numStrata := int64(len(strataCounts))
	if numStrata == 0 {
		return nil, errors.E("stratified: numStrata must be > 0")
	}
	retval := make([]int64, numStrata)
	remainder := numSamples

	switch method {
	case AllocationProp:
		if numSamples <= 0 {
			return nil, errors.E("stratified: numSamples must be > 0 for prop allocation")
		}
		pixelsPerSample := numPixels / numSamples
		if pixelsPerSample*numSamples < numPixels {
			pixelsPerSample++
		}
		if pixelsPerSample == 0 {
			pixelsPerSample = 1
		}
		for i := int64(0); i < numStrata; i++ {
			count := strataCounts[i] / pixelsPerSample
			retval[i] = count
			remainder -= count
		}
	case AllocationEqual:
		per := numSamples / numStrata
		for i := int64(0); i < numStrata; i++ {
			retval[i] = per
			remainder -= per
		}
	case AllocationManual, AllocationOptim:
		if len(weights) != int(numStrata) {
			return nil, errors.E("stratified: weights must have one entry per stratum")
		}
		for i := int64(0); i < numStrata; i++ {
			count := int64(float64(numSamples) * weights[i])
			retval[i] = count
			remainder -= count
		}
	default:
		return nil, errors.E("stratified: allocation method must be one of 'prop', 'equal', 'manual', or 'optim'")
	}

	for i := numStrata; i > 0; i-- {
		extra := remainder / i
		retval[i-1] += extra
		remainder -= extra
		if retval[i-1] > strataCounts[i-1] {
			retval[i-1] = strataCounts[i-1]
		}
	}
	return retval, nil
}

// OptimWeights computes the `optim` allocation weights from per-stratum
// count and standard deviation: weight_s = count_s*stdev_s / sum(count*stdev)
// (§4.G "optim").
func OptimWeights(counts []int64, stdevs []float64) []float64 {
	weights := make([]float64, len(counts))
	var total float64
	for i := range counts {
		weights[i] = float64(counts[i]) * stdevs[i]
		total += weights[i]
	}
	if total == 0 {
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}
