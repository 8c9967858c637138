// Package pool implements the bounded candidate-pool structures the
// sampling algorithms build during block iteration: the CLHS Candidate
// Pool (§4.C) and the per-stratum probabilistic/first-X pools the
// Stratified sampler uses (§4.G). The Candidate pool grows in large
// fixed-size chunks (1,000,000 records) rather than doubling, matching the
// CLHSDataManager behaviour in the original implementation; the
// per-stratum pools grow by plain append.
package pool

import "github.com/grailbio/base/errors"

// chunkSize is the growth increment for Candidate storage (§4.C "Backing
// storage grows in 1,000,000-record chunks").
const chunkSize = 1_000_000

// Candidate is the CLHS Candidate Pool (§3 "Candidate Pool (CLHS)", §4.C).
// Features for all records are packed into one contiguous slice
// (row-major, nFeat per record) so Pass 2's covariance recomputation can
// operate on contiguous memory, mirroring CLHSDataManager.features.
type Candidate struct {
	nFeat    int
	features []float64
	xs, ys   []int
	count    int

	finalized bool
	mask      uint64
	// Corr is the full-raster population correlation matrix handed to
	// Finalize, retained for Pass 2's objective computation (§4.I).
	Corr [][]float64
}

// NewCandidate creates an empty pool for records of nFeat features each.
func NewCandidate(nFeat int) *Candidate {
	return &Candidate{
		nFeat:    nFeat,
		features: make([]float64, 0, chunkSize*nFeat),
		xs:       make([]int, 0, chunkSize),
		ys:       make([]int, 0, chunkSize),
	}
}

// Add appends one record. features must have length nFeat.
func (c *Candidate) Add(features []float64, x, y int) {
	if len(c.xs) == cap(c.xs) {
		c.features = append(make([]float64, 0, cap(c.features)+chunkSize*c.nFeat), c.features...)
		c.xs = append(make([]int, 0, cap(c.xs)+chunkSize), c.xs...)
		c.ys = append(make([]int, 0, cap(c.ys)+chunkSize), c.ys...)
	}
	c.features = append(c.features, features...)
	c.xs = append(c.xs, x)
	c.ys = append(c.ys, y)
	c.count++
}

// Count returns the number of records added so far.
func (c *Candidate) Count() int { return c.count }

// Finalize freezes the pool size, records the population correlation
// matrix, and builds the power-of-two draw mask (§4.C "finalize"). It
// rejects finalization if fewer than nSamp records were added.
func (c *Candidate) Finalize(nSamp int, corr [][]float64) error {
	if c.count < nSamp {
		return errors.E("pool: not enough candidates saved during raster iteration to conduct sampling")
	}
	c.Corr = corr
	mask := uint64(c.count)
	mask--
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	mask |= mask >> 32
	c.mask = mask
	c.finalized = true
	return nil
}

// RandomIndex draws a uniform index in [0, count) using next, retrying while
// the masked draw exceeds count-1 (§4.C; expected retries < 2).
func (c *Candidate) RandomIndex(next func() uint64) int {
	for {
		idx := (next() >> 11) & c.mask
		if int(idx) < c.count {
			return int(idx)
		}
	}
}

// Get returns the feature row and coordinates for record i.
func (c *Candidate) Get(i int) (features []float64, x, y int) {
	return c.features[i*c.nFeat : (i+1)*c.nFeat], c.xs[i], c.ys[i]
}
