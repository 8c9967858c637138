package prng

import (
	"github.com/grailbio/base/bitset"
	"github.com/grailbio/base/simd"
)

// SafetyFactor is the `safety_factor` term of §4.B's probability formula.
const (
	SafetyFactorDefault  = 4
	SafetyFactorQueinnec = 32
	MindistFactor        = 3
)

// Probability computes the target acceptance probability p for a pool of
// `samples` draws over a width*height raster, given the safety/mindist/
// access-ratio multipliers of §4.B.
//
//	p = (samples * safetyFactor * mindistFactor * accessRatio) / (width*height)
//
// accessRatio should be passed as 1.0 when there is no access mask.
func Probability(samples, width, height int, safetyFactor, mindistFactor int, accessRatio float64) float64 {
	num := float64(samples*safetyFactor*mindistFactor) * accessRatio
	den := float64(width * height)
	if den <= 0 {
		return 1
	}
	p := num / den
	if p > 1 {
		p = 1
	}
	return p
}

// Selector implements the "probability bitmask" accept predicate of §4.B: a
// drawn word w is accepted iff ((w >> 11) & mask) == mask, where mask is
// (1<<n)-1 for n = ceil(log2(1/p)).
type Selector struct {
	mask uint64
}

// NewSelector builds a Selector for target probability p. If the implied
// numerator is at or beyond the denominator (p >= 1), the selector is
// unconditional (mask == 0, always accepts).
func NewSelector(p float64) Selector {
	if p >= 1 {
		return Selector{mask: 0}
	}
	if p <= 0 {
		// No finite n satisfies log2(1/p); treat as "never accept" by using
		// the widest possible mask, which requires all 53 usable bits to be
		// set -- a practically-never-true condition without panicking.
		return Selector{mask: (1 << 53) - 1}
	}
	n := 0
	for n < 53 && float64(uint64(1)<<uint(n)) < 1/p {
		n++
	}
	if n == 0 {
		return Selector{mask: 0}
	}
	return Selector{mask: (uint64(1) << uint(n)) - 1}
}

// Accept consumes one draw from s and reports whether the pixel is
// retained.
func (sel Selector) Accept(s *Source) bool {
	if sel.mask == 0 {
		return true
	}
	w := s.Next64()
	return ((w >> 11) & sel.mask) == sel.mask
}

// BlockBits precomputes a vector of accept/reject decisions for an entire
// block of n pixels (§4.B "Precomputation"), so the inner per-pixel loop
// only reads a bit (via Get) rather than branching on a generator call.
// Results are packed into a bitset.NonzeroWordScanner-compatible []uintptr
// so callers that need popcounts can reuse grailbio/base/bitset helpers.
type BlockBits struct {
	bits []uintptr
	n    int
}

const bitsPerWord = simd.BitsPerWord

// Precompute fills a BlockBits for n pixels using sel and s.
func (sel Selector) Precompute(s *Source, n int) BlockBits {
	words := (n + bitsPerWord - 1) / bitsPerWord
	bb := BlockBits{bits: make([]uintptr, words), n: n}
	for i := 0; i < n; i++ {
		if sel.Accept(s) {
			bb.bits[i/bitsPerWord] |= uintptr(1) << uint(i%bitsPerWord)
		}
	}
	return bb
}

// Get returns the precomputed decision for pixel i.
func (bb BlockBits) Get(i int) bool {
	return bb.bits[i/bitsPerWord]&(uintptr(1)<<uint(i%bitsPerWord)) != 0
}

// Len returns the number of pixels the block covers.
func (bb BlockBits) Len() int { return bb.n }

// PopCount returns the number of accepted pixels in the block, scanning set
// bits via bitset.NonzeroWordScanner rather than testing every index with
// Get.
func (bb BlockBits) PopCount() int {
	nzwPop := 0
	for _, w := range bb.bits {
		if w != 0 {
			nzwPop++
		}
	}
	if nzwPop == 0 {
		return 0
	}
	count := 0
	scanner, idx := bitset.NewNonzeroWordScanner(bb.bits, nzwPop)
	for ; idx != -1; idx = scanner.Next() {
		count++
	}
	return count
}
