// Package prng implements the fast, splittable pixel-acceptance generator
// used throughout the sampling engine (§4.B). It wraps a xoshiro-256++
// generator rather than math/rand: every sampler draws one word per
// candidate pixel, so allocation-free, branch-predictor-friendly generation
// matters more than the broader API math/rand.Source64 offers.
package prng

import "github.com/dgryski/go-farm"

// Source is a xoshiro-256++ generator. The zero value is not seeded; use
// New or Split.
type Source struct {
	s [4]uint64
}

func rotl(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}

// New creates a Source from a 64-bit seed, expanded via splitmix64 the way
// the reference xoshiro256 implementation recommends for seeding from a
// single integer.
func New(seed uint64) *Source {
	var s Source
	sm := seed
	next := func() uint64 {
		sm += 0x9E3779B97F4A7C15
		z := sm
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		return z ^ (z >> 31)
	}
	for i := range s.s {
		s.s[i] = next()
	}
	return &s
}

// Next64 returns the next 64-bit output and advances the generator state.
func (s *Source) Next64() uint64 {
	result := rotl(s.s[0]+s.s[3], 23) + s.s[0]

	t := s.s[1] << 17

	s.s[2] ^= s.s[0]
	s.s[3] ^= s.s[1]
	s.s[1] ^= s.s[2]
	s.s[0] ^= s.s[3]

	s.s[2] ^= t

	s.s[3] = rotl(s.s[3], 45)

	return result
}

// Split derives an independent stream for row-block-range worker i of a
// run seeded by seed (§4.B, §5 "PRNG is per-thread ... disjoint streams
// derived by splittable seeding"). go-farm's fingerprinting gives a cheap,
// well-distributed combination of the run seed and the stream index without
// reusing any of the generator's own internal mixing.
func Split(seed uint64, stream int) *Source {
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[i] = byte(seed >> (8 * i))
	}
	u := uint64(stream)
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(u >> (8 * i))
	}
	return New(farm.Fingerprint64(buf))
}

// Shuffle performs an in-place Fisher-Yates shuffle of idx using s, the
// only source of randomness SRS selection needs (§4.F).
func Shuffle(s *Source, idx []int) {
	for i := len(idx) - 1; i > 0; i-- {
		j := int(s.Next64() % uint64(i+1))
		idx[i], idx[j] = idx[j], idx[i]
	}
}

// Uniform returns a uniform float64 in [0, 1), used for systematic grid
// origin/rotation draws (§4.H step 1).
func Uniform(s *Source) float64 {
	// Use the top 53 bits, matching the usual xoshiro->double recipe, so the
	// low, weaker bits (discarded by the mask selector below too) never
	// influence the result.
	return float64(s.Next64()>>11) / (1 << 53)
}
