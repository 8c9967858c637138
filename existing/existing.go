// Package existing implements the existing-sample set (§4.E): an O(1)
// average-case hash set, keyed by pixel index, used purely as a membership
// predicate during block iteration. No geometry operations happen at query
// time.
//
// The seahash-keyed map borrows the key hashing of bamprovider.concurrentMap
// in the teacher repo, adapted here to key on pixel index rather than read
// name. It is a single unsharded map with single-owner lookups (a sampling
// run is single-threaded per §5) rather than a concurrent mates table.
package existing

import (
	"context"
	"encoding/binary"
	"io"
	"math"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/terrastrata/geosample/geo"
)

// Set is the existing-sample hash set (§3 "Existing-sample set"). Keys are
// a seahash fingerprint of the (x,y) pixel index rather than the raw
// y*width+x integer, matching the teacher's concurrentMap convention of
// hashing the natural key through seahash before using it as a map key.
type Set struct {
	width int
	byIdx map[uint64]geo.Point
	inv   geo.Affine
}

// New builds an empty Set for a raster of the given width/height and
// forward affine transform; points are converted to pixel index via the
// transform's inverse.
func New(width, height int, transform geo.Affine) (*Set, error) {
	inv, ok := transform.Invert()
	if !ok {
		return nil, errors.E("existing: affine transform is not invertible")
	}
	return &Set{width: width, byIdx: make(map[uint64]geo.Point), inv: inv}, nil
}

// indexOf computes idx = floor(py)*width + floor(px) from world coords via
// the inverse affine (§4.E).
func (s *Set) indexOf(X, Y float64) (x, y int) {
	px, py := s.inv.ToPixel(X, Y)
	return int(math.Floor(px)), int(math.Floor(py))
}

func key(x, y, width int) uint64 {
	var buf [16]byte
	idx := int64(y)*int64(width) + int64(x)
	for i := 0; i < 8; i++ {
		buf[i] = byte(idx >> (8 * i))
	}
	return seahash.Sum64(buf[:8])
}

// Load populates the set from a vector layer of Point/MultiPoint features
// (§4.E "Build").
func Load(layer geo.VectorLayer, s *Set) error {
	ctx := context.Background()
	for {
		g, ok, err := layer.Next(ctx)
		if err != nil {
			return errors.E(err, "existing: failed reading layer", layer.Name())
		}
		if !ok {
			break
		}
		switch g.Type() {
		case geo.GeomPoint, geo.GeomMultiPoint:
			for _, p := range g.Points() {
				s.Add(p)
			}
		default:
			return errors.E("existing: layer contains non-point geometry", layer.Name())
		}
	}
	return nil
}

// Add inserts a single point into the set.
func (s *Set) Add(p geo.Point) {
	x, y := s.indexOf(p.X, p.Y)
	s.byIdx[key(x, y, s.width)] = p
}

// ContainsIndex reports whether pixel (x, y) is an existing sample.
func (s *Set) ContainsIndex(x, y int) bool {
	_, ok := s.byIdx[key(x, y, s.width)]
	return ok
}

// ContainsCoord reports whether world coordinate (X, Y) falls on an
// existing-sample pixel.
func (s *Set) ContainsCoord(X, Y float64) bool {
	x, y := s.indexOf(X, Y)
	return s.ContainsIndex(x, y)
}

// GetPoint returns the original point recorded at pixel (x, y), if any.
func (s *Set) GetPoint(x, y int) (geo.Point, bool) {
	p, ok := s.byIdx[key(x, y, s.width)]
	return p, ok
}

// Count returns the number of distinct pixels covered by existing samples.
func (s *Set) Count() int { return len(s.byIdx) }

// WriteSnapshot serializes the set's points as gzip-compressed
// little-endian (X,Y) pairs, the way pileup.common and fastq.downsample
// wrap their record streams in a klauspost gzip.Writer, so a long-running
// sampling job can cache the rasterized existing-sample layer instead of
// re-reading and re-rasterizing it on every resume.
func (s *Set) WriteSnapshot(w io.Writer) error {
	gw := gzip.NewWriter(w)
	var buf [16]byte
	for _, p := range s.byIdx {
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Y))
		if _, err := gw.Write(buf[:]); err != nil {
			return errors.E(err, "existing: writing snapshot")
		}
	}
	return gw.Close()
}

// LoadSnapshot repopulates s from a stream previously produced by
// WriteSnapshot.
func (s *Set) LoadSnapshot(r io.Reader) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return errors.E(err, "existing: opening snapshot")
	}
	defer gr.Close()
	var buf [16]byte
	for {
		if _, err := io.ReadFull(gr, buf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.E(err, "existing: reading snapshot")
		}
		x := math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
		y := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
		s.Add(geo.Point{X: x, Y: y})
	}
}
