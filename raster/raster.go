// Package raster implements the block-streaming pixel pipeline (§4.A): a
// uniform iterator over one or more co-registered geo.Dataset bands that
// classifies every pixel as no-data/accessible/existing and hands the
// caller a per-block stream of tuples, consuming one PRNG draw per pixel
// along the way.
//
// The design follows the teacher repo's bamprovider.Provider/Iterator
// split: GenerateShards+NewIterator there becomes NewPipeline (which lays
// out the block list) here, and the per-record Scan/Record loop becomes
// Run's per-pixel VisitFunc callback below.
package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/prng"
)

// Index is a pixel coordinate pair (§3 "Index").
type Index struct {
	X, Y int
}

// Pixel is one row-major tuple produced by the pipeline: the per-band
// values at Index, whether it is accessible, and whether it is already an
// existing sample.
type Pixel struct {
	Index
	Values     []float64
	NoData     bool
	Accessible bool
	Existing   bool
	// Selected is the Opts.Selector decision precomputed for this pixel by
	// the block's BlockBits pass (§4.B "Precomputation"). Callers that only
	// need the primary selector's verdict should use this instead of
	// calling Selector.Accept again, which would consume a second,
	// independent PRNG draw per pixel.
	Selected bool
}

// ExistingPredicate reports whether (x, y) is a member of the existing-
// sample set (§4.E). It is satisfied by existing.Set.
type ExistingPredicate interface {
	ContainsIndex(x, y int) bool
}

// Opts configures a Pipeline.
type Opts struct {
	// Bands are the co-registered input bands to iterate, in order. Band 0
	// is the primary band whose tiling drives block iteration.
	Bands []geo.Band
	// Access is the optional accessibility mask band (§4.D); nil means
	// "everything accessible".
	Access geo.Band
	// Existing is the optional existing-sample predicate (§4.E).
	Existing ExistingPredicate
	// Selector is the probabilistic retention predicate (§4.B); the zero
	// value always accepts.
	Selector prng.Selector
	// RNG drives Selector draws. Required whenever Selector is non-trivial.
	RNG *prng.Source
}

// block describes one tile of the primary band's native tiling.
type block struct {
	bx, by         int // block coordinates
	x0, y0         int // pixel origin
	xValid, yValid int // valid sub-rectangle size (edge tiles may be short)
}

// Pipeline iterates a Dataset's bands in block-aligned, row-major order
// (§4.A "Guarantees").
type Pipeline struct {
	opts   Opts
	width  int
	height int
	bs     geo.BlockSize
	blocks []block
}

// NewPipeline validates opts and precomputes the block list. All bands
// (including Access, when present) must agree in native block size with
// band 0 only insofar as iteration order is concerned; actual pixel
// dimensions are validated by the caller's geo.Dataset (§3 invariant).
func NewPipeline(width, height int, opts Opts) (*Pipeline, error) {
	if len(opts.Bands) == 0 {
		return nil, errors.E("raster: Pipeline requires at least one band")
	}
	bs := opts.Bands[0].NativeBlockSize()
	if bs.BX <= 0 || bs.BY <= 0 {
		bs = geo.BlockSize{BX: width, BY: height}
	}
	p := &Pipeline{opts: opts, width: width, height: height, bs: bs}
	for by := 0; by*bs.BY < height; by++ {
		for bx := 0; bx*bs.BX < width; bx++ {
			x0, y0 := bx*bs.BX, by*bs.BY
			xValid := bs.BX
			if x0+xValid > width {
				xValid = width - x0
			}
			yValid := bs.BY
			if y0+yValid > height {
				yValid = height - y0
			}
			p.blocks = append(p.blocks, block{bx: bx, by: by, x0: x0, y0: y0, xValid: xValid, yValid: yValid})
		}
	}
	return p, nil
}

// NumBlocks returns the number of blocks the pipeline will visit, in the
// deterministic row-major order guaranteed by §4.A.
func (p *Pipeline) NumBlocks() int { return len(p.blocks) }

// VisitFunc processes one pixel tuple. Returning an error aborts the run.
type VisitFunc func(px Pixel) error

// Run drives the pipeline end to end, calling visit for every pixel in
// every block in row-major order (§4.A). It is the single entry point all
// of §4.F-§4.J build on.
func (p *Pipeline) Run(ctx context.Context, visit VisitFunc) error {
	for _, b := range p.blocks {
		if err := p.runBlock(ctx, b, visit); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runBlock(ctx context.Context, b block, visit VisitFunc) error {
	n := len(p.opts.Bands)
	bufs := make([][]byte, n)
	noData := make([]float64, n)
	hasNoData := make([]bool, n)
	isFloat := make([]bool, n)
	elemSize := make([]int, n)

	for i, band := range p.opts.Bands {
		pt := band.PixelType()
		elemSize[i] = pt.ByteSize()
		isFloat[i] = pt.IsFloat()
		if v, ok := band.NoData(); ok {
			noData[i] = v
			hasNoData[i] = true
		}
		buf := make([]byte, b.xValid*b.yValid*elemSize[i])
		native := band.NativeBlockSize()
		var err error
		if native.BX == p.bs.BX && native.BY == p.bs.BY {
			_, _, err = band.ReadBlock(ctx, b.bx, b.by, buf)
		} else {
			err = band.ReadWindow(ctx, b.x0, b.y0, b.xValid, b.yValid, buf)
		}
		if err != nil {
			return errors.E(err, "raster: block read failed", fmt.Sprintf("band %d", i))
		}
		bufs[i] = buf
	}

	var accessBuf []byte
	if p.opts.Access != nil {
		accessBuf = make([]byte, b.xValid*b.yValid)
		native := p.opts.Access.NativeBlockSize()
		var err error
		if native.BX == p.bs.BX && native.BY == p.bs.BY {
			_, _, err = p.opts.Access.ReadBlock(ctx, b.bx, b.by, accessBuf)
		} else {
			err = p.opts.Access.ReadWindow(ctx, b.x0, b.y0, b.xValid, b.yValid, accessBuf)
		}
		if err != nil {
			return errors.E(err, "raster: access mask block read failed")
		}
	}

	count := b.xValid * b.yValid
	bits := p.opts.Selector.Precompute(p.opts.RNG, count)

	values := make([]float64, n)
	idx := 0
	for row := 0; row < b.yValid; row++ {
		for col := 0; col < b.xValid; col++ {
			x, y := b.x0+col, b.y0+row
			off := row*b.xValid + col
			isNoData := false
			for i := range p.opts.Bands {
				v := readValue(bufs[i], off, p.opts.Bands[i].PixelType())
				values[i] = v
				if isFloat[i] && isNaN(v) {
					isNoData = true
				}
				if hasNoData[i] && v == noData[i] {
					isNoData = true
				}
			}
			accessible := true
			if accessBuf != nil {
				accessible = accessBuf[off] == 1
			}
			existing := false
			if p.opts.Existing != nil {
				existing = p.opts.Existing.ContainsIndex(x, y)
			}
			px := Pixel{
				Index:      Index{X: x, Y: y},
				Values:     append([]float64(nil), values...),
				NoData:     isNoData,
				Accessible: accessible,
				Existing:   existing,
				Selected:   bits.Get(idx),
			}
			idx++
			if err := visit(px); err != nil {
				return err
			}
		}
	}
	return nil
}

func isNaN(v float64) bool { return math.IsNaN(v) }

// readValue decodes one pixel value from a raw little-endian buffer at
// element index off, per pt.
func readValue(buf []byte, off int, pt geo.PixelType) float64 {
	size := pt.ByteSize()
	b := buf[off*size : off*size+size]
	switch pt {
	case geo.Int8:
		return float64(int8(b[0]))
	case geo.Uint8:
		return float64(b[0])
	case geo.Int16:
		return float64(int16(leUint16(b)))
	case geo.Uint16:
		return float64(leUint16(b))
	case geo.Int32:
		return float64(int32(leUint32(b)))
	case geo.Uint32:
		return float64(leUint32(b))
	case geo.Float32:
		return float64(math.Float32frombits(leUint32(b)))
	case geo.Float64:
		return math.Float64frombits(leUint64(b))
	default:
		return 0
	}
}

func leUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leUint64(b []byte) uint64 {
	return uint64(leUint32(b[0:4])) | uint64(leUint32(b[4:8]))<<32
}

// WriteValue encodes v into dst (sized for pt's byte size) in little-endian
// form, the inverse of readValue. Used by the Output Dataset Builder (§4.K)
// and the Stratifier (§4.J) when emitting derived bands.
func WriteValue(dst []byte, v float64, pt geo.PixelType) {
	switch pt {
	case geo.Int8:
		dst[0] = byte(int8(v))
	case geo.Uint8:
		dst[0] = byte(uint8(v))
	case geo.Int16:
		putUint16(dst, uint16(int16(v)))
	case geo.Uint16:
		putUint16(dst, uint16(v))
	case geo.Int32:
		putUint32(dst, uint32(int32(v)))
	case geo.Uint32:
		putUint32(dst, uint32(v))
	case geo.Float32:
		putUint32(dst, math.Float32bits(float32(v)))
	case geo.Float64:
		putUint64(dst, math.Float64bits(v))
	}
}

func putUint16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putUint64(b []byte, v uint64) {
	putUint32(b[0:4], uint32(v))
	putUint32(b[4:8], uint32(v>>32))
}
