// Package rasterfake provides in-memory geo.Dataset/geo.Band fakes used by
// this module's own tests, in the spirit of bamprovider.fakeProvider: a
// small, deliberately dumb stand-in for a real GDAL-backed dataset.
package rasterfake

import (
	"context"
	"math"

	"github.com/terrastrata/geosample/geo"
)

// Dataset is a fake geo.Dataset backed by plain float64 grids, one per band.
// It is only for unittests.
type Dataset struct {
	width, height int
	transform     geo.Affine
	projection    string
	bands         []*Band
}

// NewDataset creates a Dataset of the given size with no bands; call AddBand
// to populate it.
func NewDataset(width, height int, transform geo.Affine) *Dataset {
	return &Dataset{width: width, height: height, transform: transform}
}

// AddBand appends a band whose pixel (x, y) has value values[y*width+x],
// stored at pt and with the given no-data sentinel.
func (d *Dataset) AddBand(values []float64, pt geo.PixelType, noData float64, hasNoData bool) *Band {
	b := &Band{
		width: d.width, height: d.height,
		pt: pt, noData: noData, hasNoData: hasNoData,
		values: values,
	}
	d.bands = append(d.bands, b)
	return b
}

func (d *Dataset) Width() int            { return d.width }
func (d *Dataset) Height() int           { return d.height }
func (d *Dataset) Transform() geo.Affine { return d.transform }
func (d *Dataset) Projection() string    { return d.projection }
func (d *Dataset) NumBands() int         { return len(d.bands) }
func (d *Dataset) Band(i int) geo.Band   { return d.bands[i] }
func (d *Dataset) Close() error          { return nil }

// Band is a fake geo.Band over a plain float64 grid, with a configurable
// native block size so tests can exercise both single-block and multi-block
// pipeline paths.
type Band struct {
	width, height int
	pt            geo.PixelType
	noData        float64
	hasNoData     bool
	blockSize     geo.BlockSize
	values        []float64
}

// SetBlockSize overrides the native block size reported to callers (default
// is a single full-raster block).
func (b *Band) SetBlockSize(bs geo.BlockSize) { b.blockSize = bs }

func (b *Band) PixelType() geo.PixelType { return b.pt }
func (b *Band) NoData() (float64, bool)  { return b.noData, b.hasNoData }

func (b *Band) NativeBlockSize() geo.BlockSize {
	if b.blockSize.BX > 0 && b.blockSize.BY > 0 {
		return b.blockSize
	}
	return geo.BlockSize{BX: b.width, BY: b.height}
}

func (b *Band) ReadBlock(ctx context.Context, bx, by int, dst []byte) (int, int, error) {
	bs := b.NativeBlockSize()
	x0, y0 := bx*bs.BX, by*bs.BY
	w, h := bs.BX, bs.BY
	if x0+w > b.width {
		w = b.width - x0
	}
	if y0+h > b.height {
		h = b.height - y0
	}
	return w, h, b.ReadWindow(ctx, x0, y0, w, h, dst)
}

func (b *Band) ReadWindow(ctx context.Context, x, y, w, h int, dst []byte) error {
	size := b.pt.ByteSize()
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := b.values[(y+row)*b.width+(x+col)]
			off := (row*w + col) * size
			writeValue(dst[off:off+size], v, b.pt)
		}
	}
	return nil
}

func (b *Band) WriteWindow(ctx context.Context, x, y, w, h int, src []byte) error {
	size := b.pt.ByteSize()
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			off := (row*w + col) * size
			b.values[(y+row)*b.width+(x+col)] = readValue(src[off:off+size], b.pt)
		}
	}
	return nil
}

// Values returns the band's current backing grid for assertions in tests.
func (b *Band) Values() []float64 { return b.values }

func writeValue(dst []byte, v float64, pt geo.PixelType) {
	switch pt {
	case geo.Uint8:
		dst[0] = byte(v)
	case geo.Int8:
		dst[0] = byte(int8(v))
	case geo.Uint16:
		u := uint16(v)
		dst[0], dst[1] = byte(u), byte(u>>8)
	case geo.Int16:
		u := uint16(int16(v))
		dst[0], dst[1] = byte(u), byte(u>>8)
	case geo.Uint32:
		u := uint32(v)
		for i := 0; i < 4; i++ {
			dst[i] = byte(u >> (8 * i))
		}
	case geo.Int32:
		u := uint32(int32(v))
		for i := 0; i < 4; i++ {
			dst[i] = byte(u >> (8 * i))
		}
	case geo.Float32:
		u := math.Float32bits(float32(v))
		for i := 0; i < 4; i++ {
			dst[i] = byte(u >> (8 * i))
		}
	case geo.Float64:
		u := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			dst[i] = byte(u >> (8 * i))
		}
	}
}

func readValue(src []byte, pt geo.PixelType) float64 {
	switch pt {
	case geo.Uint8:
		return float64(src[0])
	case geo.Int8:
		return float64(int8(src[0]))
	case geo.Uint16:
		return float64(uint16(src[0]) | uint16(src[1])<<8)
	case geo.Int16:
		return float64(int16(uint16(src[0]) | uint16(src[1])<<8))
	case geo.Uint32:
		var u uint32
		for i := 0; i < 4; i++ {
			u |= uint32(src[i]) << (8 * i)
		}
		return float64(u)
	case geo.Int32:
		var u uint32
		for i := 0; i < 4; i++ {
			u |= uint32(src[i]) << (8 * i)
		}
		return float64(int32(u))
	case geo.Float32:
		var u uint32
		for i := 0; i < 4; i++ {
			u |= uint32(src[i]) << (8 * i)
		}
		return float64(math.Float32frombits(u))
	case geo.Float64:
		var u uint64
		for i := 0; i < 8; i++ {
			u |= uint64(src[i]) << (8 * i)
		}
		return math.Float64frombits(u)
	}
	return 0
}
