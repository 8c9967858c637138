// Package output implements the Output Dataset Builder (§4.K): the three
// shapes an output raster can take depending on (largeRaster, filename),
// grounded on the teacher's encoding/pam per-field-file naming convention
// (pamutil.FileInfo) for the virtual-composition tile-file layout, and its
// file.Open/file.Create usage for paths that may be local or object-store
// backed.
package output

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	pkgerrors "github.com/pkg/errors"
	"github.com/terrastrata/geosample/geo"
	"golang.org/x/sys/unix"
)

// hugePageThreshold gates the anonymous-mmap path in allocBuffer: below it,
// make()'s bookkeeping is cheaper than a page-aligned mapping.
const hugePageThreshold = 16 << 20

// allocBuffer sizes band storage the way fusion's kmer_index.go sizes its
// hashtable: large backing stores are mapped anonymously and hinted with
// MADV_HUGEPAGE, since the builder fills them with one sequential pass per
// band and a page-fault storm on first write is wasted latency. Smaller
// bands (the common case for small test rasters and narrow outputs) just
// use make(), whose GC-tracked allocation is cheaper at that size.
func allocBuffer(size int) []byte {
	if size < hugePageThreshold {
		return make([]byte, size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return make([]byte, size)
	}
	_ = unix.Madvise(data, unix.MADV_HUGEPAGE)
	return data
}

// BandSpec describes one output band to allocate.
type BandSpec struct {
	Name     string
	PixelType geo.PixelType
	NoData   float64
	HasNoData bool
}

// Opts configures the builder (§4.K).
type Opts struct {
	Width, Height int
	Transform     geo.Affine
	Projection    string
	Bands         []BandSpec

	// LargeRaster selects virtual composition / direct-file layouts over
	// the in-memory default.
	LargeRaster bool
	// Filename selects direct-file mode when non-empty; its extension must
	// be ".tif" (§4.K "only .tif is allowed").
	Filename string
	// TempDir holds the per-band tile files of virtual-composition mode.
	TempDir string
}

// Dataset is the builder's output handle: a geo.Dataset plus a Commit
// step for modes that defer materialization until every band is written.
type Dataset interface {
	geo.Dataset
	// Commit finalizes the dataset (closes and re-attaches tile files in
	// virtual-composition mode; writes the band buffers to the file and
	// closes it in direct-file mode; a no-op for in-memory mode, which is
	// already live).
	Commit(ctx context.Context) error
}

// Build selects one of the three shapes §4.K describes and returns a
// ready-to-write Dataset with geotransform/projection already set.
func Build(ctx context.Context, opts Opts) (Dataset, error) {
	if len(opts.Bands) == 0 {
		return nil, errors.E("output: at least one band is required")
	}
	switch {
	case opts.Filename != "":
		return buildDirectFile(ctx, opts)
	case opts.LargeRaster:
		return buildVirtualComposition(ctx, opts)
	default:
		return buildInMemory(opts)
	}
}

// --- in-memory mode (§4.K shape 1) ---

type memDataset struct {
	opts  Opts
	bands []*memBand
}

type memBand struct {
	spec geo.PixelType
	nd   float64
	hasND bool
	w, h int
	data []byte
}

func buildInMemory(opts Opts) (Dataset, error) {
	ds := &memDataset{opts: opts}
	for _, spec := range opts.Bands {
		size := spec.PixelType.ByteSize()
		ds.bands = append(ds.bands, &memBand{
			spec: spec.PixelType, nd: spec.NoData, hasND: spec.HasNoData,
			w: opts.Width, h: opts.Height,
			data: allocBuffer(opts.Width * opts.Height * size),
		})
	}
	return ds, nil
}

func (d *memDataset) Width() int         { return d.opts.Width }
func (d *memDataset) Height() int        { return d.opts.Height }
func (d *memDataset) Transform() geo.Affine { return d.opts.Transform }
func (d *memDataset) Projection() string { return d.opts.Projection }
func (d *memDataset) NumBands() int      { return len(d.bands) }
func (d *memDataset) Band(i int) geo.Band { return d.bands[i] }
func (d *memDataset) Close() error       { return nil }
func (d *memDataset) Commit(context.Context) error { return nil }

func (b *memBand) PixelType() geo.PixelType       { return b.spec }
func (b *memBand) NoData() (float64, bool)        { return b.nd, b.hasND }
func (b *memBand) NativeBlockSize() geo.BlockSize { return geo.BlockSize{BX: b.w, BY: b.h} }

func (b *memBand) ReadBlock(ctx context.Context, bx, by int, dst []byte) (int, int, error) {
	if bx != 0 || by != 0 {
		return 0, 0, errors.E("output: in-memory band has a single full-raster block")
	}
	copy(dst, b.data)
	return b.w, b.h, nil
}

func (b *memBand) ReadWindow(ctx context.Context, x, y, w, h int, dst []byte) error {
	size := b.spec.ByteSize()
	for row := 0; row < h; row++ {
		srcOff := ((y+row)*b.w + x) * size
		dstOff := row * w * size
		copy(dst[dstOff:dstOff+w*size], b.data[srcOff:srcOff+w*size])
	}
	return nil
}

func (b *memBand) WriteWindow(ctx context.Context, x, y, w, h int, src []byte) error {
	size := b.spec.ByteSize()
	for row := 0; row < h; row++ {
		dstOff := ((y+row)*b.w + x) * size
		srcOff := row * w * size
		copy(b.data[dstOff:dstOff+w*size], src[srcOff:srcOff+w*size])
	}
	return nil
}

// --- virtual composition mode (§4.K shape 2) ---

// tileFileName mirrors pamutil's "<field>.<ext>" naming idiom so per-band
// tile files in TempDir are self-describing without a side index.
func tileFileName(tempDir, bandName string) string {
	return filepath.Join(tempDir, bandName+".tile")
}

type virtualDataset struct {
	opts  Opts
	bands []*virtualBand
}

type virtualBand struct {
	path  string
	spec  geo.PixelType
	nd    float64
	hasND bool
	w, h  int
	f     file.File
	data  []byte // materialized on Commit
}

func buildVirtualComposition(ctx context.Context, opts Opts) (Dataset, error) {
	if opts.TempDir == "" {
		return nil, errors.E("output: TempDir is required for virtual composition mode")
	}
	ds := &virtualDataset{opts: opts}
	for _, spec := range opts.Bands {
		path := tileFileName(opts.TempDir, spec.Name)
		f, err := file.Create(ctx, path)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "output: creating tile file %s", path)
		}
		ds.bands = append(ds.bands, &virtualBand{
			path: path, spec: spec.PixelType, nd: spec.NoData, hasND: spec.HasNoData,
			w: opts.Width, h: opts.Height, f: f,
			data: allocBuffer(opts.Width * opts.Height * spec.PixelType.ByteSize()),
		})
	}
	return ds, nil
}

func (d *virtualDataset) Width() int          { return d.opts.Width }
func (d *virtualDataset) Height() int         { return d.opts.Height }
func (d *virtualDataset) Transform() geo.Affine { return d.opts.Transform }
func (d *virtualDataset) Projection() string  { return d.opts.Projection }
func (d *virtualDataset) NumBands() int       { return len(d.bands) }
func (d *virtualDataset) Band(i int) geo.Band { return d.bands[i] }

func (d *virtualDataset) Close() error {
	var firstErr error
	for _, b := range d.bands {
		if b.f != nil {
			if err := b.f.Close(context.Background()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Commit closes each tile file and re-attaches its buffered contents,
// matching §4.K "close each tile file and re-attach it as a band of the
// container through a raw-band reference. Composition is commit-on-close."
func (d *virtualDataset) Commit(ctx context.Context) error {
	for _, b := range d.bands {
		if _, err := b.f.Writer(ctx).Write(b.data); err != nil {
			return pkgerrors.Wrapf(err, "output: writing tile file %s", b.path)
		}
		if err := b.f.Close(ctx); err != nil {
			return pkgerrors.Wrapf(err, "output: closing tile file %s", b.path)
		}
		b.f = nil
	}
	return nil
}

func (b *virtualBand) PixelType() geo.PixelType       { return b.spec }
func (b *virtualBand) NoData() (float64, bool)        { return b.nd, b.hasND }
func (b *virtualBand) NativeBlockSize() geo.BlockSize { return geo.BlockSize{BX: b.w, BY: b.h} }

func (b *virtualBand) ReadBlock(ctx context.Context, bx, by int, dst []byte) (int, int, error) {
	if bx != 0 || by != 0 {
		return 0, 0, errors.E("output: virtual-composition band has a single full-raster block")
	}
	copy(dst, b.data)
	return b.w, b.h, nil
}

func (b *virtualBand) ReadWindow(ctx context.Context, x, y, w, h int, dst []byte) error {
	size := b.spec.ByteSize()
	for row := 0; row < h; row++ {
		srcOff := ((y+row)*b.w + x) * size
		dstOff := row * w * size
		copy(dst[dstOff:dstOff+w*size], b.data[srcOff:srcOff+w*size])
	}
	return nil
}

func (b *virtualBand) WriteWindow(ctx context.Context, x, y, w, h int, src []byte) error {
	size := b.spec.ByteSize()
	for row := 0; row < h; row++ {
		dstOff := ((y+row)*b.w + x) * size
		srcOff := row * w * size
		copy(b.data[dstOff:dstOff+w*size], src[srcOff:srcOff+w*size])
	}
	return nil
}

// --- direct file mode (§4.K shape 3) ---

func buildDirectFile(ctx context.Context, opts Opts) (Dataset, error) {
	ext := strings.ToLower(filepath.Ext(opts.Filename))
	if ext != ".tif" {
		return nil, errors.E("output: only .tif is supported for direct file output, got", ext)
	}
	widest := opts.Bands[0].PixelType
	for _, b := range opts.Bands[1:] {
		if b.PixelType.ByteSize() > widest.ByteSize() {
			widest = b.PixelType
		}
	}
	f, err := file.Create(ctx, opts.Filename)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "output: creating "+opts.Filename)
	}
	ds := &fileDataset{opts: opts, f: f, widest: widest}
	for range opts.Bands {
		ds.bands = append(ds.bands, &memBand{
			spec: widest, w: opts.Width, h: opts.Height,
			data: allocBuffer(opts.Width * opts.Height * widest.ByteSize()),
		})
	}
	return ds, nil
}

type fileDataset struct {
	opts   Opts
	f      file.File
	widest geo.PixelType
	bands  []*memBand
}

func (d *fileDataset) Width() int          { return d.opts.Width }
func (d *fileDataset) Height() int         { return d.opts.Height }
func (d *fileDataset) Transform() geo.Affine { return d.opts.Transform }
func (d *fileDataset) Projection() string  { return d.opts.Projection }
func (d *fileDataset) NumBands() int       { return len(d.bands) }
func (d *fileDataset) Band(i int) geo.Band { return d.bands[i] }

// Commit writes every band's raw pixel buffer to the file in
// band-sequential order and closes it. The bytes are written as-is: no
// GeoTIFF header, georeferencing tags or tiling are written.
func (d *fileDataset) Commit(ctx context.Context) error {
	w := d.f.Writer(ctx)
	for _, b := range d.bands {
		if _, err := w.Write(b.data); err != nil {
			return pkgerrors.Wrapf(err, "output: writing %s", d.opts.Filename)
		}
	}
	return d.f.Close(ctx)
}

func (d *fileDataset) Close() error { return nil }
