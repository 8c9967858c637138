// Package stratify implements the Stratifier (§4.J): deriving a strata
// band from one or more input bands, by fixed breaks, computed quantiles,
// composition of already-stratified inputs, or a polynomial combination.
package stratify

import (
	"context"
	"math"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/raster"
	"github.com/terrastrata/geosample/stats"
)

// Opts configures a Stratifier run. Exactly one of Breaks/Quantiles/Map/
// Poly should be set via the corresponding Run* entrypoint; Opts itself is
// the shared threading/output plumbing (§4.J "Parallelism").
type Opts struct {
	ThreadCount int // 0 or 1 means single-threaded
	Output      geo.Band
}

// RunBreaks implements the `breaks` flavour: idx = upper_bound(breaks, v).
func RunBreaks(ctx context.Context, band geo.Band, width, height int, breaks []float64, opts Opts) error {
	return runLookup(ctx, band, width, height, breaks, upperBound, opts)
}

// RunQuantiles implements the `quantiles` flavour: compute per-band cut
// points with a streaming quantile estimator, then assign each pixel by a
// lower-bound lookup over those cut points (unlike `breaks`, which uses
// upper bound); the output writing is the same as for `breaks`. newEstimator lets callers pick the double- vs single-precision
// engine per input type (§4.J "quantiles").
func RunQuantiles(ctx context.Context, band geo.Band, width, height int, numStrata int, newEstimator func() stats.QuantileEstimator, opts Opts) error {
	est := newEstimator()
	pipe, err := raster.NewPipeline(width, height, raster.Opts{Bands: []geo.Band{band}})
	if err != nil {
		return err
	}
	if err := pipe.Run(ctx, func(px raster.Pixel) error {
		if !px.NoData {
			est.Add(px.Values[0])
		}
		return nil
	}); err != nil {
		return err
	}
	breaks := make([]float64, numStrata-1)
	for i := 1; i < numStrata; i++ {
		breaks[i-1] = est.Query(float64(i) / float64(numStrata))
	}
	return runLookup(ctx, band, width, height, breaks, lowerBound, opts)
}

// RunMap implements the `map` flavour: composite strata m = sum(s_i *
// prod(count_j for j<i)); no-data in any input propagates to no-data out.
func RunMap(ctx context.Context, bands []geo.Band, counts []int, width, height int, opts Opts) error {
	if len(bands) != len(counts) {
		return errors.E("stratify: bands and counts must have the same length")
	}
	return runChunked(ctx, bands, width, height, opts, func(px raster.Pixel) (float64, bool) {
		if px.NoData {
			return 0, false
		}
		var m float64
		mult := 1.0
		for i, v := range px.Values {
			m += v * mult
			mult *= float64(counts[i])
		}
		return m, true
	})
}

// PolyOpts configures the `stratify.poly` flavour (§ EXPANDED MODULE LIST):
// a*band0^i + b*band1^j style breakpoint composition over two bands.
type PolyOpts struct {
	A, B   float64
	I, J   float64
	Breaks []float64
}

// RunPoly implements the `poly` flavour, supplementing the spec's three
// distilled flavours with the polynomial composition present in
// original_source/sgs/stratify/poly.
func RunPoly(ctx context.Context, band0, band1 geo.Band, width, height int, poly PolyOpts, opts Opts) error {
	return runChunked(ctx, []geo.Band{band0, band1}, width, height, opts, func(px raster.Pixel) (float64, bool) {
		if px.NoData {
			return 0, false
		}
		v := poly.A*math.Pow(px.Values[0], poly.I) + poly.B*math.Pow(px.Values[1], poly.J)
		return float64(upperBound(poly.Breaks, v)), true
	})
}

func runLookup(ctx context.Context, band geo.Band, width, height int, breaks []float64, search func([]float64, float64) int, opts Opts) error {
	return runChunked(ctx, []geo.Band{band}, width, height, opts, func(px raster.Pixel) (float64, bool) {
		if px.NoData {
			return 0, false
		}
		return float64(search(breaks, px.Values[0])), true
	})
}

// runChunked drives a single-threaded pipeline over bands and writes each
// non-no-data result through opts.Output at its native pixel type, using
// no-data writes for the rest. Multi-threaded chunking over yBlocks (§4.J
// "divide yBlocks into threadCount chunks") is delegated to
// runChunkedParallel when ThreadCount > 1.
func runChunked(ctx context.Context, bands []geo.Band, width, height int, opts Opts, compute func(raster.Pixel) (float64, bool)) error {
	if opts.ThreadCount > 1 {
		return runChunkedParallel(ctx, bands, width, height, opts, compute)
	}
	pipe, err := raster.NewPipeline(width, height, raster.Opts{Bands: bands})
	if err != nil {
		return err
	}
	pt := opts.Output.PixelType()
	noData, _ := opts.Output.NoData()
	size := pt.ByteSize()
	row := make([]byte, width*size)
	y := -1
	err = pipe.Run(ctx, func(px raster.Pixel) error {
		if px.Y != y {
			if y >= 0 {
				if err := opts.Output.WriteWindow(ctx, 0, y, width, 1, row); err != nil {
					return err
				}
			}
			y = px.Y
			row = make([]byte, width*size)
		}
		v, ok := compute(px)
		if !ok {
			v = noData
		}
		raster.WriteValue(row[px.X*size:(px.X+1)*size], v, pt)
		return nil
	})
	if err != nil {
		return err
	}
	if y >= 0 {
		return opts.Output.WriteWindow(ctx, 0, y, width, 1, row)
	}
	return nil
}

// offsetBand adapts a geo.Band to a window rows [y0, y0+height) tall,
// translating reads back into the underlying band's absolute coordinates,
// so a fresh Pipeline can be built per chunk without re-reading the whole
// raster (§4.J "each thread reads and writes only its chunk").
type offsetBand struct {
	geo.Band
	y0, height, width int
}

func (b offsetBand) NativeBlockSize() geo.BlockSize {
	return geo.BlockSize{BX: b.width, BY: b.height}
}

func (b offsetBand) ReadBlock(ctx context.Context, bx, by int, dst []byte) (int, int, error) {
	if bx != 0 || by != 0 {
		return 0, 0, errors.E("stratify: offsetBand has a single full-chunk block")
	}
	if err := b.Band.ReadWindow(ctx, 0, b.y0, b.width, b.height, dst); err != nil {
		return 0, 0, err
	}
	return b.width, b.height, nil
}

func (b offsetBand) ReadWindow(ctx context.Context, x, y, w, h int, dst []byte) error {
	return b.Band.ReadWindow(ctx, x, b.y0+y, w, h, dst)
}

// runChunkedParallel partitions [0,height) into opts.ThreadCount
// contiguous row-block chunks, each processed by its own goroutine with
// its own pipeline and per-thread row buffer (§4.J "Per-thread buffers are
// allocated inside the thread body"); writes are serialized against
// opts.Output since geo.Band implementations are not required to support
// concurrent WriteWindow calls.
func runChunkedParallel(ctx context.Context, bands []geo.Band, width, height int, opts Opts, compute func(raster.Pixel) (float64, bool)) error {
	threads := opts.ThreadCount
	if threads > height {
		threads = height
	}
	chunk := (height + threads - 1) / threads
	pt := opts.Output.PixelType()
	noData, _ := opts.Output.NoData()
	size := pt.ByteSize()

	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make([]error, threads)

	for t := 0; t < threads; t++ {
		y0 := t * chunk
		y1 := y0 + chunk
		if y1 > height {
			y1 = height
		}
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(t, y0, y1 int) {
			defer wg.Done()
			h := y1 - y0
			chunkBands := make([]geo.Band, len(bands))
			for i, b := range bands {
				chunkBands[i] = offsetBand{Band: b, y0: y0, height: h, width: width}
			}
			chunkPipe, err := raster.NewPipeline(width, h, raster.Opts{Bands: chunkBands})
			if err != nil {
				errs[t] = err
				return
			}
			buf := make([]byte, width*h*size)
			err = chunkPipe.Run(ctx, func(px raster.Pixel) error {
				v, ok := compute(px)
				if !ok {
					v = noData
				}
				off := (px.Y*width + px.X) * size
				raster.WriteValue(buf[off:off+size], v, pt)
				return nil
			})
			if err != nil {
				errs[t] = err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			errs[t] = opts.Output.WriteWindow(ctx, 0, y0, width, h, buf)
		}(t, y0, y1)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func upperBound(breaks []float64, v float64) int {
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

func lowerBound(breaks []float64, v float64) int {
	lo, hi := 0, len(breaks)
	for lo < hi {
		mid := (lo + hi) / 2
		if breaks[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
