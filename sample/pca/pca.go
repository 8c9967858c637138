// Package pca implements the supplementary `pca` operation (§ EXPANDED
// MODULE LIST, original_source's `calculate/pca`): train a dense PCA model
// over all input bands via the Block Pipeline, then project every pixel
// through the trained components and write nComp output bands.
package pca

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/terrastrata/geosample/access"
	"github.com/terrastrata/geosample/geo"
	"github.com/terrastrata/geosample/output"
	"github.com/terrastrata/geosample/raster"
	"github.com/terrastrata/geosample/stats"
)

// Opts configures a pca run.
type Opts struct {
	NumComponents int
	Trainer       stats.PCATrainer
	Access        *access.Mask

	LargeRaster bool
	TempDir     string
	Filename    string
}

// Result is the pca outcome: the trained components, their eigenvalues,
// and the output dataset holding the projected bands.
type Result struct {
	Components  [][]float64
	Eigenvalues []float64
	Output      output.Dataset
}

// Run executes the pca operation over ds using opts.
func Run(ctx context.Context, ds geo.Dataset, opts Opts) (Result, error) {
	if opts.NumComponents <= 0 {
		return Result{}, errors.E("pca: numComponents must be > 0")
	}
	if opts.Trainer == nil {
		return Result{}, errors.E("pca: a stats.PCATrainer is required")
	}
	width, height := ds.Width(), ds.Height()
	nFeat := ds.NumBands()
	bands := make([]geo.Band, nFeat)
	for i := range bands {
		bands[i] = ds.Band(i)
	}
	var accessBand geo.Band
	if opts.Access != nil {
		accessBand = opts.Access.AsBand()
	}

	pipe, err := raster.NewPipeline(width, height, raster.Opts{Bands: bands, Access: accessBand})
	if err != nil {
		return Result{}, err
	}

	var rows [][]float64
	var coords [][2]int
	if err := pipe.Run(ctx, func(px raster.Pixel) error {
		if px.NoData || !px.Accessible {
			return nil
		}
		rows = append(rows, append([]float64(nil), px.Values...))
		coords = append(coords, [2]int{px.X, px.Y})
		return nil
	}); err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, errors.E("pca: no eligible pixels found")
	}

	components, eigenvalues, err := opts.Trainer.Fit(rows, opts.NumComponents)
	if err != nil {
		return Result{}, errors.E(err, "pca: training failed")
	}

	// components is nComp x nFeat; transpose to nFeat x nComp for
	// stats.MatMul(rows, componentsT) -> [n x nComp] projected scores.
	componentsT := make([][]float64, nFeat)
	for f := 0; f < nFeat; f++ {
		componentsT[f] = make([]float64, len(components))
		for c, comp := range components {
			componentsT[f][c] = comp[f]
		}
	}
	projected := stats.MatMul(rows, componentsT)

	specs := make([]output.BandSpec, len(components))
	for i := range specs {
		specs[i] = output.BandSpec{Name: componentName(i), PixelType: geo.Float64}
	}
	outDS, err := output.Build(ctx, output.Opts{
		Width: width, Height: height, Transform: ds.Transform(), Projection: ds.Projection(),
		Bands: specs, LargeRaster: opts.LargeRaster, TempDir: opts.TempDir, Filename: opts.Filename,
	})
	if err != nil {
		return Result{}, err
	}

	for i := range components {
		band := outDS.Band(i)
		buf := make([]byte, 8)
		for r, xy := range coords {
			raster.WriteValue(buf, projected[r][i], geo.Float64)
			if err := band.WriteWindow(ctx, xy[0], xy[1], 1, 1, buf); err != nil {
				return Result{}, errors.E(err, "pca: writing projected band failed")
			}
		}
	}
	if err := outDS.Commit(ctx); err != nil {
		return Result{}, err
	}

	return Result{Components: components, Eigenvalues: eigenvalues, Output: outDS}, nil
}

func componentName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < 26 {
		return "pc_" + string(letters[i])
	}
	return "pc_" + string(rune('a'+i/26-1)) + string(letters[i%26])
}
