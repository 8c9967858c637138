package output

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrastrata/geosample/geo"
)

func identityTransform() geo.Affine {
	return geo.Affine{OX: 0, SX: 1, RX: 0, OY: 0, RY: 0, SY: 1}
}

func TestBuildRequiresAtLeastOneBand(t *testing.T) {
	_, err := Build(context.Background(), Opts{Width: 4, Height: 4})
	assert.Error(t, err)
}

func TestBuildInMemoryWriteReadRoundTrip(t *testing.T) {
	ds, err := Build(context.Background(), Opts{
		Width: 4, Height: 4, Transform: identityTransform(),
		Bands: []BandSpec{{Name: "a", PixelType: geo.Float64}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, ds.Width())
	assert.Equal(t, 4, ds.Height())
	assert.Equal(t, 1, ds.NumBands())

	band := ds.Band(0)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(i)
	}
	assert.NoError(t, band.WriteWindow(context.Background(), 1, 1, 1, 1, buf))

	out := make([]byte, 8)
	assert.NoError(t, band.ReadWindow(context.Background(), 1, 1, 1, 1, out))
	assert.Equal(t, buf, out)
	assert.NoError(t, ds.Commit(context.Background()))
}

func TestBuildVirtualCompositionRequiresTempDir(t *testing.T) {
	_, err := Build(context.Background(), Opts{
		Width: 4, Height: 4, Transform: identityTransform(), LargeRaster: true,
		Bands: []BandSpec{{Name: "a", PixelType: geo.Float64}},
	})
	assert.Error(t, err)
}

func TestBuildVirtualCompositionCommitWritesTileFiles(t *testing.T) {
	tmp, err := os.MkdirTemp("", "geosample-output-test")
	assert.NoError(t, err)
	defer os.RemoveAll(tmp)

	ds, err := Build(context.Background(), Opts{
		Width: 2, Height: 2, Transform: identityTransform(), LargeRaster: true, TempDir: tmp,
		Bands: []BandSpec{{Name: "band0", PixelType: geo.Uint8}},
	})
	assert.NoError(t, err)
	band := ds.Band(0)
	assert.NoError(t, band.WriteWindow(context.Background(), 0, 0, 2, 2, []byte{1, 2, 3, 4}))
	assert.NoError(t, ds.Commit(context.Background()))

	data, err := os.ReadFile(tileFileName(tmp, "band0"))
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestBuildDirectFileRejectsNonTifExtension(t *testing.T) {
	tmp, err := os.MkdirTemp("", "geosample-output-test")
	assert.NoError(t, err)
	defer os.RemoveAll(tmp)

	_, err = Build(context.Background(), Opts{
		Width: 2, Height: 2, Transform: identityTransform(), Filename: tmp + "/out.png",
		Bands: []BandSpec{{Name: "a", PixelType: geo.Float64}},
	})
	assert.Error(t, err)
}

func TestBuildDirectFileWidensToWidestPixelType(t *testing.T) {
	tmp, err := os.MkdirTemp("", "geosample-output-test")
	assert.NoError(t, err)
	defer os.RemoveAll(tmp)

	ds, err := Build(context.Background(), Opts{
		Width: 2, Height: 2, Transform: identityTransform(), Filename: tmp + "/out.tif",
		Bands: []BandSpec{{Name: "a", PixelType: geo.Uint8}, {Name: "b", PixelType: geo.Float64}},
	})
	assert.NoError(t, err)
	assert.Equal(t, geo.Float64, ds.Band(0).PixelType())
	assert.Equal(t, geo.Float64, ds.Band(1).PixelType())
	assert.NoError(t, ds.Commit(context.Background()))

	info, err := os.Stat(tmp + "/out.tif")
	assert.NoError(t, err)
	assert.True(t, info.Size() > 0)
}
