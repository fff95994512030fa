package render_test

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
	"github.com/couchcryptid/burn-scar-detection/internal/render"
)

const testBand = "nd"

func testRaster(t *testing.T) domain.Raster {
	t.Helper()
	grid := domain.Grid{
		Width:  3,
		Height: 2,
		Bound:  orb.Bound{Min: orb.Point{146.80, -36.78}, Max: orb.Point{146.83, -36.76}},
	}
	r := domain.NewRaster(grid, testBand)
	values := []float64{0.0, 0.5, 1.0, 0.25, 0.75, 0.5}
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			r.SetValue(testBand, x, y, values[y*grid.Width+x])
		}
	}
	r.SetValid(2, 1, false)
	return r
}

func decodePNG(t *testing.T, buf *bytes.Buffer) image.Image {
	t.Helper()
	img, err := png.Decode(buf)
	require.NoError(t, err)
	return img
}

func TestWritePNG(t *testing.T) {
	t.Run("scales values and drops no-data", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render.WritePNG(&buf, testRaster(t), testBand))

		img := decodePNG(t, &buf)
		assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

		r, g, b, a := img.At(0, 0).RGBA()
		assert.Equal(t, uint32(0xffff), a, "minimum value is opaque black")
		assert.Zero(t, r+g+b)

		_, _, _, a = img.At(2, 0).RGBA()
		assert.Equal(t, uint32(0xffff), a, "maximum value is opaque")

		_, _, _, a = img.At(2, 1).RGBA()
		assert.Zero(t, a, "no-data pixel is transparent")
	})

	t.Run("uniform band renders mid gray", func(t *testing.T) {
		grid := testRaster(t).Grid()
		flat := domain.NewUniformRaster(grid, testBand, 0.42)

		var buf bytes.Buffer
		require.NoError(t, render.WritePNG(&buf, flat, testBand))

		img := decodePNG(t, &buf)
		r, _, _, a := img.At(1, 1).RGBA()
		assert.Equal(t, uint32(0xffff), a)
		assert.Equal(t, uint32(128*0x101), r)
	})

	t.Run("rejects empty rasters and missing bands", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, render.WritePNG(&buf, domain.Raster{}, testBand))

		err := render.WritePNG(&buf, testRaster(t), "B99")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrBandMissing)
	})
}

func TestWriteMaskPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.WriteMaskPNG(&buf, testRaster(t), testBand))

	img := decodePNG(t, &buf)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	r, _, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.Greater(t, r, b, "mask pixels render red")

	_, _, _, a = img.At(2, 1).RGBA()
	assert.Zero(t, a, "no-data pixel is transparent")
}

func TestWriteTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.WriteTIFF(&buf, testRaster(t), testBand))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}
