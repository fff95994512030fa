// Package render exports rasters as PNG and TIFF images. No-data pixels
// render as fully transparent, never as zero.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/tiff"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// WritePNG encodes one band as a grayscale PNG, scaling valid values
// linearly between the band's minimum and maximum.
func WritePNG(w io.Writer, r domain.Raster, band string) error {
	img, err := grayImage(r, band)
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return nil
}

// WriteMaskPNG encodes a binary mask as a PNG: valid pixels solid red,
// no-data transparent. Suited to burn masks overlaid on a basemap.
func WriteMaskPNG(w io.Writer, r domain.Raster, band string) error {
	if err := checkRenderable(r, band); err != nil {
		return fmt.Errorf("render mask png: %w", err)
	}

	grid := r.Grid()
	img := image.NewNRGBA(image.Rect(0, 0, grid.Width, grid.Height))
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if r.Valid(x, y) {
				img.SetNRGBA(x, y, color.NRGBA{R: 0xd6, G: 0x2b, B: 0x1f, A: 0xff})
			}
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("render mask png: %w", err)
	}
	return nil
}

// WriteTIFF encodes one band as a deflate-compressed grayscale TIFF with
// the same scaling as WritePNG.
func WriteTIFF(w io.Writer, r domain.Raster, band string) error {
	img, err := grayImage(r, band)
	if err != nil {
		return fmt.Errorf("render tiff: %w", err)
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("render tiff: %w", err)
	}
	return nil
}

func grayImage(r domain.Raster, band string) (*image.NRGBA, error) {
	if err := checkRenderable(r, band); err != nil {
		return nil, err
	}

	grid := r.Grid()
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !r.Valid(x, y) {
				continue
			}
			v := r.Value(band, x, y)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, grid.Width, grid.Height))
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !r.Valid(x, y) {
				continue
			}
			g := uint8(128)
			if hi > lo {
				g = uint8(math.Round(255 * (r.Value(band, x, y) - lo) / (hi - lo)))
			}
			img.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 0xff})
		}
	}
	return img, nil
}

func checkRenderable(r domain.Raster, band string) error {
	if r.Empty() {
		return fmt.Errorf("empty raster")
	}
	return r.RequireBands(band)
}
