// Package engine is an in-memory raster processing backend. It implements
// per-pixel band algebra, collection reductions, masking, and the geometric
// buffer/union/clip operations over domain rasters, so the detection
// pipeline runs end-to-end without a remote imagery service.
package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// Band names for derived single-band rasters. Evaluate and the comparators
// produce DerivedBand; NormalizedDifference produces DifferenceBand.
const (
	DerivedBand    = "constant"
	DifferenceBand = "nd"
)

// Engine is stateless; the zero value is usable and one instance can serve
// concurrent callers.
type Engine struct{}

// New returns a ready Engine.
func New() *Engine { return &Engine{} }

// Constant returns a single-band raster with every pixel valid and set to
// value.
func (e *Engine) Constant(grid domain.Grid, value float64) domain.Raster {
	return domain.NewUniformRaster(grid, DerivedBand, value)
}

// Evaluate applies expr to every pixel of img, feeding it the named bands in
// call order, and returns a single-band raster of the results. Output pixels
// are no-data where the input is no-data or where expr produces NaN or an
// infinity.
func (e *Engine) Evaluate(_ context.Context, img domain.Raster, bands []string, expr domain.PixelExpr) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}
	if err := img.RequireBands(bands...); err != nil {
		return domain.Raster{}, fmt.Errorf("evaluate: %w", err)
	}

	grid := img.Grid()
	out := domain.NewRaster(grid, DerivedBand)
	vals := make([]float64, len(bands))
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !img.Valid(x, y) {
				out.SetValid(x, y, false)
				continue
			}
			for i, band := range bands {
				vals[i] = img.Value(band, x, y)
			}
			v := expr(vals)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out.SetValid(x, y, false)
				continue
			}
			out.SetValue(DerivedBand, x, y, v)
		}
	}
	return out, nil
}

// NormalizedDifference computes (a - b) / (a + b) over the two named bands.
// Pixels where the denominator is zero are no-data.
func (e *Engine) NormalizedDifference(_ context.Context, img domain.Raster, bandA, bandB string) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}
	if err := img.RequireBands(bandA, bandB); err != nil {
		return domain.Raster{}, fmt.Errorf("normalized difference: %w", err)
	}

	grid := img.Grid()
	out := domain.NewRaster(grid, DifferenceBand)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !img.Valid(x, y) {
				out.SetValid(x, y, false)
				continue
			}
			a := img.Value(bandA, x, y)
			b := img.Value(bandB, x, y)
			sum := a + b
			if sum == 0 {
				out.SetValid(x, y, false)
				continue
			}
			out.SetValue(DifferenceBand, x, y, (a-b)/sum)
		}
	}
	return out, nil
}

// Min returns the bandwise, pixel-wise minimum of two rasters sharing a grid
// and band set. A pixel is valid only where both inputs are valid.
func (e *Engine) Min(_ context.Context, a, b domain.Raster) (domain.Raster, error) {
	return combine("min", a, b, math.Min)
}

// Subtract returns a - b bandwise and pixel-wise over two rasters sharing a
// grid and band set. A pixel is valid only where both inputs are valid.
func (e *Engine) Subtract(_ context.Context, a, b domain.Raster) (domain.Raster, error) {
	return combine("subtract", a, b, func(x, y float64) float64 { return x - y })
}

func combine(op string, a, b domain.Raster, f func(x, y float64) float64) (domain.Raster, error) {
	if a.Empty() || b.Empty() {
		return domain.Raster{}, nil
	}
	if a.Grid() != b.Grid() {
		return domain.Raster{}, fmt.Errorf("%s: %w", op, domain.ErrGridMismatch)
	}
	names := a.BandNames()
	if err := b.RequireBands(names...); err != nil {
		return domain.Raster{}, fmt.Errorf("%s: %w", op, err)
	}

	grid := a.Grid()
	out := domain.NewRaster(grid, names...)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !a.Valid(x, y) || !b.Valid(x, y) {
				out.SetValid(x, y, false)
				continue
			}
			for _, name := range names {
				out.SetValue(name, x, y, f(a.Value(name, x, y), b.Value(name, x, y)))
			}
		}
	}
	return out, nil
}

// ReduceMin collapses a collection into one raster by taking the per-pixel,
// per-band minimum across all scenes. The minimum is taken per band
// independently, so the composite can mix bands from different scenes at one
// pixel. A pixel is no-data only when it is no-data in every scene. An empty
// collection reduces to the empty raster.
func (e *Engine) ReduceMin(_ context.Context, coll domain.RasterCollection) (domain.Raster, error) {
	scenes := make([]domain.SceneRaster, 0, len(coll))
	for _, s := range coll {
		if !s.Empty() {
			scenes = append(scenes, s)
		}
	}
	if len(scenes) == 0 {
		return domain.Raster{}, nil
	}

	grid := scenes[0].Grid()
	names := scenes[0].BandNames()
	for _, s := range scenes[1:] {
		if s.Grid() != grid {
			return domain.Raster{}, fmt.Errorf("reduce min: scene %s: %w", s.ID, domain.ErrGridMismatch)
		}
		if err := s.RequireBands(names...); err != nil {
			return domain.Raster{}, fmt.Errorf("reduce min: scene %s: %w", s.ID, err)
		}
	}

	out := domain.NewRaster(grid, names...)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			any := false
			for _, s := range scenes {
				if !s.Valid(x, y) {
					continue
				}
				for _, name := range names {
					v := s.Value(name, x, y)
					if !any || v < out.Value(name, x, y) {
						out.SetValue(name, x, y, v)
					}
				}
				any = true
			}
			if !any {
				out.SetValid(x, y, false)
			}
		}
	}
	return out, nil
}

// FilterByDate returns the scenes acquired within the window, inclusive of
// both endpoints. An inverted window is a caller error.
func (e *Engine) FilterByDate(_ context.Context, coll domain.RasterCollection, window domain.DateRange) (domain.RasterCollection, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("filter by date: %w", err)
	}
	var out domain.RasterCollection
	for _, s := range coll {
		if window.Contains(s.AcquiredAt) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Mask applies a single-band binary raster to img: pixels stay valid where
// the mask pixel is valid and non-zero, and become no-data everywhere else.
func (e *Engine) Mask(_ context.Context, img, binary domain.Raster) (domain.Raster, error) {
	if img.Empty() || binary.Empty() {
		return domain.Raster{}, nil
	}
	if img.Grid() != binary.Grid() {
		return domain.Raster{}, fmt.Errorf("mask: %w", domain.ErrGridMismatch)
	}
	band, err := soleBand(binary)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("mask: %w", err)
	}

	grid := img.Grid()
	out := img.Clone()
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !binary.Valid(x, y) || binary.Value(band, x, y) == 0 {
				out.SetValid(x, y, false)
			}
		}
	}
	return out, nil
}

// SelfMask turns zero-valued pixels of a single-band raster into no-data,
// leaving only pixels that carry a non-zero value.
func (e *Engine) SelfMask(_ context.Context, img domain.Raster) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}
	band, err := soleBand(img)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("self mask: %w", err)
	}

	grid := img.Grid()
	out := img.Clone()
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if out.Valid(x, y) && out.Value(band, x, y) == 0 {
				out.SetValid(x, y, false)
			}
		}
	}
	return out, nil
}

// GreaterThan returns a binary raster: 1 where the single input band is
// strictly greater than v, 0 otherwise. Validity follows the input.
func (e *Engine) GreaterThan(_ context.Context, img domain.Raster, v float64) (domain.Raster, error) {
	return e.compare("greater than", img, func(x float64) bool { return x > v })
}

// LessThanOrEqual returns a binary raster: 1 where the single input band is
// at most v, 0 otherwise. Validity follows the input.
func (e *Engine) LessThanOrEqual(_ context.Context, img domain.Raster, v float64) (domain.Raster, error) {
	return e.compare("less than or equal", img, func(x float64) bool { return x <= v })
}

func (e *Engine) compare(op string, img domain.Raster, keep func(float64) bool) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}
	band, err := soleBand(img)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("%s: %w", op, err)
	}

	grid := img.Grid()
	out := domain.NewRaster(grid, DerivedBand)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !img.Valid(x, y) {
				out.SetValid(x, y, false)
				continue
			}
			if keep(img.Value(band, x, y)) {
				out.SetValue(DerivedBand, x, y, 1)
			}
		}
	}
	return out, nil
}

// BufferGeometry expands g outward by meters. A negative radius is a caller
// error; zero leaves the footprint unchanged.
func (e *Engine) BufferGeometry(_ context.Context, g orb.Geometry, meters float64) (domain.BufferedGeometry, error) {
	if meters < 0 {
		return domain.BufferedGeometry{}, fmt.Errorf("buffer radius %g m: %w", meters, domain.ErrInvalidRange)
	}
	return domain.BufferedGeometry{Source: g, Radius: meters}, nil
}

// UnionGeometries merges buffered shapes into a single region.
func (e *Engine) UnionGeometries(_ context.Context, shapes []domain.BufferedGeometry) domain.FireBufferRegion {
	return domain.NewFireBufferRegion(shapes...)
}

// Clip restricts img to the region: pixels whose center falls outside become
// no-data, pixels inside keep their value and mask state. Clipping to the
// empty region masks everything.
func (e *Engine) Clip(_ context.Context, img domain.Raster, region domain.FireBufferRegion) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}

	grid := img.Grid()
	out := img.Clone()
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !out.Valid(x, y) {
				continue
			}
			if !region.Contains(grid.PixelCenter(x, y)) {
				out.SetValid(x, y, false)
			}
		}
	}
	return out, nil
}

// ReduceRegionMean returns the mean of the single band over valid pixels.
// The second return is false when the raster is empty or fully masked,
// mirroring the null statistic of a fully clouded scene.
func (e *Engine) ReduceRegionMean(_ context.Context, img domain.Raster) (float64, bool, error) {
	if img.Empty() {
		return 0, false, nil
	}
	band, err := soleBand(img)
	if err != nil {
		return 0, false, fmt.Errorf("reduce region mean: %w", err)
	}

	grid := img.Grid()
	sum, n := 0.0, 0
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !img.Valid(x, y) {
				continue
			}
			sum += img.Value(band, x, y)
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

func soleBand(r domain.Raster) (string, error) {
	names := r.BandNames()
	if len(names) != 1 {
		return "", fmt.Errorf("want a single-band raster, got %d bands", len(names))
	}
	return names[0], nil
}
