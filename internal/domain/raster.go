package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// Grid describes the georeferenced pixel lattice shared by every band of a
// raster. Bound is the geographic extent in WGS84 lon/lat; pixel (0, 0) is
// the north-west corner and rows run southward.
type Grid struct {
	Width  int
	Height int
	Bound  orb.Bound
}

// Cells returns the number of pixels in the grid.
func (g Grid) Cells() int { return g.Width * g.Height }

// Index returns the offset of pixel (x, y) within a band plane.
func (g Grid) Index(x, y int) int { return y*g.Width + x }

// PixelCenter returns the geographic coordinate of the center of pixel (x, y).
func (g Grid) PixelCenter(x, y int) orb.Point {
	dx := (g.Bound.Max[0] - g.Bound.Min[0]) / float64(g.Width)
	dy := (g.Bound.Max[1] - g.Bound.Min[1]) / float64(g.Height)
	return orb.Point{
		g.Bound.Min[0] + (float64(x)+0.5)*dx,
		g.Bound.Max[1] - (float64(y)+0.5)*dy,
	}
}

// PixelExpr computes one output value from input band values, supplied in
// the order the bands were named in the evaluate call.
type PixelExpr func(v []float64) float64

// Raster is a georeferenced grid of named float64 band planes with one
// validity plane shared by all bands. The zero value is the empty raster.
//
// Band and validity planes are shared between copies of a Raster; derived
// rasters are always freshly allocated, and Clone gives an independent copy
// when a caller needs to mutate one it does not own.
type Raster struct {
	grid  Grid
	bands map[string][]float64
	valid []bool
}

// NewRaster creates a raster on grid with the given bands, every pixel
// valid and zero-valued.
func NewRaster(grid Grid, bandNames ...string) Raster {
	bands := make(map[string][]float64, len(bandNames))
	for _, name := range bandNames {
		bands[name] = make([]float64, grid.Cells())
	}
	valid := make([]bool, grid.Cells())
	for i := range valid {
		valid[i] = true
	}
	return Raster{grid: grid, bands: bands, valid: valid}
}

// NewUniformRaster creates a single-band raster with every pixel valid and
// set to value.
func NewUniformRaster(grid Grid, band string, value float64) Raster {
	r := NewRaster(grid, band)
	plane := r.bands[band]
	for i := range plane {
		plane[i] = value
	}
	return r
}

// Empty reports whether the raster carries no pixels. Every raster
// operation propagates the empty raster, so sparsity flows through the
// pipeline instead of erroring.
func (r Raster) Empty() bool {
	return len(r.bands) == 0 || r.grid.Width <= 0 || r.grid.Height <= 0
}

// Grid returns the raster's pixel lattice.
func (r Raster) Grid() Grid { return r.grid }

// BandNames returns the raster's band names in lexical order.
func (r Raster) BandNames() []string {
	names := make([]string, 0, len(r.bands))
	for name := range r.bands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BandCount returns the number of bands.
func (r Raster) BandCount() int { return len(r.bands) }

// HasBand reports whether the raster carries the named band.
func (r Raster) HasBand(name string) bool {
	_, ok := r.bands[name]
	return ok
}

// RequireBands returns ErrBandMissing naming the first requested band the
// raster lacks.
func (r Raster) RequireBands(names ...string) error {
	for _, name := range names {
		if _, ok := r.bands[name]; !ok {
			return fmt.Errorf("band %q: %w", name, ErrBandMissing)
		}
	}
	return nil
}

// Valid reports whether pixel (x, y) carries data.
func (r Raster) Valid(x, y int) bool {
	return r.valid[r.grid.Index(x, y)]
}

// Value returns the value of band at pixel (x, y), or 0 when the band is
// absent. Validity is tracked separately; see Valid.
func (r Raster) Value(band string, x, y int) float64 {
	plane, ok := r.bands[band]
	if !ok {
		return 0
	}
	return plane[r.grid.Index(x, y)]
}

// SetValue writes band at pixel (x, y). Writes to a band the raster does
// not carry are dropped.
func (r Raster) SetValue(band string, x, y int, v float64) {
	plane, ok := r.bands[band]
	if !ok {
		return
	}
	plane[r.grid.Index(x, y)] = v
}

// SetValid marks pixel (x, y) as carrying data or as no-data.
func (r Raster) SetValid(x, y int, valid bool) {
	r.valid[r.grid.Index(x, y)] = valid
}

// CountValid returns the number of pixels carrying data.
func (r Raster) CountValid() int {
	n := 0
	for _, ok := range r.valid {
		if ok {
			n++
		}
	}
	return n
}

// Clone returns a deep copy with independent band and validity planes.
func (r Raster) Clone() Raster {
	if r.Empty() {
		return Raster{}
	}
	bands := make(map[string][]float64, len(r.bands))
	for name, plane := range r.bands {
		cp := make([]float64, len(plane))
		copy(cp, plane)
		bands[name] = cp
	}
	valid := make([]bool, len(r.valid))
	copy(valid, r.valid)
	return Raster{grid: r.grid, bands: bands, valid: valid}
}

// SceneRaster is one timestamped acquisition within a collection.
type SceneRaster struct {
	Raster
	ID         string
	AcquiredAt time.Time
}

// RasterCollection is a set of scenes covering the same area. Ordering
// carries no algorithmic meaning; reductions over a collection are
// order-independent.
type RasterCollection []SceneRaster
