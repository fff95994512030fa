package engine_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
	"github.com/couchcryptid/burn-scar-detection/internal/engine"
)

func testGrid(w, h int) domain.Grid {
	return domain.Grid{
		Width:  w,
		Height: h,
		Bound: orb.Bound{
			Min: orb.Point{146.0, -37.0},
			Max: orb.Point{146.0 + float64(w)*0.01, -37.0 + float64(h)*0.01},
		},
	}
}

func singleBand(t *testing.T, grid domain.Grid, values []float64) domain.Raster {
	t.Helper()
	require.Equal(t, grid.Cells(), len(values))
	r := domain.NewRaster(grid, engine.DerivedBand)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			r.SetValue(engine.DerivedBand, x, y, values[grid.Index(x, y)])
		}
	}
	return r
}

func TestEvaluate(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(2, 1)

	img := domain.NewRaster(grid, domain.BandRed, domain.BandNIR)
	img.SetValue(domain.BandRed, 0, 0, 0.1)
	img.SetValue(domain.BandNIR, 0, 0, 0.4)
	img.SetValue(domain.BandRed, 1, 0, 0.2)
	img.SetValue(domain.BandNIR, 1, 0, 0.3)

	t.Run("applies expression in band order", func(t *testing.T) {
		out, err := e.Evaluate(ctx, img, []string{domain.BandNIR, domain.BandRed},
			func(v []float64) float64 { return v[0] - v[1] })
		require.NoError(t, err)
		assert.InDelta(t, 0.3, out.Value(engine.DerivedBand, 0, 0), 1e-9)
		assert.InDelta(t, 0.1, out.Value(engine.DerivedBand, 1, 0), 1e-9)
	})

	t.Run("missing band fails fast", func(t *testing.T) {
		_, err := e.Evaluate(ctx, img, []string{domain.BandThermal},
			func(v []float64) float64 { return v[0] })
		assert.ErrorIs(t, err, domain.ErrBandMissing)
	})

	t.Run("no-data input propagates", func(t *testing.T) {
		masked := img.Clone()
		masked.SetValid(0, 0, false)
		out, err := e.Evaluate(ctx, masked, []string{domain.BandRed},
			func(v []float64) float64 { return v[0] })
		require.NoError(t, err)
		assert.False(t, out.Valid(0, 0))
		assert.True(t, out.Valid(1, 0))
	})

	t.Run("NaN result becomes no-data", func(t *testing.T) {
		out, err := e.Evaluate(ctx, img, []string{domain.BandRed},
			func(v []float64) float64 { return math.NaN() })
		require.NoError(t, err)
		assert.Zero(t, out.CountValid())
	})

	t.Run("empty raster flows through", func(t *testing.T) {
		out, err := e.Evaluate(ctx, domain.Raster{}, []string{domain.BandRed},
			func(v []float64) float64 { return v[0] })
		require.NoError(t, err)
		assert.True(t, out.Empty())
	})
}

func TestNormalizedDifference(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(3, 1)

	img := domain.NewRaster(grid, domain.BandSWIR1, domain.BandRed)
	// (0.3 - 0.1) / 0.4 = 0.5
	img.SetValue(domain.BandSWIR1, 0, 0, 0.3)
	img.SetValue(domain.BandRed, 0, 0, 0.1)
	// zero denominator
	img.SetValue(domain.BandSWIR1, 1, 0, 0.2)
	img.SetValue(domain.BandRed, 1, 0, -0.2)
	// (0.1 - 0.3) / 0.4 = -0.5
	img.SetValue(domain.BandSWIR1, 2, 0, 0.1)
	img.SetValue(domain.BandRed, 2, 0, 0.3)

	out, err := e.NormalizedDifference(ctx, img, domain.BandSWIR1, domain.BandRed)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, out.Value(engine.DifferenceBand, 0, 0), 1e-9)
	assert.False(t, out.Valid(1, 0), "zero denominator must be no-data, not an error")
	assert.InDelta(t, -0.5, out.Value(engine.DifferenceBand, 2, 0), 1e-9)

	for x := 0; x < 3; x++ {
		if out.Valid(x, 0) {
			v := out.Value(engine.DifferenceBand, x, 0)
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestMinAndSubtract(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(2, 1)

	a := singleBand(t, grid, []float64{1, 5})
	b := singleBand(t, grid, []float64{3, 2})

	t.Run("min", func(t *testing.T) {
		out, err := e.Min(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, 1.0, out.Value(engine.DerivedBand, 0, 0))
		assert.Equal(t, 2.0, out.Value(engine.DerivedBand, 1, 0))
	})

	t.Run("subtract", func(t *testing.T) {
		out, err := e.Subtract(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, -2.0, out.Value(engine.DerivedBand, 0, 0))
		assert.Equal(t, 3.0, out.Value(engine.DerivedBand, 1, 0))
	})

	t.Run("validity is the intersection", func(t *testing.T) {
		aa := a.Clone()
		aa.SetValid(0, 0, false)
		out, err := e.Min(ctx, aa, b)
		require.NoError(t, err)
		assert.False(t, out.Valid(0, 0))
		assert.True(t, out.Valid(1, 0))
	})

	t.Run("grid mismatch", func(t *testing.T) {
		other := singleBand(t, testGrid(3, 1), []float64{1, 2, 3})
		_, err := e.Min(ctx, a, other)
		assert.ErrorIs(t, err, domain.ErrGridMismatch)
	})

	t.Run("empty operand flows through", func(t *testing.T) {
		out, err := e.Subtract(ctx, domain.Raster{}, b)
		require.NoError(t, err)
		assert.True(t, out.Empty())
	})
}

func scene(t *testing.T, grid domain.Grid, id string, day time.Time, values []float64) domain.SceneRaster {
	t.Helper()
	return domain.SceneRaster{Raster: singleBand(t, grid, values), ID: id, AcquiredAt: day}
}

func TestReduceMin(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(2, 1)
	day := time.Date(2013, 6, 1, 0, 0, 0, 0, time.UTC)

	s1 := scene(t, grid, "s1", day, []float64{4, 1})
	s2 := scene(t, grid, "s2", day.AddDate(0, 0, 16), []float64{2, 3})
	s3 := scene(t, grid, "s3", day.AddDate(0, 0, 32), []float64{9, 9})
	s3.SetValid(0, 0, false)

	t.Run("per-pixel minimum", func(t *testing.T) {
		out, err := e.ReduceMin(ctx, domain.RasterCollection{s1, s2, s3})
		require.NoError(t, err)
		assert.Equal(t, 2.0, out.Value(engine.DerivedBand, 0, 0))
		assert.Equal(t, 1.0, out.Value(engine.DerivedBand, 1, 0))
	})

	t.Run("order independent", func(t *testing.T) {
		orders := []domain.RasterCollection{
			{s1, s2, s3},
			{s3, s1, s2},
			{s2, s3, s1},
		}
		for _, coll := range orders {
			out, err := e.ReduceMin(ctx, coll)
			require.NoError(t, err)
			assert.Equal(t, 2.0, out.Value(engine.DerivedBand, 0, 0))
			assert.Equal(t, 1.0, out.Value(engine.DerivedBand, 1, 0))
		}
	})

	t.Run("pixel masked everywhere stays no-data", func(t *testing.T) {
		m1 := s1
		m1.Raster = s1.Raster.Clone()
		m1.SetValid(0, 0, false)
		m2 := s2
		m2.Raster = s2.Raster.Clone()
		m2.SetValid(0, 0, false)

		out, err := e.ReduceMin(ctx, domain.RasterCollection{m1, m2})
		require.NoError(t, err)
		assert.False(t, out.Valid(0, 0))
		assert.True(t, out.Valid(1, 0))
	})

	t.Run("empty collection reduces to the empty raster", func(t *testing.T) {
		out, err := e.ReduceMin(ctx, nil)
		require.NoError(t, err)
		assert.True(t, out.Empty())
	})
}

func TestFilterByDate(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(1, 1)

	coll := domain.RasterCollection{
		scene(t, grid, "before", time.Date(2013, 3, 29, 12, 0, 0, 0, time.UTC), []float64{1}),
		scene(t, grid, "first", time.Date(2013, 3, 30, 23, 0, 0, 0, time.UTC), []float64{1}),
		scene(t, grid, "last", time.Date(2013, 9, 30, 0, 30, 0, 0, time.UTC), []float64{1}),
		scene(t, grid, "after", time.Date(2013, 10, 1, 0, 0, 0, 0, time.UTC), []float64{1}),
	}

	window, err := domain.ParseDateRange("2013-03-30", "2013-09-30")
	require.NoError(t, err)

	out, err := e.FilterByDate(ctx, coll, window)
	require.NoError(t, err)
	require.Len(t, out, 2, "both endpoints are inclusive")
	assert.Equal(t, "first", out[0].ID)
	assert.Equal(t, "last", out[1].ID)

	t.Run("inverted window is a caller error", func(t *testing.T) {
		_, err := e.FilterByDate(ctx, coll, domain.DateRange{
			Start: window.End,
			End:   window.Start,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})
}

func TestMask(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(3, 1)

	img := singleBand(t, grid, []float64{10, 20, 30})
	binary := singleBand(t, grid, []float64{1, 0, 1})
	binary.SetValid(2, 0, false)

	out, err := e.Mask(ctx, img, binary)
	require.NoError(t, err)

	assert.True(t, out.Valid(0, 0))
	assert.Equal(t, 10.0, out.Value(engine.DerivedBand, 0, 0), "kept pixels retain their value")
	assert.False(t, out.Valid(1, 0), "zero mask value hides the pixel")
	assert.False(t, out.Valid(2, 0), "no-data mask pixel hides the pixel")
}

func TestSelfMask(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(2, 1)

	out, err := e.SelfMask(ctx, singleBand(t, grid, []float64{0, 1}))
	require.NoError(t, err)
	assert.False(t, out.Valid(0, 0))
	assert.True(t, out.Valid(1, 0))
}

func TestComparators(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(3, 1)

	img := singleBand(t, grid, []float64{0.43, 0.44, 0.45})

	t.Run("greater than is strict", func(t *testing.T) {
		out, err := e.GreaterThan(ctx, img, 0.44)
		require.NoError(t, err)
		assert.Equal(t, 0.0, out.Value(engine.DerivedBand, 0, 0))
		assert.Equal(t, 0.0, out.Value(engine.DerivedBand, 1, 0), "the boundary value is not above the threshold")
		assert.Equal(t, 1.0, out.Value(engine.DerivedBand, 2, 0))
	})

	t.Run("less than or equal includes the boundary", func(t *testing.T) {
		out, err := e.LessThanOrEqual(ctx, img, 0.44)
		require.NoError(t, err)
		assert.Equal(t, 1.0, out.Value(engine.DerivedBand, 0, 0))
		assert.Equal(t, 1.0, out.Value(engine.DerivedBand, 1, 0))
		assert.Equal(t, 0.0, out.Value(engine.DerivedBand, 2, 0))
	})
}

func TestBufferGeometry(t *testing.T) {
	e := engine.New()
	ctx := context.Background()

	t.Run("negative radius is a caller error", func(t *testing.T) {
		_, err := e.BufferGeometry(ctx, orb.Point{146, -37}, -1)
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})

	t.Run("zero radius keeps the footprint", func(t *testing.T) {
		p := orb.Point{146, -37}
		buffered, err := e.BufferGeometry(ctx, p, 0)
		require.NoError(t, err)
		region := e.UnionGeometries(ctx, []domain.BufferedGeometry{buffered})
		assert.True(t, region.Contains(p))
		assert.False(t, region.Contains(orb.Point{146.001, -37}))
	})
}

func TestClip(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(2, 1)

	img := singleBand(t, grid, []float64{7, 8})
	inside := grid.PixelCenter(0, 0)

	buffered, err := e.BufferGeometry(ctx, inside, 100)
	require.NoError(t, err)
	region := e.UnionGeometries(ctx, []domain.BufferedGeometry{buffered})

	out, err := e.Clip(ctx, img, region)
	require.NoError(t, err)
	assert.True(t, out.Valid(0, 0))
	assert.Equal(t, 7.0, out.Value(engine.DerivedBand, 0, 0), "inside pixels keep their value")
	assert.False(t, out.Valid(1, 0), "outside pixels become no-data")

	t.Run("empty region clips everything", func(t *testing.T) {
		out, err := e.Clip(ctx, img, domain.FireBufferRegion{})
		require.NoError(t, err)
		assert.Zero(t, out.CountValid())
	})
}

func TestReduceRegionMean(t *testing.T) {
	e := engine.New()
	ctx := context.Background()
	grid := testGrid(2, 2)

	img := singleBand(t, grid, []float64{1, 0, 1, 1})
	img.SetValid(1, 1, false)

	mean, ok, err := e.ReduceRegionMean(ctx, img)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, mean, 1e-9, "no-data pixels are excluded")

	t.Run("fully masked raster has no statistic", func(t *testing.T) {
		masked := img.Clone()
		for y := 0; y < grid.Height; y++ {
			for x := 0; x < grid.Width; x++ {
				masked.SetValid(x, y, false)
			}
		}
		_, ok, err := e.ReduceRegionMean(ctx, masked)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
