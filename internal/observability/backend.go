package observability

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/burn-scar-detection/internal/detect"
	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// InstrumentedBackend decorates a detect.Backend, counting every operation
// in the backend_ops_total metric.
type InstrumentedBackend struct {
	inner   detect.Backend
	metrics *Metrics
}

// NewInstrumentedBackend wraps inner with operation counting.
func NewInstrumentedBackend(inner detect.Backend, metrics *Metrics) *InstrumentedBackend {
	return &InstrumentedBackend{inner: inner, metrics: metrics}
}

func (b *InstrumentedBackend) Constant(grid domain.Grid, value float64) domain.Raster {
	b.metrics.BackendOps.WithLabelValues("constant").Inc()
	return b.inner.Constant(grid, value)
}

func (b *InstrumentedBackend) Evaluate(ctx context.Context, img domain.Raster, bands []string, expr domain.PixelExpr) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("evaluate").Inc()
	return b.inner.Evaluate(ctx, img, bands, expr)
}

func (b *InstrumentedBackend) NormalizedDifference(ctx context.Context, img domain.Raster, bandA, bandB string) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("normalized_difference").Inc()
	return b.inner.NormalizedDifference(ctx, img, bandA, bandB)
}

func (b *InstrumentedBackend) Min(ctx context.Context, x, y domain.Raster) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("min").Inc()
	return b.inner.Min(ctx, x, y)
}

func (b *InstrumentedBackend) Subtract(ctx context.Context, x, y domain.Raster) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("subtract").Inc()
	return b.inner.Subtract(ctx, x, y)
}

func (b *InstrumentedBackend) ReduceMin(ctx context.Context, coll domain.RasterCollection) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("reduce_min").Inc()
	return b.inner.ReduceMin(ctx, coll)
}

func (b *InstrumentedBackend) FilterByDate(ctx context.Context, coll domain.RasterCollection, window domain.DateRange) (domain.RasterCollection, error) {
	b.metrics.BackendOps.WithLabelValues("filter_by_date").Inc()
	return b.inner.FilterByDate(ctx, coll, window)
}

func (b *InstrumentedBackend) Mask(ctx context.Context, img, binary domain.Raster) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("mask").Inc()
	return b.inner.Mask(ctx, img, binary)
}

func (b *InstrumentedBackend) SelfMask(ctx context.Context, img domain.Raster) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("self_mask").Inc()
	return b.inner.SelfMask(ctx, img)
}

func (b *InstrumentedBackend) GreaterThan(ctx context.Context, img domain.Raster, v float64) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("greater_than").Inc()
	return b.inner.GreaterThan(ctx, img, v)
}

func (b *InstrumentedBackend) LessThanOrEqual(ctx context.Context, img domain.Raster, v float64) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("less_than_or_equal").Inc()
	return b.inner.LessThanOrEqual(ctx, img, v)
}

func (b *InstrumentedBackend) BufferGeometry(ctx context.Context, g orb.Geometry, meters float64) (domain.BufferedGeometry, error) {
	b.metrics.BackendOps.WithLabelValues("buffer_geometry").Inc()
	return b.inner.BufferGeometry(ctx, g, meters)
}

func (b *InstrumentedBackend) UnionGeometries(ctx context.Context, shapes []domain.BufferedGeometry) domain.FireBufferRegion {
	b.metrics.BackendOps.WithLabelValues("union_geometries").Inc()
	return b.inner.UnionGeometries(ctx, shapes)
}

func (b *InstrumentedBackend) Clip(ctx context.Context, img domain.Raster, region domain.FireBufferRegion) (domain.Raster, error) {
	b.metrics.BackendOps.WithLabelValues("clip").Inc()
	return b.inner.Clip(ctx, img, region)
}

func (b *InstrumentedBackend) ReduceRegionMean(ctx context.Context, img domain.Raster) (float64, bool, error) {
	b.metrics.BackendOps.WithLabelValues("reduce_region_mean").Inc()
	return b.inner.ReduceRegionMean(ctx, img)
}
