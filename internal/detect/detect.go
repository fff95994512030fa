// Package detect implements the burn-scar detection pipeline: cloud scoring
// and masking, temporal compositing, normalized burn ratio differencing, and
// localization of the result to buffered fire-event geometries. All raster
// and geometry work is delegated to a Backend; the package itself only
// sequences the algorithm.
package detect

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// Backend is the raster processing service the pipeline runs against. The
// in-memory engine implements it; a remote evaluator could too. Single-band
// rasters produced by Constant, Evaluate, and the comparators must be
// combinable with each other via Min and Subtract.
type Backend interface {
	Constant(grid domain.Grid, value float64) domain.Raster
	Evaluate(ctx context.Context, img domain.Raster, bands []string, expr domain.PixelExpr) (domain.Raster, error)
	NormalizedDifference(ctx context.Context, img domain.Raster, bandA, bandB string) (domain.Raster, error)
	Min(ctx context.Context, a, b domain.Raster) (domain.Raster, error)
	Subtract(ctx context.Context, a, b domain.Raster) (domain.Raster, error)
	ReduceMin(ctx context.Context, coll domain.RasterCollection) (domain.Raster, error)
	FilterByDate(ctx context.Context, coll domain.RasterCollection, window domain.DateRange) (domain.RasterCollection, error)
	Mask(ctx context.Context, img, binary domain.Raster) (domain.Raster, error)
	SelfMask(ctx context.Context, img domain.Raster) (domain.Raster, error)
	GreaterThan(ctx context.Context, img domain.Raster, v float64) (domain.Raster, error)
	LessThanOrEqual(ctx context.Context, img domain.Raster, v float64) (domain.Raster, error)
	BufferGeometry(ctx context.Context, g orb.Geometry, meters float64) (domain.BufferedGeometry, error)
	UnionGeometries(ctx context.Context, shapes []domain.BufferedGeometry) domain.FireBufferRegion
	Clip(ctx context.Context, img domain.Raster, region domain.FireBufferRegion) (domain.Raster, error)
	ReduceRegionMean(ctx context.Context, img domain.Raster) (float64, bool, error)
}

// Calibration ranges for the five cloud evidence signals. Each raw signal
// rescales as (raw - first) / (second - first); the two descending pairs
// invert the sense on purpose, so cooler and less snow-like pixels score
// higher. See the domain package documentation.
var (
	blueRange     = [2]float64{0.1, 0.3}
	visibleRange  = [2]float64{0.2, 0.8}
	infraredRange = [2]float64{0.3, 0.8}
	thermalRange  = [2]float64{300, 290}
	snowRange     = [2]float64{0.8, 0.6}
)

// Scorer computes per-pixel cloud likelihood for Landsat 8 scenes.
type Scorer struct {
	backend Backend
}

// NewScorer returns a Scorer running against backend.
func NewScorer(b Backend) *Scorer {
	return &Scorer{backend: b}
}

// Score returns a single-band raster of cloud likelihood, nominally [0, 1]
// with 1 maximally cloud-like. The score starts at a constant 1.0 and is
// successively min'd with each rescaled signal, so a pixel counts as cloud
// only when every heuristic agrees. Scoring an empty raster yields the
// empty raster.
func (s *Scorer) Score(ctx context.Context, img domain.Raster) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}
	if err := img.RequireBands(domain.SceneBands...); err != nil {
		return domain.Raster{}, fmt.Errorf("cloud score: %w", err)
	}

	score := s.backend.Constant(img.Grid(), 1.0)

	// Clouds are reasonably bright in the blue band.
	score, err := s.minSignal(ctx, score, img,
		[]string{domain.BandBlue},
		func(v []float64) float64 { return v[0] },
		blueRange)
	if err != nil {
		return domain.Raster{}, err
	}

	// Clouds are reasonably bright across the visible bands.
	score, err = s.minSignal(ctx, score, img,
		[]string{domain.BandRed, domain.BandGreen, domain.BandBlue},
		func(v []float64) float64 { return v[0] + v[1] + v[2] },
		visibleRange)
	if err != nil {
		return domain.Raster{}, err
	}

	// Clouds are reasonably bright across the infrared bands.
	score, err = s.minSignal(ctx, score, img,
		[]string{domain.BandNIR, domain.BandSWIR1, domain.BandSWIR2},
		func(v []float64) float64 { return v[0] + v[1] + v[2] },
		infraredRange)
	if err != nil {
		return domain.Raster{}, err
	}

	// Clouds are reasonably cool in temperature.
	score, err = s.minSignal(ctx, score, img,
		[]string{domain.BandThermal},
		func(v []float64) float64 { return v[0] },
		thermalRange)
	if err != nil {
		return domain.Raster{}, err
	}

	// However, clouds are not snow.
	ndsi, err := s.backend.NormalizedDifference(ctx, img, domain.BandGreen, domain.BandSWIR1)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("cloud score: %w", err)
	}
	score, err = s.minSignal(ctx, score, ndsi,
		ndsi.BandNames(),
		func(v []float64) float64 { return v[0] },
		snowRange)
	if err != nil {
		return domain.Raster{}, err
	}

	return score, nil
}

// minSignal evaluates one raw signal over img, rescales it against the
// calibration pair, and folds it into the running score by pixel-wise min.
func (s *Scorer) minSignal(ctx context.Context, score, img domain.Raster, bands []string, raw domain.PixelExpr, pair [2]float64) (domain.Raster, error) {
	sig, err := s.backend.Evaluate(ctx, img, bands, func(v []float64) float64 {
		return (raw(v) - pair[0]) / (pair[1] - pair[0])
	})
	if err != nil {
		return domain.Raster{}, fmt.Errorf("cloud score: %w", err)
	}
	out, err := s.backend.Min(ctx, score, sig)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("cloud score: %w", err)
	}
	return out, nil
}

// Masker removes cloudy pixels from scenes using a Scorer and a threshold.
type Masker struct {
	backend   Backend
	scorer    *Scorer
	threshold float64
}

// NewMasker returns a Masker whose MakeCloudFree retains pixels scoring at
// or below threshold. Pass domain.DefaultCloudThreshold for the calibrated
// cutoff.
func NewMasker(b Backend, threshold float64) *Masker {
	return &Masker{backend: b, scorer: NewScorer(b), threshold: threshold}
}

// Mask keeps every pixel of img where scores is at or below threshold and
// marks the rest no-data across all bands. Pixel values are never changed,
// only their validity.
func (m *Masker) Mask(ctx context.Context, img, scores domain.Raster, threshold float64) (domain.Raster, error) {
	binary, err := m.backend.LessThanOrEqual(ctx, scores, threshold)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("cloud mask: %w", err)
	}
	out, err := m.backend.Mask(ctx, img, binary)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("cloud mask: %w", err)
	}
	return out, nil
}

// MakeCloudFree scores img and masks it at the Masker's threshold.
func (m *Masker) MakeCloudFree(ctx context.Context, img domain.Raster) (domain.Raster, error) {
	if img.Empty() {
		return domain.Raster{}, nil
	}
	scores, err := m.scorer.Score(ctx, img)
	if err != nil {
		return domain.Raster{}, err
	}
	return m.Mask(ctx, img, scores, m.threshold)
}

// CloudFraction reports the proportion of img's pixels that score above the
// cloud threshold. The second return is false when the scene carries no
// scoreable pixels.
func (m *Masker) CloudFraction(ctx context.Context, img domain.Raster) (float64, bool, error) {
	if img.Empty() {
		return 0, false, nil
	}
	scores, err := m.scorer.Score(ctx, img)
	if err != nil {
		return 0, false, err
	}
	binary, err := m.backend.GreaterThan(ctx, scores, m.threshold)
	if err != nil {
		return 0, false, fmt.Errorf("cloud fraction: %w", err)
	}
	frac, ok, err := m.backend.ReduceRegionMean(ctx, binary)
	if err != nil {
		return 0, false, fmt.Errorf("cloud fraction: %w", err)
	}
	return frac, ok, nil
}

// Compositor builds cloud-free composites from timestamped collections.
type Compositor struct {
	backend Backend
	masker  *Masker
}

// NewCompositor returns a Compositor that cloud-masks scenes with masker
// before reducing them.
func NewCompositor(b Backend, m *Masker) *Compositor {
	return &Compositor{backend: b, masker: m}
}

// Composite filters coll to the window, cloud-masks every remaining scene,
// and reduces the set by per-pixel minimum. The minimum favors darker,
// less cloud-contaminated values, a cheap cloud-free heuristic. A window
// that filters to nothing, or a pixel masked in every scene, composites to
// no-data rather than erroring.
func (c *Compositor) Composite(ctx context.Context, coll domain.RasterCollection, window domain.DateRange) (domain.Raster, error) {
	filtered, err := c.backend.FilterByDate(ctx, coll, window)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("composite %s: %w", window, err)
	}

	masked := make(domain.RasterCollection, 0, len(filtered))
	for _, scene := range filtered {
		cf, err := c.masker.MakeCloudFree(ctx, scene.Raster)
		if err != nil {
			return domain.Raster{}, fmt.Errorf("composite %s: scene %s: %w", window, scene.ID, err)
		}
		masked = append(masked, domain.SceneRaster{Raster: cf, ID: scene.ID, AcquiredAt: scene.AcquiredAt})
	}

	out, err := c.backend.ReduceMin(ctx, masked)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("composite %s: %w", window, err)
	}
	return out, nil
}

// Detector derives a binary burn mask from pre- and post-fire composites.
type Detector struct {
	backend       Backend
	compositor    *Compositor
	masker        *Masker
	burnThreshold float64
	swirBand      string
	nirBand       string
}

// NewDetector returns a Detector. Pass domain.DefaultCloudThreshold and
// domain.DefaultBurnThreshold for the calibrated behavior.
func NewDetector(b Backend, cloudThreshold, burnThreshold float64) *Detector {
	m := NewMasker(b, cloudThreshold)
	return &Detector{
		backend:       b,
		compositor:    NewCompositor(b, m),
		masker:        m,
		burnThreshold: burnThreshold,
		swirBand:      domain.NBRSWIRBand,
		nirBand:       domain.NBRNIRBand,
	}
}

// SetNBRBands overrides the band pair the burn ratio contrasts. The default
// pair is the one the burn threshold was calibrated against; override only
// with a re-derived threshold.
func (d *Detector) SetNBRBands(swir, nir string) {
	d.swirBand, d.nirBand = swir, nir
}

// BurnMask composites coll over both seasons, cloud-masks each composite a
// second time to catch residual cloud, differences their normalized burn
// ratios, and thresholds the delta. The comparison is strict: a delta
// exactly at the threshold is not burned. The result is self-masked so only
// burned pixels carry a value. A season that composites to nothing degrades
// the result to the empty raster.
func (d *Detector) BurnMask(ctx context.Context, coll domain.RasterCollection, initRange, postRange domain.DateRange) (domain.Raster, error) {
	if err := initRange.Validate(); err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: init season: %w", err)
	}
	if err := postRange.Validate(); err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: post season: %w", err)
	}

	// The two season composites share no state, so build them in parallel.
	var init, post domain.Raster
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		init, err = d.seasonComposite(gctx, coll, initRange)
		return err
	})
	g.Go(func() error {
		var err error
		post, err = d.seasonComposite(gctx, coll, postRange)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: %w", err)
	}

	nbrInit, err := d.backend.NormalizedDifference(ctx, init, d.swirBand, d.nirBand)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: init nbr: %w", err)
	}
	nbrPost, err := d.backend.NormalizedDifference(ctx, post, d.swirBand, d.nirBand)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: post nbr: %w", err)
	}

	delta, err := d.backend.Subtract(ctx, nbrPost, nbrInit)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: delta: %w", err)
	}
	binary, err := d.backend.GreaterThan(ctx, delta, d.burnThreshold)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: threshold: %w", err)
	}
	out, err := d.backend.SelfMask(ctx, binary)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("burn mask: %w", err)
	}
	return out, nil
}

// seasonComposite builds the cloud-free composite for one season and runs
// the second cloud-mask pass over it. Compositing alone can leave residual
// cloud when every scene at a pixel is contaminated.
func (d *Detector) seasonComposite(ctx context.Context, coll domain.RasterCollection, window domain.DateRange) (domain.Raster, error) {
	comp, err := d.compositor.Composite(ctx, coll, window)
	if err != nil {
		return domain.Raster{}, err
	}
	return d.masker.MakeCloudFree(ctx, comp)
}

// Localizer restricts rasters to the neighborhood of known fire events.
type Localizer struct {
	backend Backend
}

// NewLocalizer returns a Localizer running against backend.
func NewLocalizer(b Backend) *Localizer {
	return &Localizer{backend: b}
}

// Buffer expands every fire geometry outward by meters and unions the
// results into one region. A negative radius is a caller error; no
// geometries yield the empty region, which clips everything away.
func (l *Localizer) Buffer(ctx context.Context, fires []orb.Geometry, meters float64) (domain.FireBufferRegion, error) {
	shapes := make([]domain.BufferedGeometry, 0, len(fires))
	for _, g := range fires {
		buffered, err := l.backend.BufferGeometry(ctx, g, meters)
		if err != nil {
			return domain.FireBufferRegion{}, fmt.Errorf("fire buffer: %w", err)
		}
		shapes = append(shapes, buffered)
	}
	return l.backend.UnionGeometries(ctx, shapes), nil
}

// Clip restricts img to the region: outside pixels become no-data, inside
// pixels keep their value and mask state.
func (l *Localizer) Clip(ctx context.Context, img domain.Raster, region domain.FireBufferRegion) (domain.Raster, error) {
	out, err := l.backend.Clip(ctx, img, region)
	if err != nil {
		return domain.Raster{}, fmt.Errorf("clip: %w", err)
	}
	return out, nil
}
