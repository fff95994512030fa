// Package pipeline wires the scene catalog, the fire-geometry source, and
// the detection core into the end-to-end burn-scar operation, and runs it
// on a refresh interval for the service shell.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/burn-scar-detection/internal/detect"
	"github.com/couchcryptid/burn-scar-detection/internal/domain"
	"github.com/couchcryptid/burn-scar-detection/internal/observability"
	"github.com/couchcryptid/burn-scar-detection/internal/store"
)

// SceneSource yields the imagery collection to composite.
type SceneSource interface {
	Scenes(ctx context.Context) (domain.RasterCollection, error)
}

// FireSource yields the known fire-event geometries.
type FireSource interface {
	FireGeometries(ctx context.Context) ([]orb.Geometry, error)
}

// RunRecorder persists one ledger row per pipeline invocation.
type RunRecorder interface {
	InsertRun(ctx context.Context, run store.Run) (int64, error)
}

// Deps are the collaborators a Pipeline runs against. Recorder may be nil
// when no ledger is wanted.
type Deps struct {
	Scenes   SceneSource
	Fires    FireSource
	Backend  detect.Backend
	Recorder RunRecorder
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Params are the detection parameters of a run.
type Params struct {
	InitSeason     domain.DateRange
	PostSeason     domain.DateRange
	BufferMeters   float64
	CloudThreshold float64
	BurnThreshold  float64
}

// Pipeline is the sole externally invoked operation of the service: build
// the burn mask for the two seasons and clip it to the buffered fire
// regions.
type Pipeline struct {
	scenes   SceneSource
	fires    FireSource
	recorder RunRecorder
	logger   *slog.Logger
	metrics  *observability.Metrics
	params   Params

	detector   *detect.Detector
	localizer  *detect.Localizer
	masker     *detect.Masker
	compositor *detect.Compositor

	ready  atomic.Bool
	mu     sync.RWMutex
	latest domain.Raster
}

// New builds a Pipeline. The detection components are constructed from
// deps.Backend with the thresholds in params.
func New(deps Deps, params Params) *Pipeline {
	masker := detect.NewMasker(deps.Backend, params.CloudThreshold)
	return &Pipeline{
		scenes:     deps.Scenes,
		fires:      deps.Fires,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		params:     params,
		detector:   detect.NewDetector(deps.Backend, params.CloudThreshold, params.BurnThreshold),
		localizer:  detect.NewLocalizer(deps.Backend),
		masker:     masker,
		compositor: detect.NewCompositor(deps.Backend, masker),
	}
}

// CheckReadiness returns nil once at least one run has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no detection run has completed yet")
	}
	return nil
}

// LatestMask returns the clipped burn mask of the most recent completed
// run. The second return is false before the first run. The returned raster
// may be empty when both seasons filtered to nothing.
func (p *Pipeline) LatestMask() (domain.Raster, bool) {
	if !p.ready.Load() {
		return domain.Raster{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, true
}

// Run executes one detection pass: load scenes and fires, derive the burn
// mask for the two seasons, buffer and union the fire geometries, and clip
// the mask to the region. Data sparsity (no scenes in season, no fires)
// degrades the result to an empty or fully masked raster; structural and
// backend failures are returned.
func (p *Pipeline) Run(ctx context.Context) (domain.Raster, error) {
	started := domain.Now()

	result, sceneCount, fireCount, err := p.detect(ctx)
	finished := domain.Now()
	elapsed := finished.Sub(started)
	p.metrics.RunDuration.Observe(elapsed.Seconds())

	outcome := outcomeOf(result, err)
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.record(ctx, started, finished, sceneCount, fireCount, result, outcome, err)

	if err != nil {
		p.logger.Error("detection run failed", "error", err, "duration", elapsed)
		return domain.Raster{}, err
	}

	burned := result.CountValid()
	p.metrics.BurnedPixels.Set(float64(burned))
	p.logger.Info("detection run complete",
		"outcome", outcome,
		"scenes", sceneCount,
		"fires", fireCount,
		"burned_pixels", burned,
		"duration", elapsed,
	)

	p.mu.Lock()
	p.latest = result
	p.mu.Unlock()
	p.ready.Store(true)

	return result, nil
}

func (p *Pipeline) detect(ctx context.Context) (domain.Raster, int, int, error) {
	coll, err := p.scenes.Scenes(ctx)
	if err != nil {
		return domain.Raster{}, 0, 0, err
	}
	p.metrics.ScenesLoaded.Set(float64(len(coll)))

	fires, err := p.fires.FireGeometries(ctx)
	if err != nil {
		p.metrics.FireFetches.WithLabelValues("error").Inc()
		return domain.Raster{}, len(coll), 0, err
	}
	p.metrics.FireFetches.WithLabelValues("success").Inc()

	mask, err := p.detector.BurnMask(ctx, coll, p.params.InitSeason, p.params.PostSeason)
	if err != nil {
		return domain.Raster{}, len(coll), len(fires), err
	}

	region, err := p.localizer.Buffer(ctx, fires, p.params.BufferMeters)
	if err != nil {
		return domain.Raster{}, len(coll), len(fires), err
	}
	clipped, err := p.localizer.Clip(ctx, mask, region)
	if err != nil {
		return domain.Raster{}, len(coll), len(fires), err
	}

	p.observeCloudFractions(ctx, coll)
	return clipped, len(coll), len(fires), nil
}

// observeCloudFractions computes the cloudy-pixel fraction of each season
// composite as a diagnostic gauge. Failures here only log; the statistic is
// not part of the detection contract.
func (p *Pipeline) observeCloudFractions(ctx context.Context, coll domain.RasterCollection) {
	for _, season := range []struct {
		label  string
		window domain.DateRange
	}{
		{"init", p.params.InitSeason},
		{"post", p.params.PostSeason},
	} {
		comp, err := p.compositor.Composite(ctx, coll, season.window)
		if err != nil {
			p.logger.Warn("cloud fraction diagnostic failed", "season", season.label, "error", err)
			continue
		}
		frac, ok, err := p.masker.CloudFraction(ctx, comp)
		if err != nil {
			p.logger.Warn("cloud fraction diagnostic failed", "season", season.label, "error", err)
			continue
		}
		if ok {
			p.metrics.CloudFraction.WithLabelValues(season.label).Set(frac)
		}
	}
}

func (p *Pipeline) record(ctx context.Context, started, finished time.Time, sceneCount, fireCount int, result domain.Raster, outcome string, runErr error) {
	if p.recorder == nil {
		return
	}
	run := store.Run{
		StartedAt:    started,
		FinishedAt:   finished,
		InitStart:    p.params.InitSeason.Start.Format("2006-01-02"),
		InitEnd:      p.params.InitSeason.End.Format("2006-01-02"),
		PostStart:    p.params.PostSeason.Start.Format("2006-01-02"),
		PostEnd:      p.params.PostSeason.End.Format("2006-01-02"),
		BufferMeters: p.params.BufferMeters,
		SceneCount:   sceneCount,
		FireCount:    fireCount,
		Outcome:      outcome,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	} else {
		run.BurnedPixels = result.CountValid()
	}
	if _, err := p.recorder.InsertRun(ctx, run); err != nil {
		p.logger.Warn("record run failed", "error", err)
	}
}

func outcomeOf(result domain.Raster, err error) string {
	switch {
	case err != nil:
		return store.OutcomeError
	case result.Empty():
		return store.OutcomeEmpty
	default:
		return store.OutcomeOK
	}
}

// RunLoop re-runs detection every interval until the context is cancelled,
// with exponential backoff after failures: start at 200ms, double each
// retry, cap at 5s, reset on success.
func (p *Pipeline) RunLoop(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline loop started", "interval", interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if _, err := p.Run(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline loop stopping", "reason", ctx.Err())
				return nil
			}
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if !sleepWithContext(ctx, interval) {
			p.logger.Info("pipeline loop stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
