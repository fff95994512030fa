// Command burnscar detects burn scars in Landsat 8 imagery by differencing
// normalized burn ratios of a pre-fire and post-fire composite, and clips
// the result to buffered fire-event geometries.
//
// One-shot mode (the default) runs one detection pass and writes PNG and
// TIFF exports:
//
//	burnscar -m 1000 -out out/
//
// Serve mode runs the detection on a refresh interval and exposes the
// result over HTTP:
//
//	burnscar -serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/burn-scar-detection/internal/adapter/httpadapter"
	"github.com/couchcryptid/burn-scar-detection/internal/catalog"
	"github.com/couchcryptid/burn-scar-detection/internal/config"
	"github.com/couchcryptid/burn-scar-detection/internal/domain"
	"github.com/couchcryptid/burn-scar-detection/internal/engine"
	"github.com/couchcryptid/burn-scar-detection/internal/firesource"
	"github.com/couchcryptid/burn-scar-detection/internal/observability"
	"github.com/couchcryptid/burn-scar-detection/internal/pipeline"
	"github.com/couchcryptid/burn-scar-detection/internal/render"
	"github.com/couchcryptid/burn-scar-detection/internal/store"
)

func main() {
	meters := flag.Float64("m", -1, "buffer radius in meters around fire events (overrides BUFFER_METERS)")
	serve := flag.Bool("serve", false, "run as a service with HTTP endpoints and a refresh loop")
	outDir := flag.String("out", "out", "directory for one-shot exports")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *meters >= 0 {
		cfg.BufferMeters = *meters
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("failed to open run ledger", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	backend := observability.NewInstrumentedBackend(engine.New(), metrics)

	var fires pipeline.FireSource
	if cfg.FireFeedURL != "" {
		fires = firesource.NewClient(cfg.FireFeedURL, cfg.FireFeedTimeout, firesource.DefaultCacheTTL, logger)
		logger.Info("fire source", "id", cfg.FireSourceID, "feed", cfg.FireFeedURL)
	} else {
		fires = firesource.NewFile(cfg.FireGeoJSON)
		logger.Info("fire source", "id", cfg.FireSourceID, "file", cfg.FireGeoJSON)
	}

	p := pipeline.New(pipeline.Deps{
		Scenes:   catalog.NewDir(cfg.SceneDir, logger),
		Fires:    fires,
		Backend:  backend,
		Recorder: st,
		Logger:   logger,
		Metrics:  metrics,
	}, pipeline.Params{
		InitSeason:     cfg.InitSeason,
		PostSeason:     cfg.PostSeason,
		BufferMeters:   cfg.BufferMeters,
		CloudThreshold: cfg.CloudThreshold,
		BurnThreshold:  cfg.BurnThreshold,
	})

	logger.Info("burn-scar detection configured",
		"collection", cfg.CollectionID,
		"init_season", cfg.InitSeason.String(),
		"post_season", cfg.PostSeason.String(),
		"buffer_meters", cfg.BufferMeters,
	)

	if *serve {
		runServe(ctx, cfg, p, st, logger)
		return
	}
	if err := runOnce(ctx, p, *outDir, logger); err != nil {
		logger.Error("detection failed", "error", err)
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, p *pipeline.Pipeline, outDir string, logger *slog.Logger) error {
	mask, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if mask.Empty() {
		logger.Info("no imagery in either season, nothing to export")
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	band := mask.BandNames()[0]
	if err := writeExport(filepath.Join(outDir, "burn-scar.png"), mask, band, render.WriteMaskPNG); err != nil {
		return err
	}
	if err := writeExport(filepath.Join(outDir, "burn-scar.tif"), mask, band, render.WriteTIFF); err != nil {
		return err
	}
	logger.Info("exports written", "dir", outDir, "burned_pixels", mask.CountValid())
	return nil
}

func writeExport(path string, mask domain.Raster, band string, encode func(w io.Writer, r domain.Raster, band string) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encode(f, mask, band); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func runServe(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, st *store.Store, logger *slog.Logger) {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, st, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	go func() {
		if err := p.RunLoop(ctx, cfg.RefreshInterval); err != nil {
			logger.Error("pipeline loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
