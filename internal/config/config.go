// Package config loads service settings from environment variables, with
// the imagery and fire-source asset identifiers optionally supplied by a
// JSON asset file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// Default asset identifiers: the Landsat 8 TOA collection the calibration
// targets, and the logical name of the fire-event vector source.
const (
	DefaultCollectionID = "LC8_L1T_TOA"
	DefaultFireSourceID = "recent-fires"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Imagery and fire inputs.
	CollectionID    string
	FireSourceID    string
	SceneDir        string
	FireFeedURL     string // when set, fires come from the remote feed
	FireGeoJSON     string // otherwise from this local file
	FireFeedTimeout time.Duration

	// Detection parameters.
	BufferMeters   float64
	CloudThreshold float64
	BurnThreshold  float64
	InitSeason     domain.DateRange
	PostSeason     domain.DateRange

	// Service shell.
	DBPath          string
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. Season defaults are the 2013/2014 fire seasons the detection
// thresholds were originally run against.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	feedTimeout, err := envDuration("FIRE_FEED_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	refreshInterval, err := envDuration("REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	bufferMeters, err := envFloat("BUFFER_METERS", 1000)
	if err != nil {
		return nil, err
	}
	cloudThreshold, err := envFloat("CLOUD_THRESHOLD", domain.DefaultCloudThreshold)
	if err != nil {
		return nil, err
	}
	burnThreshold, err := envFloat("BURN_THRESHOLD", domain.DefaultBurnThreshold)
	if err != nil {
		return nil, err
	}

	initSeason, err := envDateRange("INIT_START", "INIT_END", "2013-03-30", "2013-09-30")
	if err != nil {
		return nil, err
	}
	postSeason, err := envDateRange("POST_START", "POST_END", "2014-05-01", "2014-09-30")
	if err != nil {
		return nil, err
	}

	assets, err := LoadAssetIDs(os.Getenv("ASSET_IDS_PATH"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CollectionID:    assetOrDefault(assets, "imagery_collection", DefaultCollectionID),
		FireSourceID:    assetOrDefault(assets, "fire_source", DefaultFireSourceID),
		SceneDir:        envOrDefault("SCENE_DIR", "data/scenes"),
		FireFeedURL:     os.Getenv("FIRE_FEED_URL"),
		FireGeoJSON:     envOrDefault("FIRE_GEOJSON", "data/fires.geojson"),
		FireFeedTimeout: feedTimeout,

		BufferMeters:   bufferMeters,
		CloudThreshold: cloudThreshold,
		BurnThreshold:  burnThreshold,
		InitSeason:     initSeason,
		PostSeason:     postSeason,

		DBPath:          envOrDefault("DB_PATH", "burnscar.db"),
		RefreshInterval: refreshInterval,
	}

	if cfg.BufferMeters < 0 {
		return nil, fmt.Errorf("BUFFER_METERS must be >= 0, got %g", cfg.BufferMeters)
	}
	if cfg.CloudThreshold < 0 || cfg.CloudThreshold > 1 {
		return nil, fmt.Errorf("CLOUD_THRESHOLD must be in [0, 1], got %g", cfg.CloudThreshold)
	}
	if cfg.SceneDir == "" {
		return nil, fmt.Errorf("SCENE_DIR is required")
	}
	if cfg.FireFeedURL == "" && cfg.FireGeoJSON == "" {
		return nil, fmt.Errorf("one of FIRE_FEED_URL or FIRE_GEOJSON is required")
	}

	return cfg, nil
}

// LoadAssetIDs reads the asset identifier JSON file, a flat string map. A
// missing file or empty path yields an empty map so the defaults apply; a
// present but malformed file is an error.
func LoadAssetIDs(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read asset ids: %w", err)
	}
	var assets map[string]string
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("parse asset ids %s: %w", path, err)
	}
	return assets, nil
}

func assetOrDefault(assets map[string]string, key, fallback string) string {
	if v, ok := assets[key]; ok && v != "" {
		return v
	}
	return fallback
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func envDateRange(startKey, endKey, startDefault, endDefault string) (domain.DateRange, error) {
	start := envOrDefault(startKey, startDefault)
	end := envOrDefault(endKey, endDefault)
	dr, err := domain.ParseDateRange(start, end)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("%s/%s: %w", startKey, endKey, err)
	}
	return dr, nil
}
