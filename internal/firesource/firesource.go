// Package firesource supplies the fire-event geometries the pipeline
// buffers and clips against, either from a local GeoJSON file or from a
// remote GeoJSON feed.
package firesource

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Source yields the known fire-event geometries for the configured vector
// source.
type Source interface {
	FireGeometries(ctx context.Context) ([]orb.Geometry, error)
}

// File reads a GeoJSON FeatureCollection from disk on every call.
type File struct {
	path string
}

// NewFile returns a Source reading path.
func NewFile(path string) *File {
	return &File{path: path}
}

// FireGeometries parses the file and returns one geometry per feature.
func (f *File) FireGeometries(_ context.Context) ([]orb.Geometry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read fire geojson: %w", err)
	}
	return parseFeatureCollection(data)
}

func parseFeatureCollection(data []byte) ([]orb.Geometry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse fire geojson: %w", err)
	}
	geoms := make([]orb.Geometry, 0, len(fc.Features))
	for _, feat := range fc.Features {
		if feat.Geometry == nil {
			continue
		}
		geoms = append(geoms, feat.Geometry)
	}
	return geoms, nil
}
