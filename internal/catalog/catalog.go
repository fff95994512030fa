// Package catalog supplies the imagery collections the pipeline composites.
// Scenes come either from memory (tests, fixtures baked into a binary) or
// from a directory of JSON scene files written by cmd/genscenes.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// Catalog yields every scene of the configured imagery collection. The
// pipeline date-filters the result itself, so implementations return the
// whole collection.
type Catalog interface {
	Scenes(ctx context.Context) (domain.RasterCollection, error)
}

// Memory is a fixed in-memory collection.
type Memory struct {
	coll domain.RasterCollection
}

// NewMemory returns a Catalog serving coll.
func NewMemory(coll domain.RasterCollection) *Memory {
	return &Memory{coll: coll}
}

// Scenes returns the collection as given.
func (m *Memory) Scenes(_ context.Context) (domain.RasterCollection, error) {
	return m.coll, nil
}

// Dir loads every *.json scene file under a directory. A missing directory
// is an error; an empty one is an empty collection, which the pipeline
// absorbs as no-data.
type Dir struct {
	dir    string
	logger *slog.Logger
}

// NewDir returns a Catalog reading scene files from dir.
func NewDir(dir string, logger *slog.Logger) *Dir {
	return &Dir{dir: dir, logger: logger}
}

// Scenes reads and decodes every scene file, ordered by file name.
func (d *Dir) Scenes(_ context.Context) (domain.RasterCollection, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read scene dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	coll := make(domain.RasterCollection, 0, len(names))
	for _, name := range names {
		scene, err := readSceneFile(filepath.Join(d.dir, name))
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", name, err)
		}
		coll = append(coll, scene)
	}
	d.logger.Debug("scene catalog loaded", "dir", d.dir, "scenes", len(coll))
	return coll, nil
}

func readSceneFile(path string) (domain.SceneRaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.SceneRaster{}, err
	}
	defer f.Close()
	return DecodeScene(f)
}
