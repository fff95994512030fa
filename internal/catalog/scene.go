package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// sceneFile is the on-disk scene format shared with cmd/genscenes. Band
// planes are row-major from the north-west corner; no_data lists the plane
// offsets of masked pixels, which keeps mostly valid scenes compact.
type sceneFile struct {
	ID         string               `json:"id"`
	AcquiredAt time.Time            `json:"acquired_at"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Bound      [4]float64           `json:"bound"` // min lon, min lat, max lon, max lat
	Bands      map[string][]float64 `json:"bands"`
	NoData     []int                `json:"no_data,omitempty"`
}

// EncodeScene writes scene as JSON.
func EncodeScene(w io.Writer, scene domain.SceneRaster) error {
	grid := scene.Grid()
	sf := sceneFile{
		ID:         scene.ID,
		AcquiredAt: scene.AcquiredAt.UTC(),
		Width:      grid.Width,
		Height:     grid.Height,
		Bound: [4]float64{
			grid.Bound.Min[0], grid.Bound.Min[1],
			grid.Bound.Max[0], grid.Bound.Max[1],
		},
		Bands: make(map[string][]float64, scene.BandCount()),
	}
	for _, name := range scene.BandNames() {
		plane := make([]float64, 0, grid.Cells())
		for y := 0; y < grid.Height; y++ {
			for x := 0; x < grid.Width; x++ {
				plane = append(plane, scene.Value(name, x, y))
			}
		}
		sf.Bands[name] = plane
	}
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if !scene.Valid(x, y) {
				sf.NoData = append(sf.NoData, grid.Index(x, y))
			}
		}
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(sf); err != nil {
		return fmt.Errorf("encode scene %s: %w", scene.ID, err)
	}
	return nil
}

// DecodeScene reads one JSON scene.
func DecodeScene(r io.Reader) (domain.SceneRaster, error) {
	var sf sceneFile
	if err := json.NewDecoder(r).Decode(&sf); err != nil {
		return domain.SceneRaster{}, fmt.Errorf("decode scene: %w", err)
	}
	if sf.Width <= 0 || sf.Height <= 0 {
		return domain.SceneRaster{}, fmt.Errorf("scene %s: bad grid %dx%d", sf.ID, sf.Width, sf.Height)
	}
	if len(sf.Bands) == 0 {
		return domain.SceneRaster{}, fmt.Errorf("scene %s: no bands", sf.ID)
	}

	grid := domain.Grid{
		Width:  sf.Width,
		Height: sf.Height,
		Bound: orb.Bound{
			Min: orb.Point{sf.Bound[0], sf.Bound[1]},
			Max: orb.Point{sf.Bound[2], sf.Bound[3]},
		},
	}

	names := make([]string, 0, len(sf.Bands))
	for name := range sf.Bands {
		names = append(names, name)
	}
	raster := domain.NewRaster(grid, names...)
	for name, plane := range sf.Bands {
		if len(plane) != grid.Cells() {
			return domain.SceneRaster{}, fmt.Errorf("scene %s: band %s has %d values, want %d",
				sf.ID, name, len(plane), grid.Cells())
		}
		for y := 0; y < grid.Height; y++ {
			for x := 0; x < grid.Width; x++ {
				raster.SetValue(name, x, y, plane[grid.Index(x, y)])
			}
		}
	}
	for _, idx := range sf.NoData {
		if idx < 0 || idx >= grid.Cells() {
			return domain.SceneRaster{}, fmt.Errorf("scene %s: no_data offset %d out of range", sf.ID, idx)
		}
		raster.SetValid(idx%grid.Width, idx/grid.Width, false)
	}

	return domain.SceneRaster{Raster: raster, ID: sf.ID, AcquiredAt: sf.AcquiredAt}, nil
}
