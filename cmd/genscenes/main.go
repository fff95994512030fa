// Command genscenes writes a deterministic synthetic Landsat 8 fixture set:
// JSON scene files for the two default detection seasons plus a GeoJSON
// fire-event file, in the formats the scene catalog and file fire source
// read. The generated area contains one burn scar that appears between the
// seasons and a cloud patch that moves between acquisitions, so a detection
// run over the fixtures exercises cloud masking, compositing, and clipping.
//
// Usage:
//
//	go run ./cmd/genscenes -out data
//	SCENE_DIR=data/scenes FIRE_GEOJSON=data/fires.geojson burnscar -m 2000
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/burn-scar-detection/internal/catalog"
	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// The fixture covers a small alpine valley at roughly 1.1 km per pixel.
var fixtureGrid = domain.Grid{
	Width:  8,
	Height: 8,
	Bound: orb.Bound{
		Min: orb.Point{146.80, -36.78},
		Max: orb.Point{146.88, -36.70},
	},
}

// Burn scar footprint in pixel coordinates, present only in post scenes.
const (
	burnMinX, burnMaxX = 2, 4
	burnMinY, burnMaxY = 2, 4
)

// Landsat 8 revisit interval.
const revisit = 16 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data", "output directory (scenes/ and fires.geojson are created inside)")
	perSeason := flag.Int("scenes", 4, "scenes to generate per season")
	seed := flag.Int64("seed", 1, "random seed for reflectance jitter")
	flag.Parse()

	sceneDir := filepath.Join(*outDir, "scenes")
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return fmt.Errorf("create scene dir: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	seasons := []struct {
		tag     string
		start   time.Time
		burned  bool
	}{
		{"init", time.Date(2013, time.June, 2, 10, 0, 0, 0, time.UTC), false},
		{"post", time.Date(2014, time.June, 5, 10, 0, 0, 0, time.UTC), true},
	}

	total := 0
	for _, season := range seasons {
		clk := clockwork.NewFakeClockAt(season.start)
		for i := 0; i < *perSeason; i++ {
			scene := makeScene(fmt.Sprintf("LC8-%s-%02d", season.tag, i+1), clk.Now(), season.burned, i, rng)
			path := filepath.Join(sceneDir, scene.ID+".json")
			if err := writeScene(path, scene); err != nil {
				return err
			}
			clk.Advance(revisit)
			total++
		}
	}
	log.Printf("wrote %d scenes to %s", total, sceneDir)

	firePath := filepath.Join(*outDir, "fires.geojson")
	if err := writeFires(firePath); err != nil {
		return err
	}
	log.Printf("wrote fire events to %s", firePath)
	return nil
}

// makeScene builds one seven-band acquisition. Ground pixels get vegetation
// reflectance with mild jitter; burned pixels of post scenes get the char
// signature that flips the burn ratio; a 2x2 cloud patch slides one pixel
// per acquisition so the min-composite can always see ground somewhere.
func makeScene(id string, acquiredAt time.Time, burned bool, index int, rng *rand.Rand) domain.SceneRaster {
	r := domain.NewRaster(fixtureGrid, domain.SceneBands...)

	for y := 0; y < fixtureGrid.Height; y++ {
		for x := 0; x < fixtureGrid.Width; x++ {
			if burned && inBurnPatch(x, y) {
				setPixel(r, x, y, charReflectance(rng))
			} else {
				setPixel(r, x, y, vegetationReflectance(rng))
			}
		}
	}

	cloudX := (1 + index) % (fixtureGrid.Width - 1)
	cloudY := (5 + index) % (fixtureGrid.Height - 1)
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			setPixel(r, cloudX+dx, cloudY+dy, cloudReflectance(rng))
		}
	}

	return domain.SceneRaster{Raster: r, ID: id, AcquiredAt: acquiredAt}
}

func inBurnPatch(x, y int) bool {
	return x >= burnMinX && x <= burnMaxX && y >= burnMinY && y <= burnMaxY
}

// vegetationReflectance is a clear eucalypt-forest pixel: dark in the
// visible bands, warm, with the B6/B4 ratio near zero.
func vegetationReflectance(rng *rand.Rand) map[string]float64 {
	j := jitter(rng, 0.005)
	return map[string]float64{
		domain.BandBlue:    0.04 + j,
		domain.BandGreen:   0.06 + j,
		domain.BandRed:     0.10 + j,
		domain.BandNIR:     0.30 + j,
		domain.BandSWIR1:   0.11 + j,
		domain.BandSWIR2:   0.07 + j,
		domain.BandThermal: 296 + jitter(rng, 1.5),
	}
}

// charReflectance is a freshly burned pixel: shortwave infrared rises and
// red drops, pushing the burn-ratio delta well past the threshold.
func charReflectance(rng *rand.Rand) map[string]float64 {
	j := jitter(rng, 0.005)
	return map[string]float64{
		domain.BandBlue:    0.03 + j,
		domain.BandGreen:   0.04 + j,
		domain.BandRed:     0.05 + j,
		domain.BandNIR:     0.12 + j,
		domain.BandSWIR1:   0.30 + j,
		domain.BandSWIR2:   0.25 + j,
		domain.BandThermal: 301 + jitter(rng, 1.5),
	}
}

// cloudReflectance is bright in every solar band, cool, and not snow-like,
// so all five cloud signals agree.
func cloudReflectance(rng *rand.Rand) map[string]float64 {
	j := jitter(rng, 0.01)
	return map[string]float64{
		domain.BandBlue:    0.42 + j,
		domain.BandGreen:   0.45 + j,
		domain.BandRed:     0.48 + j,
		domain.BandNIR:     0.50 + j,
		domain.BandSWIR1:   0.44 + j,
		domain.BandSWIR2:   0.40 + j,
		domain.BandThermal: 283 + jitter(rng, 1.5),
	}
}

func jitter(rng *rand.Rand, scale float64) float64 {
	return (rng.Float64()*2 - 1) * scale
}

func setPixel(r domain.Raster, x, y int, bands map[string]float64) {
	for name, v := range bands {
		r.SetValue(name, x, y, v)
	}
}

func writeScene(path string, scene domain.SceneRaster) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := catalog.EncodeScene(f, scene); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeFires emits one fire event at the center of the burn scar and one
// control event far outside it, so clipped output only covers the first.
func writeFires(path string) error {
	fc := geojson.NewFeatureCollection()

	scar := geojson.NewFeature(fixtureGrid.PixelCenter((burnMinX+burnMaxX)/2, (burnMinY+burnMaxY)/2))
	scar.Properties["name"] = "valley fire"
	fc.Append(scar)

	control := geojson.NewFeature(fixtureGrid.PixelCenter(fixtureGrid.Width-1, 0))
	control.Properties["name"] = "ridge lightning strike"
	fc.Append(control)

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal fires: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
