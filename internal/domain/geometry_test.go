package domain_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

// Points around 146.84E 36.74S; one degree of longitude there is about 89km.
var (
	firePoint = orb.Point{146.84, -36.74}
	nearPoint = orb.Point{146.8405, -36.74} // ~45m east
	farPoint  = orb.Point{146.85, -36.74}   // ~890m east
)

func TestBufferedGeometry(t *testing.T) {
	t.Run("point buffer is a geodesic disc", func(t *testing.T) {
		b := domain.BufferedGeometry{Source: firePoint, Radius: 100}
		assert.True(t, b.Contains(firePoint))
		assert.True(t, b.Contains(nearPoint))
		assert.False(t, b.Contains(farPoint))
	})

	t.Run("zero radius keeps only the footprint", func(t *testing.T) {
		b := domain.BufferedGeometry{Source: firePoint, Radius: 0}
		assert.True(t, b.Contains(firePoint))
		assert.False(t, b.Contains(nearPoint))
	})

	t.Run("line buffer follows the segment", func(t *testing.T) {
		line := orb.LineString{{146.84, -36.74}, {146.86, -36.74}}
		b := domain.BufferedGeometry{Source: line, Radius: 100}
		midpoint := orb.Point{146.85, -36.74}
		assert.True(t, b.Contains(midpoint), "on the segment between endpoints")
		assert.True(t, b.Contains(orb.Point{146.85, -36.7405}), "~55m south of the segment")
		assert.False(t, b.Contains(orb.Point{146.85, -36.76}), "~2km south of the segment")
	})

	t.Run("polygon interior is inside regardless of radius", func(t *testing.T) {
		poly := orb.Polygon{{
			{146.83, -36.75}, {146.85, -36.75}, {146.85, -36.73}, {146.83, -36.73}, {146.83, -36.75},
		}}
		b := domain.BufferedGeometry{Source: poly, Radius: 0}
		assert.True(t, b.Contains(firePoint), "interior point")

		b.Radius = 200
		assert.True(t, b.Contains(orb.Point{146.8501, -36.74}), "just outside the edge, within the buffer")
		assert.False(t, b.Contains(orb.Point{146.86, -36.74}), "~890m outside the edge")
	})

	t.Run("multipoint takes the nearest member", func(t *testing.T) {
		mp := orb.MultiPoint{{146.84, -36.74}, {146.90, -36.74}}
		b := domain.BufferedGeometry{Source: mp, Radius: 100}
		assert.True(t, b.Contains(nearPoint))
		assert.True(t, b.Contains(orb.Point{146.9001, -36.74}))
		assert.False(t, b.Contains(orb.Point{146.87, -36.74}))
	})
}

func TestFireBufferRegion(t *testing.T) {
	t.Run("zero region contains nothing", func(t *testing.T) {
		var region domain.FireBufferRegion
		assert.True(t, region.Empty())
		assert.Zero(t, region.Size())
		assert.False(t, region.Contains(firePoint))
	})

	t.Run("union of shapes", func(t *testing.T) {
		region := domain.NewFireBufferRegion(
			domain.BufferedGeometry{Source: firePoint, Radius: 100},
			domain.BufferedGeometry{Source: orb.Point{146.90, -36.74}, Radius: 100},
		)
		assert.False(t, region.Empty())
		assert.Equal(t, 2, region.Size())
		assert.True(t, region.Contains(nearPoint))
		assert.True(t, region.Contains(orb.Point{146.90, -36.74}))
		assert.False(t, region.Contains(orb.Point{146.87, -36.74}), "between the two discs")
	})
}
