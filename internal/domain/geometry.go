package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// metersPerDegree is the ground length of one degree of latitude.
const metersPerDegree = 2 * math.Pi * 6371000 / 360

// BufferedGeometry is a fire-event geometry expanded outward by Radius
// meters. Membership is geodesic: a point belongs to the shape when it lies
// within Radius of the source geometry, or inside it for areal geometries.
// A zero radius leaves the source footprint unchanged.
type BufferedGeometry struct {
	Source orb.Geometry
	Radius float64
}

// Contains reports whether p lies within the buffered shape.
func (b BufferedGeometry) Contains(p orb.Point) bool {
	return distanceToGeometry(b.Source, p) <= b.Radius
}

// FireBufferRegion is the union of buffered fire geometries, used purely as
// a clip mask. The zero value is the empty region, which contains nothing,
// so a run with no fire events clips everything away.
type FireBufferRegion struct {
	shapes []BufferedGeometry
}

// NewFireBufferRegion unions the given buffered shapes into one region.
func NewFireBufferRegion(shapes ...BufferedGeometry) FireBufferRegion {
	return FireBufferRegion{shapes: shapes}
}

// Empty reports whether the region contains no shapes.
func (r FireBufferRegion) Empty() bool { return len(r.shapes) == 0 }

// Size returns the number of buffered shapes in the union.
func (r FireBufferRegion) Size() int { return len(r.shapes) }

// Contains reports whether p lies inside any buffered shape.
func (r FireBufferRegion) Contains(p orb.Point) bool {
	for _, s := range r.shapes {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// distanceToGeometry returns the distance in meters from p to g, or 0 when
// p lies inside an areal geometry.
func distanceToGeometry(g orb.Geometry, p orb.Point) float64 {
	switch g := g.(type) {
	case orb.Point:
		return geo.Distance(g, p)
	case orb.MultiPoint:
		best := math.Inf(1)
		for _, q := range g {
			best = math.Min(best, geo.Distance(q, p))
		}
		return best
	case orb.LineString:
		return distanceToLine(g, p)
	case orb.MultiLineString:
		best := math.Inf(1)
		for _, ls := range g {
			best = math.Min(best, distanceToLine(ls, p))
		}
		return best
	case orb.Ring:
		if planar.RingContains(g, p) {
			return 0
		}
		return distanceToLine(orb.LineString(g), p)
	case orb.Polygon:
		if planar.PolygonContains(g, p) {
			return 0
		}
		best := math.Inf(1)
		for _, ring := range g {
			best = math.Min(best, distanceToLine(orb.LineString(ring), p))
		}
		return best
	case orb.MultiPolygon:
		best := math.Inf(1)
		for _, poly := range g {
			best = math.Min(best, distanceToGeometry(poly, p))
		}
		return best
	case orb.Collection:
		best := math.Inf(1)
		for _, member := range g {
			best = math.Min(best, distanceToGeometry(member, p))
		}
		return best
	case orb.Bound:
		return distanceToGeometry(g.ToPolygon(), p)
	default:
		return math.Inf(1)
	}
}

func distanceToLine(ls orb.LineString, p orb.Point) float64 {
	if len(ls) == 0 {
		return math.Inf(1)
	}
	if len(ls) == 1 {
		return geo.Distance(ls[0], p)
	}
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		best = math.Min(best, distanceToSegment(ls[i], ls[i+1], p))
	}
	return best
}

// distanceToSegment returns the meters from p to the segment ab, measured
// in a local equirectangular frame centered on p. Accurate to well under a
// percent at buffer scales of a few kilometers.
func distanceToSegment(a, b, p orb.Point) float64 {
	cosLat := math.Cos(p[1] * math.Pi / 180)
	ax := (a[0] - p[0]) * cosLat * metersPerDegree
	ay := (a[1] - p[1]) * metersPerDegree
	bx := (b[0] - p[0]) * cosLat * metersPerDegree
	by := (b[1] - p[1]) * metersPerDegree

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(ax+t*dx, ay+t*dy)
}
