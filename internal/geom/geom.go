// Package geom holds the pure 2D geometry used by the analyzers. Every
// function here is deterministic and history-free.
package geom

import (
	"math"

	"visiontrack/internal/model"
)

// Angle returns the angle at vertex b, in degrees in [0,180], formed by the
// vectors b→a and b→c. Degenerate input (either vector shorter than epsilon)
// returns 0 rather than an error.
func Angle(a, b, c model.Point) float64 {
	const epsilon = 1e-9
	bax := a.X - b.X
	bay := a.Y - b.Y
	bcx := c.X - b.X
	bcy := c.Y - b.Y
	magBA := math.Hypot(bax, bay)
	magBC := math.Hypot(bcx, bcy)
	if magBA < epsilon || magBC < epsilon {
		return 0
	}
	cos := (bax*bcx + bay*bcy) / (magBA * magBC)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Inclination returns the deviation of the segment hip→shoulder from the
// vertical image axis, in degrees in [0,90]. Image Y grows downward, so an
// upright torso yields 0 and a person lying flat yields 90.
func Inclination(hip, shoulder model.Point) float64 {
	dx := shoulder.X - hip.X
	dy := shoulder.Y - hip.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	return math.Atan2(math.Abs(dx), math.Abs(dy)) * 180 / math.Pi
}

// Centroid returns the center of a bounding box.
func Centroid(b model.BBox) model.Point {
	return model.Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// PolygonContains reports whether p lies inside the polygon using the
// ray-casting even-odd rule. Points exactly on an edge may land on either
// side; zone polygons are expected to be large relative to that ambiguity.
func PolygonContains(polygon []model.Point, p model.Point) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi := polygon[i]
		pj := polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xCross := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// AverageAngles averages the side angles that could actually be computed.
// A side whose joints were occluded contributes nothing; if neither side is
// usable the result is (0, false).
func AverageAngles(angles ...float64) (float64, bool) {
	sum := 0.0
	n := 0
	for _, a := range angles {
		if a > 0 {
			sum += a
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
