// Package geometry implements the point-in-polygon, gate-proximity and
// distance primitives component A of the pipeline is built from.
//
// Grounded on the teacher's internal/scipy distance helpers: plain
// []float64/struct math rather than a heavier computational-geometry
// dependency, since nothing in the example pack carries one.
package geometry

import (
	"math"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// GateNearRadiusPixels is the legacy gate membership threshold.
const GateNearRadiusPixels = 50.0

// PolygonNearFactor scales a polygon's max vertex-to-centroid distance to
// obtain its "near" radius.
const PolygonNearFactor = 1.8

// Distance returns the Euclidean distance between two points.
func Distance(a, b aforo.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Centroid returns the arithmetic mean of a polygon's vertices. It does not
// need to be the true area centroid for the "near" heuristic,
// which only cares about a representative center point.
func Centroid(polygon []aforo.Point) aforo.Point {
	if len(polygon) == 0 {
		return aforo.Point{}
	}
	var sx, sy float64
	for _, p := range polygon {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(polygon))
	return aforo.Point{X: sx / n, Y: sy / n}
}

// PointInPolygon implements ray-casting point-in-polygon membership:
// horizontal rays, toggling "inside" on each edge crossing, with
// strict-greater on ymin and less-or-equal on ymax to avoid double-counting
// at shared vertices.
func PointInPolygon(p aforo.Point, polygon []aforo.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi := polygon[i]
		vj := polygon[j]
		crosses := (vi.Y < p.Y) != (vj.Y < p.Y)
		if crosses {
			xIntersect := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < xIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// maxVertexDistance returns the maximum distance from centroid to any
// polygon vertex.
func maxVertexDistance(centroid aforo.Point, polygon []aforo.Point) float64 {
	maxD := 0.0
	for _, v := range polygon {
		if d := Distance(centroid, v); d > maxD {
			maxD = d
		}
	}
	return maxD
}

// NearPolygon reports whether p is "near" a polygon: either inside it, or
// within PolygonNearFactor times the polygon's max-vertex-to-centroid
// distance of its centroid.
func NearPolygon(p aforo.Point, polygon []aforo.Point) bool {
	if PointInPolygon(p, polygon) {
		return true
	}
	if len(polygon) < 3 {
		return false
	}
	centroid := Centroid(polygon)
	radius := maxVertexDistance(centroid, polygon) * PolygonNearFactor
	return Distance(p, centroid) <= radius
}

// SegmentDistance returns the perpendicular distance from p to the line
// segment (x1,y1)-(x2,y2), projecting p onto the segment and clamping the
// parametric position to [0,1].
func SegmentDistance(p aforo.Point, seg aforo.LineSegment) float64 {
	ex := seg.X2 - seg.X1
	ey := seg.Y2 - seg.Y1
	lenSq := ex*ex + ey*ey
	if lenSq == 0 {
		return Distance(p, aforo.Point{X: seg.X1, Y: seg.Y1})
	}
	t := ((p.X-seg.X1)*ex + (p.Y-seg.Y1)*ey) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := aforo.Point{X: seg.X1 + t*ex, Y: seg.Y1 + t*ey}
	return Distance(p, proj)
}

// NearGate reports whether p is within GateNearRadiusPixels of the gate
// segment.
func NearGate(p aforo.Point, seg aforo.LineSegment) bool {
	return SegmentDistance(p, seg) < GateNearRadiusPixels
}

// PathLength sums the Euclidean length of consecutive segments in positions.
func PathLength(positions []aforo.Point) float64 {
	total := 0.0
	for i := 1; i < len(positions); i++ {
		total += Distance(positions[i-1], positions[i])
	}
	return total
}

// NetDisplacement returns the chord length between the first and last
// position.
func NetDisplacement(positions []aforo.Point) float64 {
	if len(positions) < 2 {
		return 0
	}
	return Distance(positions[0], positions[len(positions)-1])
}

// DirectionChanges counts the number of consecutive-displacement angle
// changes exceeding maxAngleRadians (1.0 radian ≈ 57°).
// Degenerate (zero-length) displacement vectors are skipped, matching the
// original trajectory-quality filter's handling.
func DirectionChanges(positions []aforo.Point, maxAngleRadians float64) int {
	if len(positions) < 3 {
		return 0
	}
	var angles []float64
	for i := 1; i < len(positions); i++ {
		dx := positions[i].X - positions[i-1].X
		dy := positions[i].Y - positions[i-1].Y
		if dx == 0 && dy == 0 {
			continue
		}
		angles = append(angles, math.Atan2(dy, dx))
	}
	changes := 0
	for i := 1; i < len(angles); i++ {
		diff := math.Abs(angles[i] - angles[i-1])
		if diff > maxAngleRadians {
			changes++
		}
	}
	return changes
}
