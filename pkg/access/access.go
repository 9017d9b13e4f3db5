// Package access implements component D: classifying a trajectory point to
// the nearest AccessPoint, in the layered order polygon-membership →
// near-polygon → near-gate → pure-proximity fallback.
//
// Grounded on original_source's access-classification helper in
// api/services/convert.py (layered polygon/gate/proximity tests) and the
// geometry primitives in internal/geometry.
package access

import (
	"sort"

	"github.com/aforos-core/rilsa-engine/internal/geometry"
	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// byID sorts a slice of accesses lexicographically by ID, used to break
// ties deterministically ("lowest access id lexicographically").
func byID(accesses []aforo.AccessPoint) []aforo.AccessPoint {
	out := make([]aforo.AccessPoint, len(accesses))
	copy(out, accesses)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Classify returns the best-matching access for point p among accesses, or
// ok=false if accesses is empty.
func Classify(p aforo.Point, accesses []aforo.AccessPoint) (aforo.AccessPoint, bool) {
	if len(accesses) == 0 {
		return aforo.AccessPoint{}, false
	}
	ordered := byID(accesses)

	// 1. Inside any polygon.
	for _, a := range ordered {
		if len(a.Polygon) >= 3 && geometry.PointInPolygon(p, a.Polygon) {
			return a, true
		}
	}

	// 2. Nearest centroid among polygon accesses within the near-radius.
	if best, ok := nearestWithinPolygon(p, ordered); ok {
		return best, true
	}

	// 3. Gate proximity.
	for _, a := range ordered {
		if a.Gate != nil && geometry.NearGate(p, *a.Gate) {
			return a, true
		}
	}

	// 4. Pure proximity fallback: smallest Euclidean distance to centroid.
	return nearestByCentroid(p, ordered), true
}

// ClassifyByProximity applies only the pure-proximity rule (step 4): the
// access with smallest Euclidean distance to its centroid, ignoring
// polygons and gates entirely. The segmenter (component E) uses this in
// isolation to decide its endpoint override.
func ClassifyByProximity(p aforo.Point, accesses []aforo.AccessPoint) (aforo.AccessPoint, bool) {
	if len(accesses) == 0 {
		return aforo.AccessPoint{}, false
	}
	return nearestByCentroid(p, byID(accesses)), true
}

func nearestWithinPolygon(p aforo.Point, ordered []aforo.AccessPoint) (aforo.AccessPoint, bool) {
	var best aforo.AccessPoint
	bestDist := 0.0
	found := false
	for _, a := range ordered {
		if len(a.Polygon) < 3 || !geometry.NearPolygon(p, a.Polygon) {
			continue
		}
		d := geometry.Distance(p, aforo.Point{X: a.X, Y: a.Y})
		if !found || d < bestDist {
			best, bestDist, found = a, d, true
		}
	}
	return best, found
}

func nearestByCentroid(p aforo.Point, ordered []aforo.AccessPoint) aforo.AccessPoint {
	best := ordered[0]
	bestDist := geometry.Distance(p, aforo.Point{X: best.X, Y: best.Y})
	for _, a := range ordered[1:] {
		d := geometry.Distance(p, aforo.Point{X: a.X, Y: a.Y})
		if d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}
