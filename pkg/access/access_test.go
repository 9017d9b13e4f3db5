package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

func squarePolygon(cx, cy, half float64) []aforo.Point {
	return []aforo.Point{
		{X: cx - half, Y: cy - half},
		{X: cx + half, Y: cy - half},
		{X: cx + half, Y: cy + half},
		{X: cx - half, Y: cy + half},
	}
}

func testAccesses() []aforo.AccessPoint {
	return []aforo.AccessPoint{
		{ID: "A-N", Cardinal: aforo.North, X: 100, Y: 0, Polygon: squarePolygon(100, 0, 10)},
		{ID: "A-S", Cardinal: aforo.South, X: 100, Y: 200, Polygon: squarePolygon(100, 200, 10)},
	}
}

func TestClassifyInsidePolygon(t *testing.T) {
	a, ok := Classify(aforo.Point{X: 100, Y: 0}, testAccesses())
	require.True(t, ok)
	assert.Equal(t, "A-N", a.ID)
}

func TestClassifyNearPolygonWithoutBeingInside(t *testing.T) {
	// just outside the N polygon's right edge but within the near radius
	a, ok := Classify(aforo.Point{X: 112, Y: 0}, testAccesses())
	require.True(t, ok)
	assert.Equal(t, "A-N", a.ID)
}

func TestClassifyFallsBackToProximity(t *testing.T) {
	// far from both polygons and no gates defined: pure centroid distance
	a, ok := Classify(aforo.Point{X: 100, Y: 90}, testAccesses())
	require.True(t, ok)
	assert.Equal(t, "A-N", a.ID, "closer to N centroid (dist 90) than S centroid (dist 110)")
}

func TestClassifyGateProximity(t *testing.T) {
	accesses := []aforo.AccessPoint{
		{ID: "A-E", Cardinal: aforo.East, X: 500, Y: 100, Gate: &aforo.LineSegment{X1: 490, Y1: 90, X2: 490, Y2: 110}},
		{ID: "A-W", Cardinal: aforo.West, X: -500, Y: 100},
	}
	a, ok := Classify(aforo.Point{X: 491, Y: 100}, accesses)
	require.True(t, ok)
	assert.Equal(t, "A-E", a.ID)
}

func TestClassifyEmptyAccessSet(t *testing.T) {
	_, ok := Classify(aforo.Point{X: 0, Y: 0}, nil)
	assert.False(t, ok)
}

func TestClassifyByProximityIgnoresPolygon(t *testing.T) {
	a, ok := ClassifyByProximity(aforo.Point{X: 100, Y: 0}, testAccesses())
	require.True(t, ok)
	assert.Equal(t, "A-N", a.ID)
}
