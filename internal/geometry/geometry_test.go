package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

func TestDistance(t *testing.T) {
	d := Distance(aforo.Point{X: 0, Y: 0}, aforo.Point{X: 3, Y: 4})
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestPointInPolygon(t *testing.T) {
	square := []aforo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	testCases := []struct {
		name   string
		point  aforo.Point
		inside bool
	}{
		{"center", aforo.Point{X: 5, Y: 5}, true},
		{"outside right", aforo.Point{X: 15, Y: 5}, false},
		{"outside left", aforo.Point{X: -5, Y: 5}, false},
		{"outside above", aforo.Point{X: 5, Y: -5}, false},
		{"outside below", aforo.Point{X: 5, Y: 15}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.inside, PointInPolygon(tc.point, square))
		})
	}
}

func TestNearPolygon(t *testing.T) {
	square := []aforo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	// centroid (5,5), max vertex distance = sqrt(50) ~= 7.07, near radius ~= 12.73
	require.True(t, NearPolygon(aforo.Point{X: 5, Y: 5}, square))
	assert.True(t, NearPolygon(aforo.Point{X: 12, Y: 5}, square), "just outside the polygon but within near radius")
	assert.False(t, NearPolygon(aforo.Point{X: 100, Y: 100}, square))
}

func TestNearGate(t *testing.T) {
	gate := aforo.LineSegment{X1: 0, Y1: 0, X2: 100, Y2: 0}
	assert.True(t, NearGate(aforo.Point{X: 50, Y: 10}, gate))
	assert.False(t, NearGate(aforo.Point{X: 50, Y: 100}, gate))
}

func TestPathLengthAndNetDisplacement(t *testing.T) {
	positions := []aforo.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}}
	assert.InDelta(t, 7.0, PathLength(positions), 1e-9)
	assert.InDelta(t, 5.0, NetDisplacement(positions), 1e-9)
}

func TestDirectionChanges(t *testing.T) {
	straight := []aforo.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}
	assert.Equal(t, 0, DirectionChanges(straight, 1.0))

	sharp := []aforo.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	assert.Equal(t, 2, DirectionChanges(sharp, 1.0), "two ~90 degree turns exceed the 1.0 rad bound")

	tooShort := []aforo.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}
	assert.Equal(t, 0, DirectionChanges(tooShort, 1.0))
}

func TestSegmentDistanceClampsToEndpoints(t *testing.T) {
	seg := aforo.LineSegment{X1: 0, Y1: 0, X2: 10, Y2: 0}
	d := SegmentDistance(aforo.Point{X: -5, Y: 0}, seg)
	assert.InDelta(t, 5.0, d, 1e-9)
	assert.True(t, math.Abs(SegmentDistance(aforo.Point{X: 5, Y: 3}, seg)-3.0) < 1e-9)
}
