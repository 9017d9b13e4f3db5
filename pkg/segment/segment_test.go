package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

func nsAccesses() []aforo.AccessPoint {
	square := func(cx, cy, half float64) []aforo.Point {
		return []aforo.Point{
			{X: cx - half, Y: cy - half}, {X: cx + half, Y: cy - half},
			{X: cx + half, Y: cy + half}, {X: cx - half, Y: cy + half},
		}
	}
	return []aforo.AccessPoint{
		{ID: "A-N", Cardinal: aforo.North, X: 100, Y: 0, Polygon: square(100, 0, 10)},
		{ID: "A-S", Cardinal: aforo.South, X: 100, Y: 200, Polygon: square(100, 200, 10)},
	}
}

func straightTrack() aforo.Track {
	frames := make([]int, 0, 151)
	positions := make([]aforo.Point, 0, 151)
	for f := 0; f <= 150; f++ {
		frames = append(frames, f)
		y := 5.0 + float64(f)*(190.0/150.0)
		positions = append(positions, aforo.Point{X: 100, Y: y})
	}
	return aforo.Track{TrackID: "T1", Class: "car", Frames: frames, Positions: positions}
}

func TestSegmentStraightTrackNorthToSouth(t *testing.T) {
	m, ok := Segment(straightTrack(), nsAccesses())
	require.True(t, ok)
	assert.Equal(t, "A-N", m.EntryAccess.ID)
	assert.Equal(t, "A-S", m.ExitAccess.ID)
	assert.Less(t, m.EntryFrame, m.ExitFrame)
}

func TestSegmentEmptyAccessesYieldsNothing(t *testing.T) {
	_, ok := Segment(straightTrack(), nil)
	assert.False(t, ok)
}

func TestSegmentUTurnFoldsBackToEntry(t *testing.T) {
	// Track stays inside the N access the whole time: no distinct exit.
	frames := []int{0, 1, 2}
	positions := []aforo.Point{{X: 100, Y: 0}, {X: 101, Y: 0}, {X: 102, Y: 0}}
	track := aforo.Track{TrackID: "T2", Class: "car", Frames: frames, Positions: positions}
	_, ok := Segment(track, nsAccesses())
	// entryFrame == exitFrame for a pure U-turn candidate with no frame
	// separation -> no event per the entryFrame < exitFrame requirement.
	assert.False(t, ok)
}

func TestSegmentRequiresEntryBeforeExit(t *testing.T) {
	frames := []int{5}
	positions := []aforo.Point{{X: 100, Y: 0}}
	track := aforo.Track{TrackID: "T3", Frames: frames, Positions: positions}
	_, ok := Segment(track, nsAccesses())
	assert.False(t, ok)
}
