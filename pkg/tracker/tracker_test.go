package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

func TestEmptyDatasetYieldsNoTracks(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	got := tr.Finalize()
	assert.Empty(t, got)
}

func TestBelowMinHitsIsDiscarded(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	tr.Step(0, []aforo.Detection{{FrameID: 0, X: 100, Y: 100, Class: "car", Confidence: 0.9}})
	tr.Step(1, []aforo.Detection{{FrameID: 1, X: 101, Y: 100, Class: "car", Confidence: 0.9}})
	got := tr.Finalize()
	assert.Empty(t, got, "only 2 hits for a vehicle (minHits=8) should discard the hypothesis")
}

func TestContiguousDetectionsFormOneTrack(t *testing.T) {
	cfg := DefaultConfig()
	tr := New(cfg, nil)
	for frame := 0; frame < 10; frame++ {
		x := 100.0 + float64(frame)
		tr.Step(frame, []aforo.Detection{{FrameID: frame, X: x, Y: 100, Class: "car", Confidence: 0.9}})
	}
	got := tr.Finalize()
	require.Len(t, got, 1)
	track := got[0]
	assert.Equal(t, "car", track.Class)
	assert.Equal(t, 10, track.RealDetectionCount())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, track.Frames)
	for _, interp := range track.Interpolated {
		assert.False(t, interp)
	}
}

func TestPedestrianReachesMinHitsFaster(t *testing.T) {
	cfg := DefaultConfig()
	tr := New(cfg, nil)
	for frame := 0; frame < 3; frame++ {
		x := 50.0 + float64(frame)
		tr.Step(frame, []aforo.Detection{{FrameID: frame, X: x, Y: 50, Class: "pedestrian", Confidence: 0.8}})
	}
	got := tr.Finalize()
	require.Len(t, got, 1)
	assert.Equal(t, "pedestrian", got[0].Class)
}

func TestGapIsLinearlyInterpolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinHitsVehicle = 2
	tr := New(cfg, nil)
	tr.Step(0, []aforo.Detection{{FrameID: 0, X: 0, Y: 0, Class: "car", Confidence: 0.9}})
	// frame 1: no detection (gap)
	tr.Step(1, nil)
	tr.Step(2, []aforo.Detection{{FrameID: 2, X: 10, Y: 0, Class: "car", Confidence: 0.9}})
	got := tr.Finalize()
	require.Len(t, got, 1)
	track := got[0]
	require.Len(t, track.Frames, 3)
	assert.True(t, track.Interpolated[1])
	assert.InDelta(t, 5.0, track.Positions[1].X, 2.0, "gap frame should interpolate roughly midway")
	assert.Equal(t, 0.0, track.Confidences[1])
}

func TestTwoWellSeparatedDetectionsSpawnSeparateTracks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinHitsVehicle = 2
	tr := New(cfg, nil)
	for frame := 0; frame < 3; frame++ {
		tr.Step(frame, []aforo.Detection{
			{FrameID: frame, X: 0 + float64(frame), Y: 0, Class: "car", Confidence: 0.9},
			{FrameID: frame, X: 500 + float64(frame), Y: 500, Class: "car", Confidence: 0.9},
		})
	}
	got := tr.Finalize()
	assert.Len(t, got, 2)
}

func TestMaxAgeRetiresStaleHypothesis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAgeFrames = 2
	cfg.MinHitsVehicle = 2
	tr := New(cfg, nil)
	tr.Step(0, []aforo.Detection{{FrameID: 0, X: 0, Y: 0, Class: "car", Confidence: 0.9}})
	tr.Step(1, []aforo.Detection{{FrameID: 1, X: 1, Y: 0, Class: "car", Confidence: 0.9}})
	// no detections for 3 frames, exceeding MaxAgeFrames=2
	tr.Step(2, nil)
	tr.Step(3, nil)
	tr.Step(4, nil)
	got := tr.Tracks()
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].LastUpdateFrame)
}
