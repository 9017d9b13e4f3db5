package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	b := Box{5, 5, 15, 15}
	assert.InDelta(t, 25.0/175.0, IoU(a, b), 1e-9)

	identical := IoU(a, a)
	assert.InDelta(t, 1.0, identical, 1e-9)

	disjoint := IoU(a, Box{100, 100, 110, 110})
	assert.Zero(t, disjoint)
}

func TestAssignPerfectGreedyMatch(t *testing.T) {
	predicted := []Box{{0, 0, 10, 10}, {50, 50, 60, 60}}
	detections := []Box{{50, 50, 60, 60}, {0, 0, 10, 10}}

	matches, unmatchedHyp, unmatchedDet := Assign(predicted, detections, 0.3)
	require.Len(t, matches, 2)
	assert.Empty(t, unmatchedHyp)
	assert.Empty(t, unmatchedDet)

	byHyp := map[int]int{}
	for _, m := range matches {
		byHyp[m.HypothesisIdx] = m.DetectionIdx
	}
	assert.Equal(t, 1, byHyp[0])
	assert.Equal(t, 0, byHyp[1])
}

func TestAssignFallsBackToHungarianOnContention(t *testing.T) {
	// Both hypotheses prefer the same detection; the Hungarian solver must
	// resolve the conflict instead of the greedy fast path.
	predicted := []Box{{0, 0, 10, 10}, {1, 1, 11, 11}}
	detections := []Box{{0, 0, 10, 10}, {20, 20, 30, 30}}

	matches, _, unmatchedDet := Assign(predicted, detections, 0.1)
	assert.Len(t, matches, 1, "only the genuinely overlapping pair clears the threshold")
	assert.Len(t, unmatchedDet, 1)
}

func TestAssignRejectsBelowThreshold(t *testing.T) {
	predicted := []Box{{0, 0, 10, 10}}
	detections := []Box{{100, 100, 110, 110}}

	matches, unmatchedHyp, unmatchedDet := Assign(predicted, detections, 0.3)
	assert.Empty(t, matches)
	assert.Equal(t, []int{0}, unmatchedHyp)
	assert.Equal(t, []int{0}, unmatchedDet)
}

func TestAssignEmptyInputs(t *testing.T) {
	matches, unmatchedHyp, unmatchedDet := Assign(nil, nil, 0.3)
	assert.Empty(t, matches)
	assert.Empty(t, unmatchedHyp)
	assert.Empty(t, unmatchedDet)

	_, unmatchedHyp, unmatchedDet = Assign([]Box{{0, 0, 1, 1}}, nil, 0.3)
	assert.Equal(t, []int{0}, unmatchedHyp)
	assert.Empty(t, unmatchedDet)
}

func TestAssignTieBreaksBySmallestDetectionIndex(t *testing.T) {
	// A single hypothesis equidistant (equal IoU) from two detections must
	// resolve to the lower detection index (ties broken by smallest
	// detection index).
	predicted := []Box{{0, 0, 10, 10}}
	detections := []Box{{0, 0, 10, 10}, {0, 0, 10, 10}}

	matches, _, _ := Assign(predicted, detections, 0.3)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].DetectionIdx)
}
