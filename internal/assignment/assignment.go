// Package assignment implements the tracker's detection-to-hypothesis
// association step: pairwise IoU, a greedy perfect-matching
// fast path, and a Hungarian fallback on the full cost matrix.
//
// The Hungarian solver is a thin wrapper around
// github.com/arthurkushman/go-hungarian, in the same style as the teacher's
// internal/scipy.LinearSumAssignment (itself a Go port of
// scipy.optimize.linear_sum_assignment): cost is converted to profit so the
// maximizing solver can be reused for a minimization problem.
package assignment

import (
	"math"
	"sort"

	hungarian "github.com/arthurkushman/go-hungarian"
)

// Box is an axis-aligned bounding box (xmin, ymin, xmax, ymax).
type Box struct {
	XMin, YMin, XMax, YMax float64
}

// IoU returns the intersection-over-union of two boxes, in [0, 1].
func IoU(a, b Box) float64 {
	xMin := math.Max(a.XMin, b.XMin)
	yMin := math.Max(a.YMin, b.YMin)
	xMax := math.Min(a.XMax, b.XMax)
	yMax := math.Min(a.YMax, b.YMax)

	var intersection float64
	if xMax > xMin && yMax > yMin {
		intersection = (xMax - xMin) * (yMax - yMin)
	}

	areaA := (a.XMax - a.XMin) * (a.YMax - a.YMin)
	areaB := (b.XMax - b.XMin) * (b.YMax - b.YMin)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// IoUMatrix returns the rows x cols matrix of IoU(predicted[i], detections[j]).
func IoUMatrix(predicted, detections []Box) [][]float64 {
	m := make([][]float64, len(predicted))
	for i, p := range predicted {
		row := make([]float64, len(detections))
		for j, d := range detections {
			row[j] = IoU(p, d)
		}
		m[i] = row
	}
	return m
}

// Match is one accepted hypothesis<->detection pairing.
type Match struct {
	HypothesisIdx int
	DetectionIdx  int
	IoU           float64
}

// Assign resolves predicted hypothesis boxes against current-frame
// detection boxes:
//
//  1. If the IoU matrix admits a perfect 1-1 greedy matching at or above
//     iouThreshold (each hypothesis's single best detection is claimed by
//     no other hypothesis), use it directly.
//  2. Otherwise solve the maximum-IoU assignment via the Hungarian
//     algorithm on -IoU.
//  3. Any matched pair with IoU below iouThreshold is rejected.
//
// Ties are broken by the smallest detection index.
// Returns accepted matches, unmatched hypothesis indices, and unmatched
// detection indices.
func Assign(predicted, detections []Box, iouThreshold float64) (matches []Match, unmatchedHyp, unmatchedDet []int) {
	if len(predicted) == 0 || len(detections) == 0 {
		return nil, allIndices(len(predicted)), allIndices(len(detections))
	}

	iou := IoUMatrix(predicted, detections)

	if greedy, ok := tryPerfectGreedyMatch(iou, iouThreshold); ok {
		return finalize(greedy, iou, len(predicted), len(detections), iouThreshold)
	}

	hungarianMatches := hungarianAssign(iou)
	return finalize(hungarianMatches, iou, len(predicted), len(detections), iouThreshold)
}

// tryPerfectGreedyMatch attempts the cheap path: for every hypothesis, its
// single best-IoU detection is unique across all hypotheses and above
// threshold. This is the common case (few overlapping tracks) and avoids
// running the Hungarian solver on every frame.
func tryPerfectGreedyMatch(iou [][]float64, threshold float64) ([]Match, bool) {
	bestDetForHyp := make([]int, len(iou))
	for i, row := range iou {
		best := -1
		bestVal := threshold
		for j, v := range row {
			if v >= threshold && (best == -1 || v > bestVal) {
				best = j
				bestVal = v
			}
		}
		bestDetForHyp[i] = best
	}

	seen := map[int]bool{}
	for _, det := range bestDetForHyp {
		if det == -1 {
			continue
		}
		if seen[det] {
			return nil, false
		}
		seen[det] = true
	}

	var matches []Match
	for i, det := range bestDetForHyp {
		if det != -1 {
			matches = append(matches, Match{HypothesisIdx: i, DetectionIdx: det, IoU: iou[i][det]})
		}
	}
	return matches, true
}

func hungarianAssign(iou [][]float64) []Match {
	rows := len(iou)
	cols := len(iou[0])
	size := rows
	if cols > size {
		size = cols
	}

	profit := make([][]float64, size)
	for i := range profit {
		profit[i] = make([]float64, size)
		for j := range profit[i] {
			if i < rows && j < cols {
				profit[i][j] = iou[i][j]
			}
		}
	}

	result := hungarian.SolveMax(profit)

	var matches []Match
	for i, cols := range result {
		for j, v := range cols {
			if i < rows && j < len(iou[0]) {
				matches = append(matches, Match{HypothesisIdx: i, DetectionIdx: j, IoU: v})
			}
		}
	}
	return matches
}

func finalize(raw []Match, iou [][]float64, numHyp, numDet int, threshold float64) (matches []Match, unmatchedHyp, unmatchedDet []int) {
	matchedHyp := map[int]bool{}
	matchedDet := map[int]bool{}

	// Deterministic order: by hypothesis index, ties within a hypothesis by
	// smallest detection index ("ties broken by smallest detection index").
	sort.Slice(raw, func(a, b int) bool {
		if raw[a].HypothesisIdx != raw[b].HypothesisIdx {
			return raw[a].HypothesisIdx < raw[b].HypothesisIdx
		}
		return raw[a].DetectionIdx < raw[b].DetectionIdx
	})

	for _, m := range raw {
		if matchedHyp[m.HypothesisIdx] || matchedDet[m.DetectionIdx] {
			continue
		}
		if iou[m.HypothesisIdx][m.DetectionIdx] < threshold {
			continue
		}
		matches = append(matches, m)
		matchedHyp[m.HypothesisIdx] = true
		matchedDet[m.DetectionIdx] = true
	}

	for i := 0; i < numHyp; i++ {
		if !matchedHyp[i] {
			unmatchedHyp = append(unmatchedHyp, i)
		}
	}
	for j := 0; j < numDet; j++ {
		if !matchedDet[j] {
			unmatchedDet = append(unmatchedDet, j)
		}
	}
	return matches, unmatchedHyp, unmatchedDet
}

func allIndices(n int) []int {
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
