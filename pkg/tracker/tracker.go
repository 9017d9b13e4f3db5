// Package tracker implements a frame-sequential SORT tracker: Kalman-filter
// prediction, IoU/Hungarian assignment, and track lifecycle management with
// gap interpolation.
//
// Grounded on the teacher's pkg/norfairgo.Tracker (Config/State split,
// staged Update() pipeline, hit-counter-based lifecycle) generalized to a
// frame-age/minHits lifecycle, with the Kalman state/IoU-assignment
// machinery factored into internal/kalman and internal/assignment the way
// the teacher factors its numerics into internal/filterpy and
// internal/scipy.
//
// The canonical Detection schema carries only a centroid (x, y), not a
// bounding box, so the IoU/Kalman-box machinery is preserved by
// synthesizing a fixed-size box around each centroid (Config.BoxHalfExtent)
// — documented in DESIGN.md as a resolved design decision.
package tracker

import (
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/aforos-core/rilsa-engine/internal/assignment"
	"github.com/aforos-core/rilsa-engine/internal/kalman"
	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// Config holds the tracker's tunable parameters.
type Config struct {
	MaxAgeFrames      int     // finalize a hypothesis after this many frames without a match
	MinHitsPedestrian int     // minimum real detections to keep a pedestrian track
	MinHitsVehicle    int     // minimum real detections to keep a vehicle track
	IoUThreshold      float64 // minimum IoU to accept a match
	BoxHalfExtent     float64 // synthetic half box size around each point detection
}

// DefaultConfig returns the tracker's default parameters.
func DefaultConfig() Config {
	return Config{
		MaxAgeFrames:      30,
		MinHitsPedestrian: 3,
		MinHitsVehicle:    8,
		IoUThreshold:      0.3,
		BoxHalfExtent:     15.0,
	}
}

func (c Config) minHitsFor(canonicalClass string) int {
	if aforo.IsPedestrian(canonicalClass) {
		return c.MinHitsPedestrian
	}
	return c.MinHitsVehicle
}

// hypothesis is a live tracker hypothesis: Kalman state plus bookkeeping
// needed for lifecycle and tie-breaking.
type hypothesis struct {
	id             int // creation order; appears in log fields
	createdAtFrame int
	class          string
	filter         *kalman.BoxFilter

	framesSinceUpdate int
	realHits          int

	frames      []int
	positions   []aforo.Point
	confidences []float64
}

// Tracker runs the per-dataset, single-threaded frame-sequential pipeline.
// It is not safe for concurrent use; one worker owns one
// dataset's tracker.
type Tracker struct {
	cfg         Config
	log         *zap.SugaredLogger
	hyps        []*hypothesis
	nextHypID   int
	nextTrackID int
	finalized   []aforo.Track
}

// New creates a Tracker with the given configuration.
func New(cfg Config, log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tracker{cfg: cfg, log: log}
}

func toBox(p aforo.Point, halfExtent float64) assignment.Box {
	return assignment.Box{
		XMin: p.X - halfExtent, YMin: p.Y - halfExtent,
		XMax: p.X + halfExtent, YMax: p.Y + halfExtent,
	}
}

// boxFromState reconstructs the current predicted box from a hypothesis's
// Kalman state (x, y, area, aspectRatio).
func boxFromState(f *kalman.BoxFilter) assignment.Box {
	x, y, area, aspect, _, _, _ := f.State()
	if area <= 0 {
		area = 1e-6
	}
	if aspect <= 0 {
		aspect = 1.0
	}
	w := math.Sqrt(area * aspect)
	h := area / math.Max(w, 1e-6)
	return assignment.Box{
		XMin: x - w/2, YMin: y - h/2,
		XMax: x + w/2, YMax: y + h/2,
	}
}

func boxToZ(b assignment.Box) (x, y, area, aspect float64) {
	w := b.XMax - b.XMin
	h := b.YMax - b.YMin
	x = b.XMin + w/2
	y = b.YMin + h/2
	area = w * h
	aspect = w / math.Max(h, 1e-6)
	return
}

// Step processes every detection sharing one frameId ("detections
// sharing the same frameId are processed as a set"). Detections must all
// carry the same FrameID; call Step once per ascending frameId in order.
func (t *Tracker) Step(frameID int, detections []aforo.Detection) {
	// 1. Predict
	var livePredicted []assignment.Box
	var liveHyps []*hypothesis
	for _, h := range t.hyps {
		ok := h.filter.Predict()
		if !ok {
			t.log.Debugw("degenerate kalman state dropped", "hypothesisId", h.id)
			continue
		}
		liveHyps = append(liveHyps, h)
		livePredicted = append(livePredicted, boxFromState(h.filter))
	}
	t.hyps = liveHyps

	// 2. Associate
	var detBoxes []assignment.Box
	for _, d := range detections {
		detBoxes = append(detBoxes, toBox(aforo.Point{X: d.X, Y: d.Y}, t.cfg.BoxHalfExtent))
	}
	matches, unmatchedHypIdx, unmatchedDetIdx := assignment.Assign(livePredicted, detBoxes, t.cfg.IoUThreshold)

	// 3. Update matched hypotheses
	for _, m := range matches {
		h := t.hyps[m.HypothesisIdx]
		d := detections[m.DetectionIdx]
		x, y, area, aspect := boxToZ(detBoxes[m.DetectionIdx])
		h.filter.Update(x, y, area, aspect)
		h.framesSinceUpdate = 0
		h.realHits++
		h.frames = append(h.frames, frameID)
		h.positions = append(h.positions, aforo.Point{X: d.X, Y: d.Y})
		h.confidences = append(h.confidences, d.Confidence)
	}

	// Age unmatched hypotheses
	matchedHyp := make(map[int]bool)
	for _, m := range matches {
		matchedHyp[m.HypothesisIdx] = true
	}
	for i, h := range t.hyps {
		if !matchedHyp[i] {
			h.framesSinceUpdate++
		}
	}
	_ = unmatchedHypIdx

	// 4. Spawn new hypotheses for unmatched detections
	sort.Ints(unmatchedDetIdx)
	for _, idx := range unmatchedDetIdx {
		d := detections[idx]
		canonical := aforo.CanonicalClass(d.Class)
		x, y, area, aspect := boxToZ(detBoxes[idx])
		h := &hypothesis{
			id:             t.nextHypID,
			createdAtFrame: frameID,
			class:          canonical,
			filter:         kalman.NewBoxFilter(x, y, area, aspect),
			realHits:       1,
			frames:         []int{frameID},
			positions:      []aforo.Point{{X: d.X, Y: d.Y}},
			confidences:    []float64{d.Confidence},
		}
		t.nextHypID++
		t.hyps = append(t.hyps, h)
	}

	// 5. Retire
	var survivors []*hypothesis
	for _, h := range t.hyps {
		if h.framesSinceUpdate > t.cfg.MaxAgeFrames {
			t.retire(h)
			continue
		}
		survivors = append(survivors, h)
	}
	t.hyps = survivors
}

// retire finalizes a hypothesis: discards it if it never accumulated
// minHits real detections, else interpolates frame gaps and appends a
// finished Track.
func (t *Tracker) retire(h *hypothesis) {
	if h.realHits < t.cfg.minHitsFor(h.class) {
		t.log.Debugw("discarding track below minHits", "hypothesisId", h.id, "realHits", h.realHits, "class", h.class)
		return
	}
	if len(h.frames) < 2 {
		return // DegenerateTrack: fewer than 2 positions
	}

	track := interpolate(h)
	track.TrackID = t.newTrackID()
	track.Class = h.class
	t.finalized = append(t.finalized, track)
}

func (t *Tracker) newTrackID() string {
	t.nextTrackID++
	return "T" + strconv.Itoa(t.nextTrackID)
}

// interpolate fills frame gaps with linearly interpolated positions,
// marking them with confidence=0 and Interpolated=true.
func interpolate(h *hypothesis) aforo.Track {
	first, last := h.frames[0], h.frames[len(h.frames)-1]
	n := last - first + 1

	frames := make([]int, 0, n)
	positions := make([]aforo.Point, 0, n)
	confidences := make([]float64, 0, n)
	interpolated := make([]bool, 0, n)

	realIdx := 0
	for f := first; f <= last; f++ {
		if realIdx < len(h.frames) && h.frames[realIdx] == f {
			frames = append(frames, f)
			positions = append(positions, h.positions[realIdx])
			confidences = append(confidences, h.confidences[realIdx])
			interpolated = append(interpolated, false)
			realIdx++
			continue
		}
		// gap: linear interpolation between the previous real frame and the
		// next one
		prevIdx := realIdx - 1
		nextIdx := realIdx
		prevFrame, nextFrame := h.frames[prevIdx], h.frames[nextIdx]
		ratio := float64(f-prevFrame) / float64(nextFrame-prevFrame)
		prevPos, nextPos := h.positions[prevIdx], h.positions[nextIdx]
		pos := aforo.Point{
			X: prevPos.X + ratio*(nextPos.X-prevPos.X),
			Y: prevPos.Y + ratio*(nextPos.Y-prevPos.Y),
		}
		frames = append(frames, f)
		positions = append(positions, pos)
		confidences = append(confidences, 0)
		interpolated = append(interpolated, true)
	}

	return aforo.Track{
		Frames:          frames,
		Positions:       positions,
		Confidences:     confidences,
		Interpolated:    interpolated,
		LastUpdateFrame: last,
	}
}

// Finalize force-retires every remaining live hypothesis (end of stream)
// and returns all tracks completed so far, in creation order.
func (t *Tracker) Finalize() []aforo.Track {
	for _, h := range t.hyps {
		t.retire(h)
	}
	t.hyps = nil
	return t.finalized
}

// Tracks returns the tracks finalized so far without forcing retirement of
// live hypotheses.
func (t *Tracker) Tracks() []aforo.Track {
	return t.finalized
}
