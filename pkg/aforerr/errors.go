// Package aforerr implements the error taxonomy of the aforo pipeline:
// a small set of typed error kinds, with explicit propagation semantics
// distinguishing per-event failures (counted, never surfaced) from
// dataset-level failures (abort the operation).
package aforerr

import (
	"fmt"
	"time"
)

// Kind enumerates the seven error kinds the core distinguishes.
type Kind string

const (
	// InputShapeMismatch: the raw detection blob exposes none of the
	// recognized column/shape patterns. Dataset-level, surfaced.
	InputShapeMismatch Kind = "input_shape_mismatch"
	// MissingTrajectoryData: an analysis query ran against a dataset with
	// no normalized detections. Surfaced to the caller.
	MissingTrajectoryData Kind = "missing_trajectory_data"
	// ConfigurationIncomplete: access polygons or rule map missing or
	// malformed. Partial degrade — affected events are dropped, job continues.
	ConfigurationIncomplete Kind = "configuration_incomplete"
	// InvalidCorrectionTarget: a correction named an unknown trackId.
	InvalidCorrectionTarget Kind = "invalid_correction_target"
	// MappingGap: the rule map doesn't cover an encountered (origin, dest).
	// Per-event, never surfaced.
	MappingGap Kind = "mapping_gap"
	// DegenerateTrack: a track failed an invariant (too few positions,
	// non-monotonic frames). Per-event, dropped silently.
	DegenerateTrack Kind = "degenerate_track"
	// RepositoryConflict: concurrent mutation under the dataset advisory
	// lock. Dataset-level, fails fast, caller must retry.
	RepositoryConflict Kind = "repository_conflict"
)

// DatasetLevel reports whether errors of this kind abort the current
// operation (true) or are localized to a single event/track and merely
// counted in QC metrics (false), propagation policy.
func (k Kind) DatasetLevel() bool {
	switch k {
	case InputShapeMismatch, MissingTrajectoryData, RepositoryConflict:
		return true
	default:
		return false
	}
}

// Error is the taxonomy's single error type: a Kind plus the dataset/track
// it concerns and a human-readable reason. No stack traces are part of the
// contract.
type Error struct {
	Kind      Kind
	DatasetID string
	TrackID   string // empty when not track-scoped
	Reason    string
	Err       error // wrapped cause, if any
	At        time.Time
}

func (e *Error) Error() string {
	if e.TrackID != "" {
		return fmt.Sprintf("%s: dataset=%s track=%s: %s", e.Kind, e.DatasetID, e.TrackID, e.Reason)
	}
	return fmt.Sprintf("%s: dataset=%s: %s", e.Kind, e.DatasetID, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by Kind only, letting callers use errors.Is(err, aforerr.New(aforerr.MappingGap, ...)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a dataset-scoped error.
func New(kind Kind, datasetID, reason string) *Error {
	return &Error{Kind: kind, DatasetID: datasetID, Reason: reason}
}

// NewTrack constructs a track-scoped error.
func NewTrack(kind Kind, datasetID, trackID, reason string) *Error {
	return &Error{Kind: kind, DatasetID: datasetID, TrackID: trackID, Reason: reason}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, datasetID string, err error) *Error {
	return &Error{Kind: kind, DatasetID: datasetID, Reason: err.Error(), Err: err}
}
