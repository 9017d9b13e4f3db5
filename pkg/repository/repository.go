// Package repository declares the typed contract the core consumes from
// persistence (component J). The core never depends on a concrete backing
// store; internal/sqliterepo provides a reference implementation used by
// tests and the cmd/worker entrypoint.
//
// Grounded on the teacher's pkg/norfairgo package-interface style (small,
// behavior-named interfaces over context.Context) and banshee's db package
// for what a Go repository over a SQL store looks like in this corpus.
package repository

import (
	"context"
	"time"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// DatasetConfig is the bundle loadConfig returns: everything the pipeline
// needs besides the raw detection stream and the correction set.
type DatasetConfig struct {
	Accesses           []aforo.AccessPoint
	RuleMap            aforo.RilsaRuleMap
	AnalysisSettings   aforo.AnalysisSettings
	ForbiddenMovements []aforo.ForbiddenMovement
	BaseTime           time.Time // deterministic per-dataset base for frame->timestamp derivation; default epoch if unset
}

// DetectionStream yields ordered (frameId ascending) detections. Callers
// must call Close when done, even after an error from Next.
type DetectionStream interface {
	Next(ctx context.Context) (aforo.Detection, bool, error)
	Close() error
}

// Repository is the full typed contract the orchestrator depends on.
// Every method is per-dataset; cross-dataset operations do not exist in
// this contract.
type Repository interface {
	LoadDetections(ctx context.Context, datasetID string) (DetectionStream, error)
	LoadConfig(ctx context.Context, datasetID string) (DatasetConfig, error)
	LoadCorrections(ctx context.Context, datasetID string) (map[string]aforo.TrajectoryCorrection, error)

	// ReplaceEvents is atomic: either all of events become visible or none.
	ReplaceEvents(ctx context.Context, datasetID string, events []aforo.TrajectoryEvent) error
	UpsertEvent(ctx context.Context, datasetID string, event aforo.TrajectoryEvent) error
	AppendRevision(ctx context.Context, datasetID, trackID string, revision aforo.Revision) error

	// ReplaceMovementCounts is atomic.
	ReplaceMovementCounts(ctx context.Context, datasetID string, counts []aforo.MovementCount) error

	RecordHistory(ctx context.Context, datasetID, action string, details map[string]string) error

	// Read API (§6.4), consumed by external reporters through the core.
	GetEvents(ctx context.Context, datasetID string, filter EventFilter, paging Paging) ([]aforo.TrajectoryEvent, int, error)
	GetIntervals(ctx context.Context, datasetID string) ([]aforo.MovementCount, error)

	// GetViolations rolls up non-discarded events tagged Forbidden=true by
	// the rebuild pipeline (rilsa.Forbidden) into a per-code summary, the
	// supplemented violations report (original_source's violations.py).
	GetViolations(ctx context.Context, datasetID string) (ViolationsSummary, error)

	// GetConflicts finds pairs of non-discarded events whose
	// [timestampEntry, timestampExit] windows overlap within window and
	// whose rilsaCode differs — a time-overlap proxy for simultaneous
	// crossing movements (original_source's conflicts.py ran true TTC
	// physics over raw per-frame positions, which this contract does not
	// retain past a rebuild; see DESIGN.md).
	GetConflicts(ctx context.Context, datasetID string, window time.Duration) ([]Conflict, error)

	// GetQCSummary reports the rebuild's track/event bookkeeping: how many
	// tracks the tracker finalized, how many survived into counted events,
	// why the rest were dropped, and per-class/per-movement tallies of
	// what was counted.
	GetQCSummary(ctx context.Context, datasetID string) (QCSummary, error)

	// GetHistory returns the dataset's append-only audit log, newest first.
	GetHistory(ctx context.Context, datasetID string) ([]aforo.HistoryEntry, error)
}

// ViolationsSummary is getViolations' return shape: total forbidden-event
// occurrences plus a per-code breakdown, sorted by count descending.
type ViolationsSummary struct {
	TotalViolations int
	ByMovement      []ViolationCount
}

// ViolationCount is one rilsaCode's forbidden-event tally.
type ViolationCount struct {
	RilsaCode   string
	Description string
	Count       int
}

// Conflict is one time-overlapping pair of simultaneous, differently-coded
// movements.
type Conflict struct {
	TrackID1       string
	TrackID2       string
	RilsaCode1     string
	RilsaCode2     string
	OverlapStart   time.Time
	OverlapEnd     time.Time
	OverlapSeconds float64
}

// QCSummary is getQCSummary's return shape (§6.4 supplement): the full
// raw-vs-counted breakdown original_source's persistence layer keeps.
type QCSummary struct {
	TotalTracksRaw    int
	CountedTracks     int
	DiscardedByReason map[string]int
	CountsByClass     map[string]int
	CountsByMovement  map[string]int
}

// EventFilter narrows GetEvents; zero value matches everything except
// discarded events (IncludeDiscarded defaults false).
type EventFilter struct {
	Class            string
	OriginCardinal   string
	RilsaCode        string
	TrackIDPrefix    string
	IncludeDiscarded bool
}

// Paging is a skip/limit window; Limit<=0 means unlimited.
type Paging struct {
	Skip  int
	Limit int
}
