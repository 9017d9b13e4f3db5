// Package orchestrator implements component K: the per-dataset pipeline
// run (tracker -> segmenter -> mapper -> quality filters -> corrections ->
// aggregator) against a repository.Repository, under an advisory
// per-dataset lock with cooperative cancellation between frame batches.
//
// Grounded on the teacher's pkg/norfairgo frame-sequential processing
// loop (the video.go capture loop's read-frame/process/until-EOF shape,
// generalized from a gocv.VideoCapture to a repository.DetectionStream)
// and original_source's pipeline orchestration (one rebuild per dataset,
// replace-and-replay semantics for events and movement counts).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aforos-core/rilsa-engine/pkg/aforerr"
	"github.com/aforos-core/rilsa-engine/pkg/aforo"
	"github.com/aforos-core/rilsa-engine/pkg/aggregate"
	"github.com/aforos-core/rilsa-engine/pkg/correction"
	"github.com/aforos-core/rilsa-engine/pkg/lock"
	"github.com/aforos-core/rilsa-engine/pkg/obsmetrics"
	"github.com/aforos-core/rilsa-engine/pkg/quality"
	"github.com/aforos-core/rilsa-engine/pkg/repository"
	"github.com/aforos-core/rilsa-engine/pkg/rilsa"
	"github.com/aforos-core/rilsa-engine/pkg/segment"
	"github.com/aforos-core/rilsa-engine/pkg/tracker"
)

// LockFactory builds the advisory lock held for one dataset's rebuild.
// Separated from a concrete *lock.DatasetLock so tests can substitute an
// in-process stub instead of a Redis-backed one.
type LockFactory func(datasetID string) DatasetLock

// DatasetLock is the subset of *lock.DatasetLock the orchestrator needs.
type DatasetLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NewRedisLockFactory adapts pkg/lock's concrete constructor to LockFactory.
func NewRedisLockFactory(newLock func(datasetID string) *lock.DatasetLock) LockFactory {
	return func(datasetID string) DatasetLock { return newLock(datasetID) }
}

// Config bounds the orchestrator's behavior across every dataset it runs.
type Config struct {
	TrackerConfig   tracker.Config
	FramesPerTick   int        // cancellation/pacing check granularity
	FrameTickRate   rate.Limit // frame-batch ticks per second; rate.Inf disables pacing
	FrameTickBurst  int
	LockTTL         time.Duration
	CorrectionActor string
}

// DefaultConfig mirrors the tracker's defaults, with pacing disabled
// (rate.Inf) and a cancellation check every 500 frames.
func DefaultConfig() Config {
	return Config{
		TrackerConfig:   tracker.DefaultConfig(),
		FramesPerTick:   500,
		FrameTickRate:   rate.Inf,
		FrameTickBurst:  1,
		LockTTL:         5 * time.Minute,
		CorrectionActor: "system",
	}
}

// Orchestrator runs full dataset rebuilds against a repository.Repository.
type Orchestrator struct {
	repo    repository.Repository
	locks   LockFactory
	metrics *obsmetrics.Metrics
	log     *zap.SugaredLogger
	cfg     Config
	now     func() time.Time
}

// New builds an Orchestrator. now defaults to time.Now when nil (tests
// pass a fixed clock for deterministic history/revision timestamps).
func New(repo repository.Repository, locks LockFactory, metrics *obsmetrics.Metrics, log *zap.SugaredLogger, cfg Config, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{repo: repo, locks: locks, metrics: metrics, log: log, cfg: cfg, now: now}
}

// Rebuild runs one full pipeline pass for datasetID: re-tracks every
// detection, re-segments, re-maps, re-filters, re-applies the dataset's
// standing corrections, and atomically replaces both the event set and the
// movement-count aggregates. It holds the dataset's advisory lock for the
// duration; a lock already held by another worker is reported as a
// RepositoryConflict error, not a panic or retry loop — callers (cmd/worker)
// own retry policy.
func (o *Orchestrator) Rebuild(ctx context.Context, datasetID string) error {
	start := o.now()
	o.metrics.RebuildsInFlight.Inc()
	defer o.metrics.RebuildsInFlight.Dec()

	lockWaitStart := o.now()
	l := o.locks(datasetID)
	acquired, err := l.Acquire(ctx)
	o.metrics.LockWaitDuration.WithLabelValues(datasetID).Observe(o.now().Sub(lockWaitStart).Seconds())
	if err != nil {
		o.metrics.RebuildsTotal.WithLabelValues(datasetID, "error").Inc()
		return fmt.Errorf("acquire lock for %s: %w", datasetID, err)
	}
	if !acquired {
		o.metrics.RebuildsTotal.WithLabelValues(datasetID, "error").Inc()
		return aforerr.New(aforerr.RepositoryConflict, datasetID, "dataset is locked by another worker")
	}
	defer func() {
		if err := l.Release(context.Background()); err != nil {
			o.log.Warnw("failed to release dataset lock", "datasetId", datasetID, "error", err)
		}
	}()

	if err := o.runPipeline(ctx, datasetID); err != nil {
		outcome := "error"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		o.metrics.RebuildsTotal.WithLabelValues(datasetID, outcome).Inc()
		return err
	}

	o.metrics.RebuildsTotal.WithLabelValues(datasetID, "ok").Inc()
	o.metrics.RebuildDuration.WithLabelValues(datasetID).Observe(o.now().Sub(start).Seconds())
	return nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, datasetID string) error {
	cfg, err := o.repo.LoadConfig(ctx, datasetID)
	if err != nil {
		return aforerr.Wrap(aforerr.MissingTrajectoryData, datasetID, fmt.Errorf("load config: %w", err))
	}
	ruleMap := cfg.RuleMap
	if ruleMap.Rules == nil {
		accesses := cfg.Accesses
		if len(accesses) == 0 {
			accesses = rilsa.StandardAccesses
		}
		ruleMap = rilsa.DefaultRuleMap(accesses)
	}

	tracks, err := o.runTracker(ctx, datasetID, cfg)
	if err != nil {
		return err
	}

	events, discardedByReason := o.mapTracks(datasetID, tracks, cfg, ruleMap)

	corrections, err := o.repo.LoadCorrections(ctx, datasetID)
	if err != nil {
		return aforerr.Wrap(aforerr.InvalidCorrectionTarget, datasetID, fmt.Errorf("load corrections: %w", err))
	}
	beforeCount := len(events)
	events = correction.ApplyAll(events, corrections, ruleMap, o.cfg.CorrectionActor, o.now)
	if len(corrections) > 0 {
		dropped := beforeCount - len(events)
		o.metrics.CorrectionsAppliedTotal.WithLabelValues(datasetID, "applied").Add(float64(len(corrections) - dropped))
		if dropped > 0 {
			o.metrics.CorrectionsAppliedTotal.WithLabelValues(datasetID, "dropped_unmappable").Add(float64(dropped))
			discardedByReason["correction_unmappable"] += dropped
		}
	}
	manualDiscards := 0
	for _, e := range events {
		if e.Discarded {
			manualDiscards++
		}
	}
	if manualDiscards > 0 {
		discardedByReason["manual_discard"] += manualDiscards
	}

	if err := o.repo.ReplaceEvents(ctx, datasetID, events); err != nil {
		return aforerr.Wrap(aforerr.RepositoryConflict, datasetID, fmt.Errorf("replace events: %w", err))
	}

	agg := aggregate.New(cfg.AnalysisSettings.IntervalMinutes)
	agg.RebuildFromEvents(events)
	if err := o.repo.ReplaceMovementCounts(ctx, datasetID, agg.AllCounts(datasetID)); err != nil {
		return aforerr.Wrap(aforerr.RepositoryConflict, datasetID, fmt.Errorf("replace movement counts: %w", err))
	}

	countedTracks := 0
	for _, e := range events {
		if !e.Discarded {
			countedTracks++
		}
	}
	discardedByReasonJSON, err := json.Marshal(discardedByReason)
	if err != nil {
		return fmt.Errorf("encode discardedByReason for %s: %w", datasetID, err)
	}
	if err := o.repo.RecordHistory(ctx, datasetID, "rebuild", map[string]string{
		"tracksFinalized":   fmt.Sprintf("%d", len(tracks)),
		"eventsProduced":    fmt.Sprintf("%d", len(events)),
		"totalTracksRaw":    fmt.Sprintf("%d", len(tracks)),
		"countedTracks":     fmt.Sprintf("%d", countedTracks),
		"discardedByReason": string(discardedByReasonJSON),
	}); err != nil {
		o.log.Warnw("failed to record rebuild history", "datasetId", datasetID, "error", err)
	}

	return nil
}

// runTracker streams detections from the repository, batches them by frame
// id, and steps the tracker frame by frame. It checks ctx between every
// FramesPerTick frames (and waits on a rate.Limiter if configured) so a
// long rebuild can be canceled between frame batches rather than only at
// pipeline boundaries.
func (o *Orchestrator) runTracker(ctx context.Context, datasetID string, cfg repository.DatasetConfig) ([]aforo.Track, error) {
	stream, err := o.repo.LoadDetections(ctx, datasetID)
	if err != nil {
		return nil, aforerr.Wrap(aforerr.MissingTrajectoryData, datasetID, fmt.Errorf("load detections: %w", err))
	}
	defer stream.Close()

	limiter := rate.NewLimiter(o.cfg.FrameTickRate, max(1, o.cfg.FrameTickBurst))
	t := tracker.New(o.cfg.TrackerConfig, o.log)

	framesPerTick := o.cfg.FramesPerTick
	if framesPerTick <= 0 {
		framesPerTick = 500
	}

	var pending []aforo.Detection
	currentFrame := -1
	framesSinceTick := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		t.Step(currentFrame, pending)
		o.metrics.ActiveTracks.Set(float64(len(pending)))
		for _, d := range pending {
			o.metrics.DetectionsIngestedTotal.WithLabelValues(datasetID, d.Class).Inc()
		}
		pending = pending[:0]
		framesSinceTick++
	}

	for {
		d, ok, err := stream.Next(ctx)
		if err != nil {
			return nil, aforerr.Wrap(aforerr.InputShapeMismatch, datasetID, fmt.Errorf("read detection: %w", err))
		}
		if !ok {
			break
		}
		if d.FrameID != currentFrame {
			flush()
			currentFrame = d.FrameID
		}
		pending = append(pending, d)

		if framesSinceTick >= framesPerTick {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			framesSinceTick = 0
		}
	}
	flush()

	return t.Finalize(), nil
}

func (o *Orchestrator) mapTracks(datasetID string, tracks []aforo.Track, cfg repository.DatasetConfig, ruleMap aforo.RilsaRuleMap) ([]aforo.TrajectoryEvent, map[string]int) {
	thresholds := quality.FromSettings(cfg.AnalysisSettings)
	baseTime := cfg.BaseTime

	discardedByReason := map[string]int{}
	events := make([]aforo.TrajectoryEvent, 0, len(tracks))
	for _, track := range tracks {
		movement, ok := segment.Segment(track, cfg.Accesses)
		if !ok {
			o.metrics.TracksFinalizedTotal.WithLabelValues(datasetID, "unsegmented").Inc()
			discardedByReason["unsegmented"]++
			continue
		}

		code, canonicalClass, ok := rilsa.Resolve(ruleMap, movement.EntryAccess.Cardinal, movement.ExitAccess.Cardinal, track.Class)
		if !ok {
			o.metrics.TracksFinalizedTotal.WithLabelValues(datasetID, "unmapped").Inc()
			discardedByReason["unmapped"]++
			continue
		}

		event := aforo.TrajectoryEvent{
			TrackID:             track.TrackID,
			Class:               canonicalClass,
			OriginCardinal:      movement.EntryAccess.Cardinal,
			DestinationCardinal: movement.ExitAccess.Cardinal,
			RilsaCode:           code,
			FrameEntry:          movement.EntryFrame,
			FrameExit:           movement.ExitFrame,
			TimestampEntry:      frameTimestamp(baseTime, movement.EntryFrame),
			TimestampExit:       frameTimestamp(baseTime, movement.ExitFrame),
			Positions:           movement.Positions,
			Confidence:          averageConfidence(track.Confidences),
		}

		if reason := quality.Evaluate(event, thresholds); reason != quality.ReasonNone {
			o.metrics.EventsRejectedTotal.WithLabelValues(datasetID, string(reason)).Inc()
			discardedByReason[string(reason)]++
			continue
		}

		if description, forbidden := rilsa.Forbidden(event.RilsaCode, cfg.ForbiddenMovements); forbidden {
			event.Forbidden = true
			event.ForbiddenReason = description
			o.metrics.EventsForbiddenTotal.WithLabelValues(datasetID, event.RilsaCode).Inc()
		}

		o.metrics.EventsMappedTotal.WithLabelValues(datasetID, event.RilsaCode).Inc()
		o.metrics.TracksFinalizedTotal.WithLabelValues(datasetID, "kept").Inc()
		events = append(events, event)
	}
	return events, discardedByReason
}

// frameTimestamp derives a wall-clock timestamp for a frame index from the
// dataset's base time, at the normalizer's default frame rate (the
// repository contract carries no per-dataset fps field).
func frameTimestamp(base time.Time, frameID int) time.Time {
	const fps = 30.0
	if base.IsZero() {
		base = time.Unix(0, 0).UTC()
	}
	seconds := float64(frameID) / fps
	return base.Add(time.Duration(seconds * float64(time.Second)))
}

func averageConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}
