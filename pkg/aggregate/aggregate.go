// Package aggregate implements component I: idempotent 15-minute bucketing
// of completed events into per-dataset, per-movement-code, per-class
// counts, with an atomic rebuild path.
//
// Grounded on original_source's api/services/aggregate.py AggregatorService
// (processed_tracks dedup set, get_interval_iso floor, add_track/
// rebuild_from_events), reworked into an in-memory index the orchestrator
// hands off to the repository's replaceMovementCounts.
package aggregate

import (
	"sort"
	"time"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// dedupKey is the idempotence key: (intervalStart, trackId). datasetId is
// implicit in which Aggregator instance owns the key, matching the
// per-dataset worker-local invariant (see pkg/orchestrator).
type dedupKey struct {
	intervalStart time.Time
	trackID       string
}

type bucketKey struct {
	rilsaCode     string
	intervalStart time.Time
}

// Aggregator holds one dataset's running 15-minute counts. Not safe for
// concurrent use; one worker owns one dataset (§5 scheduling model).
type Aggregator struct {
	intervalMinutes int
	processed       map[dedupKey]bool
	buckets         map[bucketKey]map[string]int // countsByClass
}

// New creates an Aggregator bucketing on the given interval width in
// minutes (spec default 15).
func New(intervalMinutes int) *Aggregator {
	if intervalMinutes <= 0 {
		intervalMinutes = 15
	}
	return &Aggregator{
		intervalMinutes: intervalMinutes,
		processed:       make(map[dedupKey]bool),
		buckets:         make(map[bucketKey]map[string]int),
	}
}

// IntervalStart floors t to the aggregator's interval-minute wall-clock
// boundary, zeroing seconds and sub-second components.
func (a *Aggregator) IntervalStart(t time.Time) time.Time {
	t = t.Truncate(time.Minute)
	minute := t.Minute()
	floored := minute - minute%a.intervalMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), floored, 0, 0, t.Location())
}

// AddEvent incrementally folds one non-discarded event into the running
// counts. Idempotent: re-adding an event already counted for its
// (intervalStart, trackId) is a no-op.
func (a *Aggregator) AddEvent(event aforo.TrajectoryEvent) {
	if event.Discarded || event.RilsaCode == "" {
		return
	}
	interval := a.IntervalStart(event.TimestampExit)
	dk := dedupKey{intervalStart: interval, trackID: event.TrackID}
	if a.processed[dk] {
		return
	}
	a.processed[dk] = true

	bk := bucketKey{rilsaCode: event.RilsaCode, intervalStart: interval}
	if a.buckets[bk] == nil {
		a.buckets[bk] = make(map[string]int)
	}
	a.buckets[bk][event.Class]++
}

// RebuildFromEvents clears all counts and replays every event in the given
// order (order does not matter; dedup handles any duplicates).
func (a *Aggregator) RebuildFromEvents(events []aforo.TrajectoryEvent) {
	a.processed = make(map[dedupKey]bool)
	a.buckets = make(map[bucketKey]map[string]int)
	for _, e := range events {
		a.AddEvent(e)
	}
}

// GetIntervals returns every distinct intervalStart with at least one
// count, sorted ascending.
func (a *Aggregator) GetIntervals() []time.Time {
	seen := make(map[time.Time]bool)
	for bk := range a.buckets {
		seen[bk.intervalStart] = true
	}
	out := make([]time.Time, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// GetIntervalData returns every MovementCount bucket for the given
// intervalStart, sorted by RilsaCode ascending (spec's canonical ordering).
func (a *Aggregator) GetIntervalData(datasetID string, intervalStart time.Time) []aforo.MovementCount {
	var out []aforo.MovementCount
	intervalEnd := intervalStart.Add(time.Duration(a.intervalMinutes) * time.Minute)
	for bk, counts := range a.buckets {
		if !bk.intervalStart.Equal(intervalStart) {
			continue
		}
		countsCopy := make(map[string]int, len(counts))
		for k, v := range counts {
			countsCopy[k] = v
		}
		out = append(out, aforo.MovementCount{
			DatasetID:     datasetID,
			RilsaCode:     bk.rilsaCode,
			IntervalStart: intervalStart,
			IntervalEnd:   intervalEnd,
			CountsByClass: countsCopy,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RilsaCode < out[j].RilsaCode })
	return out
}

// AllCounts returns every MovementCount across every interval, ordered by
// (intervalStart ascending, rilsaCode ascending) — the canonical ordering
// used for rebuild-determinism checks.
func (a *Aggregator) AllCounts(datasetID string) []aforo.MovementCount {
	var out []aforo.MovementCount
	for _, interval := range a.GetIntervals() {
		out = append(out, a.GetIntervalData(datasetID, interval)...)
	}
	return out
}
