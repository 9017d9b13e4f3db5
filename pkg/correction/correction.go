// Package correction implements component H: applying per-track manual
// overrides to segmenter/mapper output, recomputing the RILSA code, and
// appending to the per-event revision log.
//
// Grounded on original_source's correction-application pass (reclassify /
// reassign access / discard / hide-in-report, each bumping a revision)
// layered on pkg/rilsa for the recompute step.
package correction

import (
	"time"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
	"github.com/aforos-core/rilsa-engine/pkg/rilsa"
)

// Apply applies correction to event in place-equivalent fashion (returns a
// new value; callers persist the result via upsertEvent). changedBy
// identifies the actor for the revision log. If the recomputed
// (origin, dest, class) triple has no rule-map entry, the event is dropped
// (ok=false) rather than errored — an unmappable correction is not a
// system failure.
func Apply(event aforo.TrajectoryEvent, correction aforo.TrajectoryCorrection, ruleMap aforo.RilsaRuleMap, changedBy string, now func() time.Time) (aforo.TrajectoryEvent, bool) {
	changes := map[string]string{}

	if correction.Discard && !event.Discarded {
		changes["discarded"] = "true"
	}
	event.Discarded = event.Discarded || correction.Discard

	if correction.HideInReport {
		if !event.HideInReport {
			changes["hideInReport"] = "true"
		}
		event.HideInReport = true
	}
	if correction.NewClass != nil && *correction.NewClass != event.Class {
		changes["class"] = event.Class + "->" + *correction.NewClass
		event.Class = *correction.NewClass
	}
	if correction.NewOrigin != nil && *correction.NewOrigin != event.OriginCardinal {
		changes["originCardinal"] = string(event.OriginCardinal) + "->" + string(*correction.NewOrigin)
		event.OriginCardinal = *correction.NewOrigin
	}
	if correction.NewDest != nil && *correction.NewDest != event.DestinationCardinal {
		changes["destinationCardinal"] = string(event.DestinationCardinal) + "->" + string(*correction.NewDest)
		event.DestinationCardinal = *correction.NewDest
	}

	code, canonicalClass, ok := rilsa.Resolve(ruleMap, event.OriginCardinal, event.DestinationCardinal, event.Class)
	if !ok {
		return aforo.TrajectoryEvent{}, false
	}
	event.Class = canonicalClass
	if code != event.RilsaCode {
		changes["rilsaCode"] = event.RilsaCode + "->" + code
	}
	event.RilsaCode = code

	version := len(event.Revisions) + 1
	event.Revisions = append(event.Revisions, aforo.Revision{
		Version:   version,
		Changes:   changes,
		ChangedBy: changedBy,
		Timestamp: now(),
	})

	return event, true
}

// ApplyAll applies the dataset's correction set to a slice of events,
// dropping only events that correction-driven recomputation rendered
// unmappable. Discarded events stay in the returned slice with
// Discarded=true — discard is a flag, not a deletion, so the revision log
// and report/QC split (§6) still apply to them; the aggregator (component
// I) is what actually excludes them from counts.
func ApplyAll(events []aforo.TrajectoryEvent, corrections map[string]aforo.TrajectoryCorrection, ruleMap aforo.RilsaRuleMap, changedBy string, now func() time.Time) []aforo.TrajectoryEvent {
	out := make([]aforo.TrajectoryEvent, 0, len(events))
	for _, e := range events {
		c, has := corrections[e.TrackID]
		if !has {
			out = append(out, e)
			continue
		}
		updated, ok := Apply(e, c, ruleMap, changedBy, now)
		if !ok {
			continue
		}
		out = append(out, updated)
	}
	return out
}
