// Package segment implements component E: selecting at most one
// (entryAccess, exitAccess, entryFrame, exitFrame) tuple per finalized
// Track.
//
// Grounded on original_source's trajectory-segmentation pass in the
// worker pipeline (first/last access classification plus the
// proximity-override anchor-to-endpoints rule).
package segment

import (
	"github.com/aforos-core/rilsa-engine/pkg/access"
	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// Movement is the segmenter's output: one candidate movement spanning part
// (or all) of a track's frames.
type Movement struct {
	EntryAccess aforo.AccessPoint
	ExitAccess  aforo.AccessPoint
	EntryFrame  int
	ExitFrame   int
	Positions   []aforo.Point // positions covering [EntryFrame, ExitFrame]
}

// Segment applies the entry/exit selection policy to one track, returning
// ok=false when no valid movement can be produced (entryFrame !< exitFrame,
// or no position classifies to any access).
func Segment(track aforo.Track, accesses []aforo.AccessPoint) (Movement, bool) {
	if len(accesses) == 0 || len(track.Positions) == 0 {
		return Movement{}, false
	}

	entryIdx, entryAccess, foundEntry := firstClassified(track, accesses)
	if !foundEntry {
		return Movement{}, false
	}
	exitIdx, exitAccess, foundExit := lastClassifiedDifferent(track, accesses, entryAccess, entryIdx)
	if !foundExit {
		// U-turn candidate: no distinct exit access found, fold back to entry.
		exitIdx, exitAccess = entryIdx, entryAccess
	}

	// Endpoint proximity override: anchor to the track's true first/last
	// frames when both endpoints independently resolve to distinct accesses.
	firstProx, okFirst := access.ClassifyByProximity(track.Positions[0], accesses)
	lastProx, okLast := access.ClassifyByProximity(track.Positions[len(track.Positions)-1], accesses)
	if okFirst && okLast && firstProx.ID != lastProx.ID {
		entryAccess, exitAccess = firstProx, lastProx
		entryIdx, exitIdx = 0, len(track.Positions)-1
	}

	entryFrame := track.Frames[entryIdx]
	exitFrame := track.Frames[exitIdx]
	if !(entryFrame < exitFrame) {
		return Movement{}, false
	}

	return Movement{
		EntryAccess: entryAccess,
		ExitAccess:  exitAccess,
		EntryFrame:  entryFrame,
		ExitFrame:   exitFrame,
		Positions:   track.Positions[entryIdx : exitIdx+1],
	}, true
}

// firstClassified scans left-to-right for the first position that
// classifies to some access.
func firstClassified(track aforo.Track, accesses []aforo.AccessPoint) (int, aforo.AccessPoint, bool) {
	for i, p := range track.Positions {
		if a, ok := access.Classify(p, accesses); ok {
			return i, a, true
		}
	}
	return 0, aforo.AccessPoint{}, false
}

// lastClassifiedDifferent scans left-to-right (keeping the rightmost match)
// for the last position that classifies to an access different from entry.
func lastClassifiedDifferent(track aforo.Track, accesses []aforo.AccessPoint, entry aforo.AccessPoint, entryIdx int) (int, aforo.AccessPoint, bool) {
	foundIdx := -1
	var foundAccess aforo.AccessPoint
	for i := entryIdx; i < len(track.Positions); i++ {
		a, ok := access.Classify(track.Positions[i], accesses)
		if ok && a.ID != entry.ID {
			foundIdx, foundAccess = i, a
		}
	}
	if foundIdx == -1 {
		return 0, aforo.AccessPoint{}, false
	}
	return foundIdx, foundAccess, true
}
