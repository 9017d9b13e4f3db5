// Package rilsa implements component F: resolving an (originCardinal,
// destCardinal, class) triple to a RILSA movement code via a per-dataset
// rule map, plus the generator that derives that rule map from a dataset's
// access layout.
//
// Grounded on original_source's api/services/rilsa_mapping.py
// (order_accesses_for_rilsa / movement_code_for_vehicle /
// movement_code_for_pedestrian / build_rilsa_rule_map): accesses are
// ordered and indexed, then every (origin, dest) pair is classified as
// straight/left/right/U-turn from that ordering and turned into a code,
// with a 99_<originId>_<destId> fallback for pairs that don't resolve to
// a known class.
package rilsa

import (
	"fmt"
	"math"
	"sort"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// angularOrder is the geometric (counter-clockwise) cardinal sequence used
// to classify a movement as straight/left/right/U-turn. It is distinct
// from aforo.CardinalOrder, which only fixes the 1-based index ("1".."4",
// "5".."8", ...) a cardinal's access gets in the generated codes.
var angularOrder = []aforo.Cardinal{aforo.North, aforo.West, aforo.South, aforo.East}

func angularIndex(c aforo.Cardinal) (int, bool) {
	for i, o := range angularOrder {
		if o == c {
			return i, true
		}
	}
	return 0, false
}

type movementClass int

const (
	classUnknown movementClass = iota
	classStraight
	classLeft
	classRight
	classReturn
)

// classify derives the movement class from the angular distance between
// origin and dest, mirroring original_source's _movement_class diff table.
func classify(origin, dest aforo.Cardinal) movementClass {
	oi, ok := angularIndex(origin)
	if !ok {
		return classUnknown
	}
	di, ok := angularIndex(dest)
	if !ok {
		return classUnknown
	}
	switch ((di-oi)%4 + 4) % 4 {
	case 0:
		return classReturn
	case 1:
		return classRight
	case 2:
		return classStraight
	case 3:
		return classLeft
	}
	return classUnknown
}

func cardinalRank(c aforo.Cardinal) (int, bool) {
	for i, o := range aforo.CardinalOrder {
		if o == c {
			return i, true
		}
	}
	return 0, false
}

// angleDegrees is the fallback ordering key for an access with no standard
// cardinal: its bearing from the intersection's origin, in [0, 360).
func angleDegrees(a aforo.AccessPoint) float64 {
	deg := math.Atan2(a.Y, a.X) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// orderAccessesForRilsa orders accesses for indexing: known cardinals sort
// by aforo.CardinalOrder first, then any accesses without a standard
// cardinal are appended, ordered by bearing, so a non-standard layout
// still yields a stable, deterministic 1-based index per access.
func orderAccessesForRilsa(accesses []aforo.AccessPoint) []aforo.AccessPoint {
	ordered := append([]aforo.AccessPoint(nil), accesses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, oki := cardinalRank(ordered[i].Cardinal)
		rj, okj := cardinalRank(ordered[j].Cardinal)
		if oki && okj {
			return ri < rj
		}
		if oki != okj {
			return oki
		}
		return angleDegrees(ordered[i]) < angleDegrees(ordered[j])
	})
	return ordered
}

// DefaultRuleMap derives the RILSA rule map from accesses: every ordered
// pair is classified by angular distance and turned into a code using the
// origin access's 1-based index — straight "1".."4", left "5".."8", right
// "9_1".."9_4", U-turn "10_1".."10_4" for the canonical 4-access layout.
// A pair that doesn't resolve to a known class (an access with no
// standard cardinal, or one outside the 4-cardinal set) falls back to
// "99_<originId>_<destId>", matching movement_code_for_vehicle's fallback.
func DefaultRuleMap(accesses []aforo.AccessPoint) aforo.RilsaRuleMap {
	ordered := orderAccessesForRilsa(accesses)
	rules := make(map[aforo.CardinalPair]string, len(ordered)*len(ordered))
	for i, origin := range ordered {
		originIndex := i + 1
		for _, dest := range ordered {
			rules[aforo.CardinalPair{Origin: origin.Cardinal, Dest: dest.Cardinal}] = movementCode(origin, dest, originIndex)
		}
	}
	return aforo.RilsaRuleMap{Rules: rules}
}

func movementCode(origin, dest aforo.AccessPoint, originIndex int) string {
	switch classify(origin.Cardinal, dest.Cardinal) {
	case classStraight:
		return fmt.Sprintf("%d", originIndex)
	case classLeft:
		return fmt.Sprintf("%d", 4+originIndex)
	case classRight:
		return fmt.Sprintf("9_%d", originIndex)
	case classReturn:
		return fmt.Sprintf("10_%d", originIndex)
	default:
		return fmt.Sprintf("99_%s_%s", origin.ID, dest.ID)
	}
}

// StandardAccesses is the canonical 4-access layout (N, S, O, E at the
// cardinal axes) used wherever a dataset doesn't define its own accesses —
// DefaultRuleMap(StandardAccesses) reproduces the textbook 20-movement
// RILSA table.
var StandardAccesses = []aforo.AccessPoint{
	{ID: "N", Cardinal: aforo.North, X: 0, Y: -1},
	{ID: "S", Cardinal: aforo.South, X: 0, Y: 1},
	{ID: "O", Cardinal: aforo.West, X: -1, Y: 0},
	{ID: "E", Cardinal: aforo.East, X: 1, Y: 0},
}

// PedestrianCode returns the P_i code for a pedestrian entering at
// originCardinal; it never depends on the destination.
func PedestrianCode(origin aforo.Cardinal) string {
	rank, _ := cardinalRank(origin)
	return fmt.Sprintf("P%d", rank+1)
}

// Resolve canonicalizes class and resolves a RILSA code for
// (originCardinal, destCardinal, class) against the given rule map. It
// returns ok=false (not an error) when the movement is unclassifiable: a
// vehicle pair absent from the rule map.
func Resolve(ruleMap aforo.RilsaRuleMap, origin, dest aforo.Cardinal, class string) (code string, canonicalClass string, ok bool) {
	canonicalClass = aforo.CanonicalClass(class)
	if aforo.IsPedestrian(canonicalClass) {
		return PedestrianCode(origin), canonicalClass, true
	}
	code, ok = ruleMap.Lookup(origin, dest)
	return code, canonicalClass, ok
}

// Forbidden reports whether a resolved code is tagged as a forbidden
// movement, and its description if so. Tagging-only: it never alters the
// resolved code, only annotates the event for the QC reporter.
func Forbidden(code string, forbidden []aforo.ForbiddenMovement) (description string, isForbidden bool) {
	for _, f := range forbidden {
		if f.RilsaCode == code {
			return f.Description, true
		}
	}
	return "", false
}
