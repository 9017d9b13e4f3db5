package rilsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

func TestDefaultRuleMapStraight(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	cases := []struct {
		origin, dest aforo.Cardinal
		code         string
	}{
		{aforo.North, aforo.South, "1"},
		{aforo.South, aforo.North, "2"},
		{aforo.West, aforo.East, "3"},
		{aforo.East, aforo.West, "4"},
	}
	for _, c := range cases {
		got, ok := m.Lookup(c.origin, c.dest)
		require.True(t, ok)
		assert.Equal(t, c.code, got)
	}
}

func TestDefaultRuleMapLeft(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	cases := []struct {
		origin, dest aforo.Cardinal
		code         string
	}{
		{aforo.North, aforo.East, "5"},
		{aforo.South, aforo.West, "6"},
		{aforo.West, aforo.North, "7"},
		{aforo.East, aforo.South, "8"},
	}
	for _, c := range cases {
		got, ok := m.Lookup(c.origin, c.dest)
		require.True(t, ok)
		assert.Equal(t, c.code, got)
	}
}

func TestDefaultRuleMapRight(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	cases := []struct {
		origin, dest aforo.Cardinal
		code         string
	}{
		{aforo.North, aforo.West, "9_1"},
		{aforo.South, aforo.East, "9_2"},
		{aforo.West, aforo.South, "9_3"},
		{aforo.East, aforo.North, "9_4"},
	}
	for _, c := range cases {
		got, ok := m.Lookup(c.origin, c.dest)
		require.True(t, ok)
		assert.Equal(t, c.code, got)
	}
}

func TestDefaultRuleMapUTurn(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	cases := []struct {
		cardinal aforo.Cardinal
		code     string
	}{
		{aforo.North, "10_1"},
		{aforo.South, "10_2"},
		{aforo.West, "10_3"},
		{aforo.East, "10_4"},
	}
	for _, c := range cases {
		got, ok := m.Lookup(c.cardinal, c.cardinal)
		require.True(t, ok)
		assert.Equal(t, c.code, got)
	}
}

func TestDefaultRuleMapIsTotalOver16Pairs(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	assert.Len(t, m.Rules, 16)
}

func TestDefaultRuleMapFallsBackToCompositeCodeForNonStandardAccess(t *testing.T) {
	accesses := append(append([]aforo.AccessPoint{}, StandardAccesses...), aforo.AccessPoint{ID: "X1", X: 50, Y: -50})
	m := DefaultRuleMap(accesses)

	code, ok := m.Lookup(aforo.North, "")
	require.True(t, ok)
	assert.Equal(t, "99_N_X1", code)

	code, ok = m.Lookup("", aforo.North)
	require.True(t, ok)
	assert.Equal(t, "99_X1_N", code)
}

func TestDefaultRuleMapOrdersUnknownCardinalsByBearing(t *testing.T) {
	accesses := []aforo.AccessPoint{
		{ID: "high-bearing", X: 1, Y: -1}, // atan2(-1,1) -> 315 degrees
		{ID: "low-bearing", X: 1, Y: 1},   // atan2(1,1) -> 45 degrees
	}
	ordered := orderAccessesForRilsa(accesses)
	require.Len(t, ordered, 2)
	assert.Equal(t, "low-bearing", ordered[0].ID)
	assert.Equal(t, "high-bearing", ordered[1].ID)
}

func TestPedestrianCodeByOrigin(t *testing.T) {
	assert.Equal(t, "P1", PedestrianCode(aforo.North))
	assert.Equal(t, "P2", PedestrianCode(aforo.South))
	assert.Equal(t, "P3", PedestrianCode(aforo.West))
	assert.Equal(t, "P4", PedestrianCode(aforo.East))
}

func TestResolveVehicle(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	code, class, ok := Resolve(m, aforo.North, aforo.South, "truck_c2")
	require.True(t, ok)
	assert.Equal(t, "1", code)
	assert.Equal(t, "truck", class)
}

func TestResolvePedestrianIgnoresDest(t *testing.T) {
	m := DefaultRuleMap(StandardAccesses)
	code, class, ok := Resolve(m, aforo.East, aforo.North, "peaton")
	require.True(t, ok)
	assert.Equal(t, "P4", code)
	assert.Equal(t, "pedestrian", class)
}

func TestResolveUnmappablePairIsNotOk(t *testing.T) {
	m := aforo.RilsaRuleMap{} // empty rule map: nothing defined
	_, _, ok := Resolve(m, aforo.North, aforo.South, "car")
	assert.False(t, ok)
}

func TestForbiddenTagging(t *testing.T) {
	forbidden := []aforo.ForbiddenMovement{{RilsaCode: "9_1", Description: "right turn on red prohibited"}}
	desc, isForbidden := Forbidden("9_1", forbidden)
	assert.True(t, isForbidden)
	assert.Equal(t, "right turn on red prohibited", desc)

	_, isForbidden = Forbidden("1", forbidden)
	assert.False(t, isForbidden)
}
