package correction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
	"github.com/aforos-core/rilsa-engine/pkg/rilsa"
)

func fixedNow() time.Time { return time.Unix(1000, 0) }

func baseEvent() aforo.TrajectoryEvent {
	return aforo.TrajectoryEvent{
		TrackID:             "T1",
		Class:               "car",
		OriginCardinal:      aforo.North,
		DestinationCardinal: aforo.South,
		RilsaCode:           "1",
	}
}

func TestApplyDiscard(t *testing.T) {
	e, ok := Apply(baseEvent(), aforo.TrajectoryCorrection{Discard: true}, rilsa.DefaultRuleMap(rilsa.StandardAccesses), "op1", fixedNow)
	require.True(t, ok)
	assert.True(t, e.Discarded)
	require.Len(t, e.Revisions, 1)
	assert.Equal(t, "true", e.Revisions[0].Changes["discarded"])
}

func TestApplyDiscardCombinedWithHideInReportAppliesBoth(t *testing.T) {
	e, ok := Apply(baseEvent(), aforo.TrajectoryCorrection{Discard: true, HideInReport: true}, rilsa.DefaultRuleMap(rilsa.StandardAccesses), "op1", fixedNow)
	require.True(t, ok)
	assert.True(t, e.Discarded)
	assert.True(t, e.HideInReport)
	assert.Equal(t, "true", e.Revisions[0].Changes["discarded"])
	assert.Equal(t, "true", e.Revisions[0].Changes["hideInReport"])
}

func TestApplyHideInReport(t *testing.T) {
	e, ok := Apply(baseEvent(), aforo.TrajectoryCorrection{HideInReport: true}, rilsa.DefaultRuleMap(rilsa.StandardAccesses), "op1", fixedNow)
	require.True(t, ok)
	assert.True(t, e.HideInReport)
	require.Len(t, e.Revisions, 1)
	assert.Equal(t, 1, e.Revisions[0].Version)
	assert.Equal(t, "op1", e.Revisions[0].ChangedBy)
}

func TestApplyNewDestRecomputesCode(t *testing.T) {
	east := aforo.East
	e, ok := Apply(baseEvent(), aforo.TrajectoryCorrection{NewDest: &east}, rilsa.DefaultRuleMap(rilsa.StandardAccesses), "op1", fixedNow)
	require.True(t, ok)
	assert.Equal(t, aforo.East, e.DestinationCardinal)
	assert.Equal(t, "5", e.RilsaCode) // N->E is left turn code 5
	require.Len(t, e.Revisions, 1, "one revision per Apply call, even with multiple fields changed")
	assert.Contains(t, e.Revisions[0].Changes, "destinationCardinal")
	assert.Contains(t, e.Revisions[0].Changes, "rilsaCode")
}

func TestApplyUnmappablePairDropsEvent(t *testing.T) {
	empty := aforo.RilsaRuleMap{}
	east := aforo.East
	_, ok := Apply(baseEvent(), aforo.TrajectoryCorrection{NewDest: &east}, empty, "op1", fixedNow)
	assert.False(t, ok)
}

func TestApplyAlwaysAppendsARevisionEvenWithoutEffectiveChanges(t *testing.T) {
	north := aforo.North
	e, ok := Apply(baseEvent(), aforo.TrajectoryCorrection{NewOrigin: &north}, rilsa.DefaultRuleMap(rilsa.StandardAccesses), "op1", fixedNow)
	require.True(t, ok)
	require.Len(t, e.Revisions, 1)
	assert.Empty(t, e.Revisions[0].Changes)
}

func TestApplyAllSkipsUncorrectedEvents(t *testing.T) {
	events := []aforo.TrajectoryEvent{baseEvent(), {TrackID: "T2", Class: "car", RilsaCode: "2"}}
	out := ApplyAll(events, map[string]aforo.TrajectoryCorrection{}, rilsa.DefaultRuleMap(rilsa.StandardAccesses), "op1", fixedNow)
	assert.Len(t, out, 2)
}

func TestApplyAllDropsUnmappableCorrections(t *testing.T) {
	east := aforo.East
	events := []aforo.TrajectoryEvent{baseEvent()}
	corrections := map[string]aforo.TrajectoryCorrection{"T1": {NewDest: &east}}
	out := ApplyAll(events, corrections, aforo.RilsaRuleMap{}, "op1", fixedNow)
	assert.Empty(t, out)
}
