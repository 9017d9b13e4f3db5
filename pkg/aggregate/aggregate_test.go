package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

func exitAt(h, m, s int) time.Time {
	return time.Date(2026, 7, 29, h, m, s, 0, time.UTC)
}

func TestIntervalStartFloorsTo15Minutes(t *testing.T) {
	a := New(15)
	got := a.IntervalStart(exitAt(10, 37, 42))
	assert.Equal(t, exitAt(10, 30, 0), got)
}

func TestAddEventIncrementsBucket(t *testing.T) {
	a := New(15)
	a.AddEvent(aforo.TrajectoryEvent{TrackID: "T1", Class: "car", RilsaCode: "1", TimestampExit: exitAt(10, 5, 0)})
	counts := a.GetIntervalData("ds1", exitAt(10, 0, 0))
	require.Len(t, counts, 1)
	assert.Equal(t, "1", counts[0].RilsaCode)
	assert.Equal(t, 1, counts[0].CountsByClass["car"])
	assert.Equal(t, 1, counts[0].Total())
}

func TestAddEventIsIdempotent(t *testing.T) {
	a := New(15)
	e := aforo.TrajectoryEvent{TrackID: "T1", Class: "car", RilsaCode: "1", TimestampExit: exitAt(10, 5, 0)}
	a.AddEvent(e)
	a.AddEvent(e)
	counts := a.GetIntervalData("ds1", exitAt(10, 0, 0))
	require.Len(t, counts, 1)
	assert.Equal(t, 1, counts[0].CountsByClass["car"])
}

func TestAddEventSkipsDiscarded(t *testing.T) {
	a := New(15)
	a.AddEvent(aforo.TrajectoryEvent{TrackID: "T1", Class: "car", RilsaCode: "1", Discarded: true, TimestampExit: exitAt(10, 5, 0)})
	assert.Empty(t, a.GetIntervals())
}

func TestRebuildFromEventsReplaysDeterministically(t *testing.T) {
	events := []aforo.TrajectoryEvent{
		{TrackID: "T1", Class: "car", RilsaCode: "1", TimestampExit: exitAt(10, 5, 0)},
		{TrackID: "T2", Class: "truck", RilsaCode: "1", TimestampExit: exitAt(10, 6, 0)},
		{TrackID: "T3", Class: "car", RilsaCode: "2", TimestampExit: exitAt(10, 20, 0)},
	}
	a := New(15)
	a.RebuildFromEvents(events)
	all := a.AllCounts("ds1")
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].RilsaCode)
	assert.Equal(t, 1, all[0].CountsByClass["car"])
	assert.Equal(t, 1, all[0].CountsByClass["truck"])
	assert.Equal(t, "2", all[1].RilsaCode)
}

func TestGetIntervalsSortedAscending(t *testing.T) {
	a := New(15)
	a.AddEvent(aforo.TrajectoryEvent{TrackID: "T1", Class: "car", RilsaCode: "1", TimestampExit: exitAt(11, 5, 0)})
	a.AddEvent(aforo.TrajectoryEvent{TrackID: "T2", Class: "car", RilsaCode: "1", TimestampExit: exitAt(10, 5, 0)})
	intervals := a.GetIntervals()
	require.Len(t, intervals, 2)
	assert.True(t, intervals[0].Before(intervals[1]))
}

func TestRebuildClearsPriorState(t *testing.T) {
	a := New(15)
	a.AddEvent(aforo.TrajectoryEvent{TrackID: "T1", Class: "car", RilsaCode: "1", TimestampExit: exitAt(10, 5, 0)})
	a.RebuildFromEvents(nil)
	assert.Empty(t, a.GetIntervals())
}
