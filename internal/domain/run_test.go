package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemState_CanTransition(t *testing.T) {
	happy := []ItemState{
		StatePending,
		StateStage1Running,
		StateStage1Degraded,
		StateAwaitingBarrier,
		StateStage2Complete,
		StateAggregated,
	}
	for i := 0; i+1 < len(happy); i++ {
		assert.True(t, happy[i].CanTransition(happy[i+1]), "%s -> %s", happy[i], happy[i+1])
	}

	assert.True(t, StatePending.CanTransition(StateDropped))
	assert.False(t, StateStage1Running.CanTransition(StateDropped), "items are only dropped before Stage1")
	assert.False(t, StateStage1Complete.CanTransition(StateStage2Complete), "the barrier cannot be skipped")
	assert.False(t, StateAggregated.CanTransition(StatePending))
	assert.True(t, StateAggregated.Terminal())
	assert.True(t, StateDropped.Terminal())
	assert.False(t, StateAwaitingBarrier.Terminal())
}

func TestItemState_String(t *testing.T) {
	assert.Equal(t, "STAGE1_COMPLETE(degraded)", StateStage1Degraded.String())
	assert.Equal(t, "ItemState(99)", ItemState(99).String())

	b, err := StateAggregated.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "AGGREGATED", string(b))
}

func TestWorkflowRun(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	run := NewWorkflowRun("run-1", []Item{{ID: "a"}, {ID: "b"}}, now)

	s, ok := run.State("a")
	require.True(t, ok)
	assert.Equal(t, StatePending, s)

	require.NoError(t, run.Transition("a", StateStage1Running))
	err := run.Transition("a", StateAggregated)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = run.Transition("missing", StateStage1Running)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	run.Drop("https://youtu.be/xxxxxxxxxxx")
	states := run.States()
	assert.Len(t, states, 3)
	assert.Equal(t, StateDropped, states["https://youtu.be/xxxxxxxxxxx"])

	run.Errors.Merge(NewFetchFailure("https://youtu.be/xxxxxxxxxxx", ErrItemNotFound))
	report := run.Report(now.Add(time.Second))
	assert.Equal(t, "run-1", report.RunID)
	assert.True(t, report.Degraded)
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, "No items were analyzed.", report.Summary)
	assert.Equal(t, now, report.StartedAt)
}
