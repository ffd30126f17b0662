package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTransitions(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	run := NewRun(Event{Type: EventMergeRequestApproved}, now)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, StatePending, run.State)

	require.Error(t, run.Transition(StateRunning))
	require.NoError(t, run.Transition(StateGated))
	require.NoError(t, run.Transition(StateRunning))
	require.NoError(t, run.Transition(StateSucceeded))
	assert.True(t, run.State.Terminal())

	for _, to := range []State{StatePending, StateGated, StateRunning, StateFailed, StateSkipped} {
		assert.Error(t, run.Transition(to), "terminal state must be final")
	}

	other := NewRun(Event{Type: "push"}, now)
	assert.NotEqual(t, run.ID, other.ID)
	require.NoError(t, other.Transition(StateSkipped))

	run.FinishedAt = now.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, run.Duration(now))
}

func TestRunDurationInProgress(t *testing.T) {
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	run := NewRun(Event{Type: EventProtectedBranchPush}, start)
	assert.Equal(t, 5*time.Minute, run.Duration(start.Add(5*time.Minute)))
}

func TestEventGated(t *testing.T) {
	assert.True(t, EventMergeRequestApproved.Gated())
	assert.True(t, EventProtectedBranchPush.Gated())
	assert.False(t, EventType("schedule").Gated())

	evt := Event{Type: EventMergeRequestApproved, SourceBranch: "feature/x", TargetBranch: "main"}
	assert.Equal(t, "feature/x", evt.Branch())
}

func TestRunReport(t *testing.T) {
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	run := NewRun(Event{Type: EventProtectedBranchPush, SourceBranch: "main", CommitID: "4f2a9c1"}, start)
	run.State = StateSucceeded
	run.Engine = EnginePublish
	run.Publish = &PublishResult{Commit: "4f2a9c1", Published: []PackageVersion{{Name: "core", Version: "1.3.0"}}}

	buf, err := json.Marshal(run)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"commit":"4f2a9c1"`)
	assert.Contains(t, string(buf), `"engine":"publish"`)
	assert.NotContains(t, string(buf), `"bump"`)

	var decoded Run
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Equal(t, run.Publish.Published, decoded.Publish.Published)
}
