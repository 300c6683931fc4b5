package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func persistEffects(effects []Effect) []PersistState {
	var out []PersistState
	for _, e := range effects {
		if p, ok := e.(PersistState); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestStartOpensFocusCycle(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))

	snap := e.Snapshot()
	assert.True(t, snap.IsRunning)
	require.NotNil(t, snap.LastTickAt)
	assert.Equal(t, at(0).UnixMilli(), *snap.LastTickAt)
	require.NotNil(t, snap.CycleStartedAt)
	assert.Equal(t, at(0).UnixMilli(), *snap.CycleStartedAt)

	persists := persistEffects(e.DrainEffects())
	require.Len(t, persists, 1)
	assert.True(t, persists[0].Force)
}

func TestStartIsNoOpWhileRunning(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.DrainEffects()

	e.Start(at(10))
	snap := e.Snapshot()
	assert.Equal(t, at(0).UnixMilli(), *snap.CycleStartedAt)
	assert.Empty(t, e.DrainEffects())
}

func TestStartInBreakModeOpensNoCycle(t *testing.T) {
	snap := DefaultSnapshot()
	snap.Mode = ModeBreak
	snap.RemainingSeconds = snap.BreakDurationSeconds

	e := NewEngine(snap)
	e.Start(at(0))
	assert.Nil(t, e.Snapshot().CycleStartedAt)
}

func TestPauseKeepsCycleInProgress(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.Tick(at(1))
	e.Pause()

	snap := e.Snapshot()
	assert.False(t, snap.IsRunning)
	assert.Nil(t, snap.LastTickAt)
	assert.NotNil(t, snap.CycleStartedAt, "paused focus cycle still counts as in progress")
}

func TestTickUsesWallClockDelta(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))

	// A coalesced tick 3.5s late accounts for 3 whole seconds.
	e.Tick(t0.Add(3500 * time.Millisecond))
	snap := e.Snapshot()
	assert.Equal(t, DefaultFocusDurationSeconds-3, snap.RemainingSeconds)
	assert.Equal(t, t0.Add(3500*time.Millisecond).UnixMilli(), *snap.LastTickAt)

	// A tick arriving early still counts at least one second.
	e.Tick(t0.Add(3600 * time.Millisecond))
	assert.Equal(t, DefaultFocusDurationSeconds-4, e.Snapshot().RemainingSeconds)
}

func TestRemainingStaysWithinBounds(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	for now := 1; now <= DefaultFocusDurationSeconds+10; now += 7 {
		e.Tick(at(now))
		snap := e.Snapshot()
		assert.GreaterOrEqual(t, snap.RemainingSeconds, 0)
		assert.LessOrEqual(t, snap.RemainingSeconds, snap.DurationFor(snap.Mode))
	}
}

func TestFocusCompletionFlipsToBreak(t *testing.T) {
	// Scenario: 25 minute focus runs to completion with no pauses.
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.DrainEffects()

	e.Tick(at(1500))

	snap := e.Snapshot()
	assert.Equal(t, ModeBreak, snap.Mode)
	assert.Equal(t, snap.BreakDurationSeconds, snap.RemainingSeconds)
	assert.True(t, snap.IsRunning, "running timer re-arms into the new phase")
	assert.Nil(t, snap.CycleStartedAt, "break phase has no focus cycle")
	require.NotNil(t, snap.LastTickAt)
	assert.Equal(t, at(1500).UnixMilli(), *snap.LastTickAt)

	var completions []CompleteCycle
	for _, effect := range e.DrainEffects() {
		if c, ok := effect.(CompleteCycle); ok {
			completions = append(completions, c)
		}
	}
	require.Len(t, completions, 1)
	assert.Equal(t, at(0), completions[0].StartedAt.UTC())
	assert.Equal(t, at(1500), completions[0].EndedAt.UTC())
}

func TestBreakCompletionOpensNewFocusCycle(t *testing.T) {
	snap := DefaultSnapshot()
	snap.Mode = ModeBreak
	snap.RemainingSeconds = snap.BreakDurationSeconds

	e := NewEngine(snap)
	e.Start(at(0))
	e.Tick(at(snap.BreakDurationSeconds))

	got := e.Snapshot()
	assert.Equal(t, ModeFocus, got.Mode)
	assert.Equal(t, got.FocusDurationSeconds, got.RemainingSeconds)
	require.NotNil(t, got.CycleStartedAt, "re-armed focus phase opens a new cycle")
	assert.Equal(t, at(snap.BreakDurationSeconds).UnixMilli(), *got.CycleStartedAt)
}

func TestResetFlushesPartialProgress(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.Tick(at(90))
	e.DrainEffects()

	e.Reset(at(90))

	snap := e.Snapshot()
	assert.False(t, snap.IsRunning)
	assert.Equal(t, snap.FocusDurationSeconds, snap.RemainingSeconds)
	assert.Nil(t, snap.CycleStartedAt)
	assert.Nil(t, snap.LastTickAt)

	var flushes []FlushPartial
	for _, effect := range e.DrainEffects() {
		if f, ok := effect.(FlushPartial); ok {
			flushes = append(flushes, f)
		}
	}
	require.Len(t, flushes, 1)
	assert.Equal(t, ModeFocus, flushes[0].Mode)
	assert.Equal(t, DefaultFocusDurationSeconds, flushes[0].FocusDurationSeconds)
	assert.Equal(t, DefaultFocusDurationSeconds-90, flushes[0].RemainingSeconds)
	require.NotNil(t, flushes[0].CycleStartedAt)
	assert.Equal(t, at(0), flushes[0].CycleStartedAt.UTC())
}

func TestResetWithoutCycleEmitsNoFlush(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Reset(at(0))

	for _, effect := range e.DrainEffects() {
		_, isFlush := effect.(FlushPartial)
		assert.False(t, isFlush)
	}
}

func TestApplyDurationsDoesNotFlush(t *testing.T) {
	// Changing settings mid-cycle deliberately discards the progress without
	// emitting a session record, unlike Reset.
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.Tick(at(120))
	e.DrainEffects()

	require.NoError(t, e.ApplyDurations(30*60, 10*60))

	snap := e.Snapshot()
	assert.Equal(t, 30*60, snap.FocusDurationSeconds)
	assert.Equal(t, 10*60, snap.BreakDurationSeconds)
	assert.Equal(t, 30*60, snap.RemainingSeconds)
	assert.False(t, snap.IsRunning)
	assert.Nil(t, snap.CycleStartedAt)

	for _, effect := range e.DrainEffects() {
		_, isFlush := effect.(FlushPartial)
		assert.False(t, isFlush)
		_, isComplete := effect.(CompleteCycle)
		assert.False(t, isComplete)
	}
}

func TestApplyDurationsRejectsOutOfBounds(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	before := e.Snapshot()

	assert.Error(t, e.ApplyDurations(59, 300))
	assert.Error(t, e.ApplyDurations(7201, 300))
	assert.Error(t, e.ApplyDurations(1500, 59))
	assert.Error(t, e.ApplyDurations(1500, 3601))

	assert.Equal(t, before, e.Snapshot(), "state unchanged until a valid value is supplied")
	assert.Empty(t, e.DrainEffects())
}

func TestSwitchModeOnlyWhileIdle(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	assert.Error(t, e.SwitchMode(ModeBreak))

	e.Pause()
	require.NoError(t, e.SwitchMode(ModeBreak))

	snap := e.Snapshot()
	assert.Equal(t, ModeBreak, snap.Mode)
	assert.Equal(t, snap.BreakDurationSeconds, snap.RemainingSeconds)
	assert.Nil(t, snap.CycleStartedAt)

	assert.Error(t, e.SwitchMode(Mode("lunch")))
}

func TestVisibilityHiddenForcesPersist(t *testing.T) {
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.DrainEffects()

	e.OnVisibilityChange(false, at(5))
	persists := persistEffects(e.DrainEffects())
	require.Len(t, persists, 1)
	assert.True(t, persists[0].Force)
}

func TestVisibilityResyncCatchesUp(t *testing.T) {
	// Tab hidden for 10 minutes: the countdown reflects it the moment the
	// tab is visible again, not on the next tick.
	e := NewEngine(DefaultSnapshot())
	e.Start(at(0))
	e.DrainEffects()

	e.OnVisibilityChange(true, at(600))
	snap := e.Snapshot()
	assert.Equal(t, DefaultFocusDurationSeconds-600, snap.RemainingSeconds)
	assert.Equal(t, at(600).UnixMilli(), *snap.LastTickAt)

	// Same stimulus again with the same clock is a no-op.
	e.OnVisibilityChange(true, at(600))
	assert.Equal(t, DefaultFocusDurationSeconds-600, e.Snapshot().RemainingSeconds)
}

func TestLinkedTaskThreadsThroughCompletion(t *testing.T) {
	taskID := "task-42"
	e := NewEngine(DefaultSnapshot())
	e.SetLinkedTask(&taskID)
	e.Start(at(0))
	e.DrainEffects()

	e.Tick(at(1500))

	var completion *CompleteCycle
	for _, effect := range e.DrainEffects() {
		if c, ok := effect.(CompleteCycle); ok {
			completion = &c
		}
	}
	require.NotNil(t, completion)
	require.NotNil(t, completion.LinkedTaskID)
	assert.Equal(t, taskID, *completion.LinkedTaskID)
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "01:30", FormatRemaining(90))
	assert.Equal(t, "00:00", FormatRemaining(0))
	assert.Equal(t, "25:00", FormatRemaining(1500))
	assert.Equal(t, "120:00", FormatRemaining(7200))
	assert.Equal(t, "00:00", FormatRemaining(-5))
}
