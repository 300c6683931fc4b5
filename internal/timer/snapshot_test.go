package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	started := at(0).UnixMilli()
	lastTick := at(42).UnixMilli()
	taskID := "task-7"
	snap := Snapshot{
		Mode:                 ModeFocus,
		RemainingSeconds:     1458,
		IsRunning:            true,
		FocusDurationSeconds: 1500,
		BreakDurationSeconds: 300,
		CycleStartedAt:       &started,
		LastTickAt:           &lastTick,
		LinkedTaskID:         &taskID,
	}

	payload, err := snap.Encode()
	require.NoError(t, err)

	got := DecodeSnapshot(payload)
	assert.Equal(t, snap, got)
}

func TestDecodeMalformedPayloadYieldsDefaults(t *testing.T) {
	for _, payload := range []string{"", "not json", "[1,2,3]", `"string"`} {
		assert.Equal(t, DefaultSnapshot(), DecodeSnapshot(payload), "payload %q", payload)
	}
}

func TestDecodeOutOfBoundDurationFallsBackPerField(t *testing.T) {
	// An absurd focus duration is rejected while the rest of the payload,
	// including the valid break duration, is preserved.
	got := DecodeSnapshot(`{
		"mode": "break",
		"remainingSeconds": 200,
		"isRunning": false,
		"focusDurationSeconds": 999999,
		"breakDurationSeconds": 600
	}`)

	assert.Equal(t, DefaultFocusDurationSeconds, got.FocusDurationSeconds)
	assert.Equal(t, 600, got.BreakDurationSeconds)
	assert.Equal(t, ModeBreak, got.Mode)
	assert.Equal(t, 200, got.RemainingSeconds)
}

func TestDecodeWrongTypeFallsBackPerField(t *testing.T) {
	got := DecodeSnapshot(`{
		"mode": "break",
		"remainingSeconds": "soon",
		"isRunning": "yes",
		"focusDurationSeconds": 1200,
		"breakDurationSeconds": 900
	}`)

	assert.Equal(t, ModeBreak, got.Mode)
	assert.Equal(t, 1200, got.FocusDurationSeconds)
	assert.Equal(t, 900, got.BreakDurationSeconds)
	assert.False(t, got.IsRunning)
	assert.Equal(t, 900, got.RemainingSeconds, "unreadable remaining reloads the mode's duration")
}

func TestDecodeClampsRemainingToModeDuration(t *testing.T) {
	got := DecodeSnapshot(`{"mode":"focus","remainingSeconds":4000,"focusDurationSeconds":1500,"breakDurationSeconds":300}`)
	assert.Equal(t, 1500, got.RemainingSeconds)

	got = DecodeSnapshot(`{"mode":"focus","remainingSeconds":-10,"focusDurationSeconds":1500,"breakDurationSeconds":300}`)
	assert.Equal(t, 0, got.RemainingSeconds)
}

func TestDecodeRepairsRunningWithoutLastTick(t *testing.T) {
	got := DecodeSnapshot(`{"mode":"focus","remainingSeconds":100,"isRunning":true,"focusDurationSeconds":1500,"breakDurationSeconds":300}`)
	assert.False(t, got.IsRunning, "running without a tick instant is not recoverable as running")
}

func TestDecodeDropsCycleOutsideFocus(t *testing.T) {
	got := DecodeSnapshot(`{"mode":"break","remainingSeconds":100,"cycleStartedAt":12345,"focusDurationSeconds":1500,"breakDurationSeconds":300}`)
	assert.Nil(t, got.CycleStartedAt)
}

func TestCatchUpAfterHiddenTab(t *testing.T) {
	// Scenario: 25 minute focus started at t=0, rehydrated at t=400s.
	lastTick := at(0).UnixMilli()
	snap := Snapshot{
		Mode:                 ModeFocus,
		RemainingSeconds:     1500,
		IsRunning:            true,
		FocusDurationSeconds: 1500,
		BreakDurationSeconds: 300,
		LastTickAt:           &lastTick,
	}

	snap.CatchUp(at(400))
	assert.Equal(t, 1100, snap.RemainingSeconds)
	assert.Equal(t, at(400).UnixMilli(), *snap.LastTickAt)
}

func TestCatchUpIsIdempotent(t *testing.T) {
	lastTick := at(0).UnixMilli()
	snap := Snapshot{
		Mode:                 ModeFocus,
		RemainingSeconds:     1500,
		IsRunning:            true,
		FocusDurationSeconds: 1500,
		BreakDurationSeconds: 300,
		LastTickAt:           &lastTick,
	}

	snap.CatchUp(at(400))
	first := snap.RemainingSeconds
	snap.CatchUp(at(400))
	assert.Equal(t, first, snap.RemainingSeconds, "second application with the same clock observes zero elapsed")
}

func TestCatchUpFloorsAtZeroAndStaysRunning(t *testing.T) {
	lastTick := at(0).UnixMilli()
	snap := Snapshot{
		Mode:                 ModeFocus,
		RemainingSeconds:     1500,
		IsRunning:            true,
		FocusDurationSeconds: 1500,
		BreakDurationSeconds: 300,
		LastTickAt:           &lastTick,
	}

	// Hidden far past expiry: a zero-remaining running snapshot is valid for
	// one engine cycle and ends the phase on the next tick.
	snap.CatchUp(at(5000))
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.True(t, snap.IsRunning)
	assert.Equal(t, at(5000).UnixMilli(), *snap.LastTickAt)
}

func TestCatchUpIgnoresPaused(t *testing.T) {
	snap := DefaultSnapshot()
	snap.CatchUp(at(100) /* paused, no last tick */)
	assert.Equal(t, DefaultFocusDurationSeconds, snap.RemainingSeconds)
}

func TestDecodeTruncatesSubSecondElapsed(t *testing.T) {
	lastTick := at(0).UnixMilli()
	snap := Snapshot{
		Mode:                 ModeFocus,
		RemainingSeconds:     1500,
		IsRunning:            true,
		FocusDurationSeconds: 1500,
		BreakDurationSeconds: 300,
		LastTickAt:           &lastTick,
	}

	snap.CatchUp(t0.Add(900 * time.Millisecond))
	assert.Equal(t, 1500, snap.RemainingSeconds, "under one whole second is not yet elapsed")
}
