// Package timer implements the focus-timer state machine: a work/break
// countdown advanced by host-delivered stimuli (ticks, visibility changes),
// persisted as a durable snapshot and reconciled into completed-session
// records on phase boundaries.
package timer

import (
	"fmt"
	"time"
)

// Effect is a side effect requested by an engine transition. The engine never
// performs I/O itself; the host drains the queue after each stimulus.
type Effect interface {
	effect()
}

// PersistState asks the host to write the current snapshot. Forced writes
// bypass the running-state throttle.
type PersistState struct {
	Force bool
}

// CompleteCycle asks the host to record a focus cycle that ran to completion.
type CompleteCycle struct {
	StartedAt    time.Time
	EndedAt      time.Time
	LinkedTaskID *string
}

// FlushPartial asks the host to record the worked portion of an aborted focus
// cycle. The recorder decides whether the fragment is worth keeping.
type FlushPartial struct {
	Mode                 Mode
	CycleStartedAt       *time.Time
	FocusDurationSeconds int
	RemainingSeconds     int
	EndedAt              time.Time
	LinkedTaskID         *string
}

func (PersistState) effect()  {}
func (CompleteCycle) effect() {}
func (FlushPartial) effect()  {}

// Engine owns one timer's state and applies transitions to it. It is not safe
// for concurrent use; the host serializes stimuli.
type Engine struct {
	snap    Snapshot
	effects []Effect
}

func NewEngine(snap Snapshot) *Engine {
	return &Engine{snap: snap}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	return e.snap
}

// DrainEffects returns queued side effects and clears the queue.
func (e *Engine) DrainEffects() []Effect {
	effects := e.effects
	e.effects = nil
	return effects
}

// Start begins counting down. No-op while already running. Starting a focus
// phase with no cycle in progress opens a new cycle.
func (e *Engine) Start(now time.Time) {
	if e.snap.IsRunning {
		return
	}
	e.snap.IsRunning = true
	e.setLastTick(now)
	if e.snap.Mode == ModeFocus && e.snap.CycleStartedAt == nil {
		ms := now.UnixMilli()
		e.snap.CycleStartedAt = &ms
	}
	e.emit(PersistState{Force: true})
}

// Pause stops the countdown without abandoning the cycle: a paused focus
// cycle still counts as in progress.
func (e *Engine) Pause() {
	if !e.snap.IsRunning {
		return
	}
	e.snap.IsRunning = false
	e.snap.LastTickAt = nil
	e.emit(PersistState{Force: true})
}

// Tick advances the countdown. The delta is derived from the wall clock
// rather than assumed to be one second, so coalesced or delayed ticks still
// account for the full elapsed time. Reaching zero ends the phase.
func (e *Engine) Tick(now time.Time) {
	if !e.snap.IsRunning || e.snap.LastTickAt == nil {
		return
	}
	delta := (now.UnixMilli() - *e.snap.LastTickAt) / 1000
	if delta < 1 {
		delta = 1
	}
	e.snap.RemainingSeconds -= int(delta)
	if e.snap.RemainingSeconds < 0 {
		e.snap.RemainingSeconds = 0
	}
	e.setLastTick(now)

	if e.snap.RemainingSeconds == 0 {
		e.phaseEnd(now)
		return
	}
	e.emit(PersistState{})
}

// OnVisibilityChange is the page-lifecycle stimulus. Going hidden forces a
// snapshot write; coming back while running re-syncs against the wall clock
// so a tab hidden for ten minutes shows ten minutes of countdown immediately.
func (e *Engine) OnVisibilityChange(visible bool, now time.Time) {
	if !visible {
		e.emit(PersistState{Force: true})
		return
	}
	if !e.snap.IsRunning {
		return
	}
	e.snap.CatchUp(now)
	e.emit(PersistState{})
}

// Reset flushes any in-progress focus work through the partial-progress path,
// then restores the current mode's full duration in the idle state.
func (e *Engine) Reset(now time.Time) {
	if e.snap.Mode == ModeFocus && e.snap.CycleStartedAt != nil {
		started := time.UnixMilli(*e.snap.CycleStartedAt)
		e.emit(FlushPartial{
			Mode:                 e.snap.Mode,
			CycleStartedAt:       &started,
			FocusDurationSeconds: e.snap.FocusDurationSeconds,
			RemainingSeconds:     e.snap.RemainingSeconds,
			EndedAt:              now,
			LinkedTaskID:         e.snap.LinkedTaskID,
		})
	}
	e.clearToIdle()
	e.emit(PersistState{Force: true})
}

// ApplyDurations reconfigures both durations and resets the countdown.
// Unlike Reset it deliberately does not flush partial progress: a settings
// change should not produce a surprise session record.
func (e *Engine) ApplyDurations(focusSeconds, breakSeconds int) error {
	if focusSeconds < MinDurationSeconds || focusSeconds > MaxFocusDurationSeconds {
		return fmt.Errorf("focus duration must be between %d and %d seconds", MinDurationSeconds, MaxFocusDurationSeconds)
	}
	if breakSeconds < MinDurationSeconds || breakSeconds > MaxBreakDurationSeconds {
		return fmt.Errorf("break duration must be between %d and %d seconds", MinDurationSeconds, MaxBreakDurationSeconds)
	}
	e.snap.FocusDurationSeconds = focusSeconds
	e.snap.BreakDurationSeconds = breakSeconds
	e.clearToIdle()
	e.emit(PersistState{Force: true})
	return nil
}

// SwitchMode changes between focus and break. Only permitted while idle.
func (e *Engine) SwitchMode(mode Mode) error {
	if mode != ModeFocus && mode != ModeBreak {
		return fmt.Errorf("unknown mode %q", mode)
	}
	if e.snap.IsRunning {
		return fmt.Errorf("cannot switch mode while running")
	}
	e.snap.Mode = mode
	e.snap.RemainingSeconds = e.snap.DurationFor(mode)
	e.snap.CycleStartedAt = nil
	e.emit(PersistState{Force: true})
	return nil
}

// SetLinkedTask attaches (or detaches, with nil) the advisory task reference
// carried through to emitted session records. The id is not validated here.
func (e *Engine) SetLinkedTask(taskID *string) {
	e.snap.LinkedTaskID = taskID
	e.emit(PersistState{Force: true})
}

// phaseEnd handles expiry: hand completed focus work to the recorder, flip
// the mode, reload the countdown, and re-arm only if the engine was still
// running. Expiry while paused leaves the new phase idle.
func (e *Engine) phaseEnd(now time.Time) {
	finished := e.snap.Mode
	wasRunning := e.snap.IsRunning

	if finished == ModeFocus && e.snap.CycleStartedAt != nil {
		e.emit(CompleteCycle{
			StartedAt:    time.UnixMilli(*e.snap.CycleStartedAt),
			EndedAt:      now,
			LinkedTaskID: e.snap.LinkedTaskID,
		})
		e.snap.CycleStartedAt = nil
	}

	next := ModeFocus
	if finished == ModeFocus {
		next = ModeBreak
	}
	e.snap.Mode = next
	e.snap.RemainingSeconds = e.snap.DurationFor(next)

	if wasRunning {
		e.setLastTick(now)
		if next == ModeFocus {
			ms := now.UnixMilli()
			e.snap.CycleStartedAt = &ms
		}
	} else {
		e.snap.LastTickAt = nil
	}
	e.emit(PersistState{Force: true})
}

func (e *Engine) clearToIdle() {
	e.snap.RemainingSeconds = e.snap.DurationFor(e.snap.Mode)
	e.snap.CycleStartedAt = nil
	e.snap.LastTickAt = nil
	e.snap.IsRunning = false
}

func (e *Engine) setLastTick(now time.Time) {
	ms := now.UnixMilli()
	e.snap.LastTickAt = &ms
}

func (e *Engine) emit(effect Effect) {
	e.effects = append(e.effects, effect)
}

// FormatRemaining renders whole seconds as zero-padded mm:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
