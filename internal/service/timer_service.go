package service

import (
	"context"
	"sync"
	"time"

	apperrors "studydesk/backend/internal/errors"
	"studydesk/backend/internal/model"
	"studydesk/backend/internal/repository"
	"studydesk/backend/internal/timer"
)

// TimerService hosts one timer engine per user. It is the "host environment"
// for the engine: it delivers tick and visibility stimuli, drains effect
// queues into the snapshot store and the session recorder, and shapes state
// views for the API. All engine access is serialized by one mutex.
type TimerService struct {
	mu       sync.Mutex
	runtimes map[string]*timerRuntime

	sessions *repository.SessionRepository
	store    timer.Store
	clock    func() time.Time
}

type timerRuntime struct {
	engine    *timer.Engine
	persister *timer.Persister
	recorder  *timer.Recorder
	warnings  []string
}

func NewTimerService(sessions *repository.SessionRepository, store timer.Store, clock func() time.Time) *TimerService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TimerService{
		runtimes: make(map[string]*timerRuntime),
		sessions: sessions,
		store:    store,
		clock:    clock,
	}
}

// StateView is what clients render. Display is the mm:ss form of the
// countdown. Warnings are transient: delivered once, then cleared.
type StateView struct {
	Mode                 timer.Mode `json:"mode"`
	RemainingSeconds     int        `json:"remainingSeconds"`
	Display              string     `json:"display"`
	IsRunning            bool       `json:"isRunning"`
	FocusDurationSeconds int        `json:"focusDurationSeconds"`
	BreakDurationSeconds int        `json:"breakDurationSeconds"`
	CycleInProgress      bool       `json:"cycleInProgress"`
	LinkedTaskID         *string    `json:"linkedTaskId,omitempty"`
	ServerTime           time.Time  `json:"serverTime"`
	Warnings             []string   `json:"warnings,omitempty"`
}

// Run drives the 1-second tick for every running engine until ctx is done.
func (s *TimerService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickAll(ctx)
		}
	}
}

func (s *TimerService) tickAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for _, rt := range s.runtimes {
		if !rt.engine.Snapshot().IsRunning {
			continue
		}
		rt.engine.Tick(now)
		s.drainLocked(ctx, rt, now)
	}
}

// GetState applies the foreground re-sync stimulus before reading, so a
// client that was away sees the caught-up countdown immediately.
func (s *TimerService) GetState(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rt := s.runtimeLocked(userID, now)
	s.normalizeLocked(ctx, rt, now)

	view := s.viewLocked(rt, now)
	return &view, nil
}

// normalizeLocked applies the foreground re-sync stimulus and, when the
// catch-up lands exactly on (or past) expiry, runs the processing pass that
// ends the phase. Idempotent: a second call with the same clock reading
// changes nothing.
func (s *TimerService) normalizeLocked(ctx context.Context, rt *timerRuntime, now time.Time) {
	rt.engine.OnVisibilityChange(true, now)
	snap := rt.engine.Snapshot()
	if snap.IsRunning && snap.RemainingSeconds == 0 {
		rt.engine.Tick(now)
	}
	s.drainLocked(ctx, rt, now)
}

func (s *TimerService) Start(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		rt.engine.Start(now)
		return nil
	})
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		rt.engine.Pause()
		return nil
	})
}

func (s *TimerService) Reset(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		rt.engine.Reset(now)
		return nil
	})
}

func (s *TimerService) SwitchMode(ctx context.Context, userID, mode string) (*StateView, *apperrors.APIError) {
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		if err := rt.engine.SwitchMode(timer.Mode(mode)); err != nil {
			return apperrors.BadRequest("invalid_mode", err.Error())
		}
		return nil
	})
}

func (s *TimerService) UpdateSettings(ctx context.Context, userID string, focusSeconds, breakSeconds int) (*StateView, *apperrors.APIError) {
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		if err := rt.engine.ApplyDurations(focusSeconds, breakSeconds); err != nil {
			return apperrors.BadRequest("invalid_duration", err.Error())
		}
		return nil
	})
}

// SetLinkedTask threads an advisory task reference through to future session
// records. The id is not validated against the task table.
func (s *TimerService) SetLinkedTask(ctx context.Context, userID string, taskID *string) (*StateView, *apperrors.APIError) {
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		rt.engine.SetLinkedTask(taskID)
		return nil
	})
}

// ReportVisibility delivers the page-lifecycle stimulus: "hidden" forces a
// durable snapshot, "visible" re-syncs the countdown against the wall clock.
func (s *TimerService) ReportVisibility(ctx context.Context, userID, state string) (*StateView, *apperrors.APIError) {
	if state != "hidden" && state != "visible" {
		return nil, apperrors.BadRequest("invalid_visibility", "state must be hidden or visible")
	}
	return s.transition(ctx, userID, func(rt *timerRuntime, now time.Time) *apperrors.APIError {
		rt.engine.OnVisibilityChange(state == "visible", now)
		return nil
	})
}

// Flush is the unload beacon: a best-effort final snapshot write.
func (s *TimerService) Flush(ctx context.Context, userID string) *apperrors.APIError {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rt := s.runtimeLocked(userID, now)
	rt.persister.Save(rt.engine.Snapshot(), now, true)
	return nil
}

func (s *TimerService) GetHistory(ctx context.Context, userID string, limit int) ([]model.CompletedSession, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sessions, err := s.sessions.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to get history")
	}
	return sessions, nil
}

func (s *TimerService) GetStats(ctx context.Context, userID string) (*model.FocusStats, *apperrors.APIError) {
	stats, err := s.sessions.Stats(ctx, userID, s.clock())
	if err != nil {
		return nil, apperrors.Internal("failed to get stats")
	}
	return stats, nil
}

func (s *TimerService) transition(
	ctx context.Context,
	userID string,
	apply func(rt *timerRuntime, now time.Time) *apperrors.APIError,
) (*StateView, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rt := s.runtimeLocked(userID, now)
	s.normalizeLocked(ctx, rt, now)
	if apiErr := apply(rt, now); apiErr != nil {
		return nil, apiErr
	}
	s.drainLocked(ctx, rt, now)

	view := s.viewLocked(rt, now)
	return &view, nil
}

// runtimeLocked returns the user's runtime, seeding it from the last durable
// snapshot (with catch-up applied) on first touch.
func (s *TimerService) runtimeLocked(userID string, now time.Time) *timerRuntime {
	if rt, ok := s.runtimes[userID]; ok {
		return rt
	}

	persister := timer.NewPersister(s.store, "timer-"+userID)
	rt := &timerRuntime{
		engine:    timer.NewEngine(persister.Load(now)),
		persister: persister,
	}
	rt.recorder = timer.NewRecorder(s.sessions, userID, func(message string) {
		rt.warnings = append(rt.warnings, message)
	})
	s.runtimes[userID] = rt
	return rt
}

// drainLocked executes the effects a transition queued. The engine state is
// already committed; session-write failures only queue a warning.
func (s *TimerService) drainLocked(ctx context.Context, rt *timerRuntime, now time.Time) {
	for _, effect := range rt.engine.DrainEffects() {
		switch e := effect.(type) {
		case timer.PersistState:
			rt.persister.Save(rt.engine.Snapshot(), now, e.Force)
		case timer.CompleteCycle:
			rt.recorder.RecordCompletedFocusCycle(ctx, e.StartedAt, e.EndedAt, e.LinkedTaskID)
		case timer.FlushPartial:
			rt.recorder.FlushPartialFocusProgress(
				ctx, e.Mode, e.CycleStartedAt,
				e.FocusDurationSeconds, e.RemainingSeconds,
				e.EndedAt, e.LinkedTaskID,
			)
		}
	}
}

func (s *TimerService) viewLocked(rt *timerRuntime, now time.Time) StateView {
	snap := rt.engine.Snapshot()
	view := StateView{
		Mode:                 snap.Mode,
		RemainingSeconds:     snap.RemainingSeconds,
		Display:              timer.FormatRemaining(snap.RemainingSeconds),
		IsRunning:            snap.IsRunning,
		FocusDurationSeconds: snap.FocusDurationSeconds,
		BreakDurationSeconds: snap.BreakDurationSeconds,
		CycleInProgress:      snap.CycleStartedAt != nil,
		LinkedTaskID:         snap.LinkedTaskID,
		ServerTime:           now,
		Warnings:             rt.warnings,
	}
	rt.warnings = nil
	return view
}
