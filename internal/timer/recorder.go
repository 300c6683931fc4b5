package timer

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"studydesk/backend/internal/model"
)

// SessionSink receives completed-session records. The timer only ever writes.
type SessionSink interface {
	InsertSession(ctx context.Context, session *model.CompletedSession) error
}

// Recorder turns phase boundaries into CompletedSession rows. Writes are
// fire-and-forget relative to the engine: a failure surfaces only through the
// warn callback, never as a rolled-back transition.
type Recorder struct {
	sink   SessionSink
	userID string
	warn   func(message string)
}

func NewRecorder(sink SessionSink, userID string, warn func(message string)) *Recorder {
	if warn == nil {
		warn = func(string) {}
	}
	return &Recorder{sink: sink, userID: userID, warn: warn}
}

// RecordCompletedFocusCycle records a focus cycle that ran to completion.
// Duration is rounded to whole minutes with a floor of one: a cycle that
// completed at all represents at least a minute of focus even if clock skew
// says otherwise.
func (r *Recorder) RecordCompletedFocusCycle(ctx context.Context, startedAt, endedAt time.Time, linkedTaskID *string) {
	minutes := int(math.Round(endedAt.Sub(startedAt).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	r.insert(ctx, startedAt, endedAt, minutes, linkedTaskID)
}

// FlushPartialFocusProgress records the worked portion of an aborted focus
// cycle. Fragments under one whole minute are discarded silently so resets
// and accidental starts do not pollute the history. When the cycle start is
// unknown a synthetic one is derived from the worked time.
func (r *Recorder) FlushPartialFocusProgress(
	ctx context.Context,
	mode Mode,
	cycleStartedAt *time.Time,
	focusDurationSeconds, remainingSeconds int,
	endedAt time.Time,
	linkedTaskID *string,
) {
	if mode != ModeFocus {
		return
	}
	workedSeconds := clampInt(focusDurationSeconds-remainingSeconds, 0, focusDurationSeconds)
	workedMinutes := workedSeconds / 60
	if workedMinutes < 1 {
		return
	}

	startedAt := endedAt.Add(-time.Duration(workedMinutes) * time.Minute)
	if cycleStartedAt != nil {
		startedAt = *cycleStartedAt
	}
	r.insert(ctx, startedAt, endedAt, workedMinutes, linkedTaskID)
}

func (r *Recorder) insert(ctx context.Context, startedAt, endedAt time.Time, minutes int, linkedTaskID *string) {
	session := &model.CompletedSession{
		ID:              uuid.NewString(),
		UserID:          r.userID,
		StartedAt:       startedAt.UTC(),
		EndedAt:         endedAt.UTC(),
		DurationMinutes: minutes,
		LinkedTaskID:    linkedTaskID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.sink.InsertSession(ctx, session); err != nil {
		r.warn("could not save your focus session; the timer keeps working")
	}
}
