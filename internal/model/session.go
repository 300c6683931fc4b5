package model

import "time"

// CompletedSession is one finished (or aborted-but-counted) focus cycle.
// Rows are write-only from the timer's perspective; the dashboard reads them.
type CompletedSession struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	DurationMinutes int       `json:"durationMinutes"`
	LinkedTaskID    *string   `json:"linkedTaskId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// FocusStats is the aggregate view shown on the dashboard.
type FocusStats struct {
	TotalSessions     int `json:"totalSessions"`
	TotalFocusMinutes int `json:"totalFocusMinutes"`
	MinutesToday      int `json:"minutesToday"`
}
