package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studydesk/backend/internal/model"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) InsertSession(ctx context.Context, session *model.CompletedSession) error {
	var linkedTaskID interface{}
	if session.LinkedTaskID != nil {
		linkedTaskID = *session.LinkedTaskID
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO focus_sessions (
			id, user_id, started_at, ended_at, duration_minutes, linked_task_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.StartedAt.UTC().Format(time.RFC3339Nano),
		session.EndedAt.UTC().Format(time.RFC3339Nano),
		session.DurationMinutes,
		linkedTaskID,
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert focus session: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, userID string, limit int) ([]model.CompletedSession, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, started_at, ended_at, duration_minutes, linked_task_id, created_at
		 FROM focus_sessions
		 WHERE user_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list focus sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.CompletedSession, 0, limit)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate focus sessions: %w", err)
	}
	return sessions, nil
}

// Stats aggregates the dashboard numbers. "Today" is the UTC day of now.
func (r *SessionRepository) Stats(ctx context.Context, userID string, now time.Time) (*model.FocusStats, error) {
	stats := model.FocusStats{}

	row := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1), COALESCE(SUM(duration_minutes), 0)
		 FROM focus_sessions
		 WHERE user_id = ?`,
		userID,
	)
	if err := row.Scan(&stats.TotalSessions, &stats.TotalFocusMinutes); err != nil {
		return nil, fmt.Errorf("focus totals: %w", err)
	}

	dayStart := now.UTC().Truncate(24 * time.Hour)
	row = r.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0)
		 FROM focus_sessions
		 WHERE user_id = ? AND ended_at >= ?`,
		userID,
		dayStart.Format(time.RFC3339Nano),
	)
	if err := row.Scan(&stats.MinutesToday); err != nil {
		return nil, fmt.Errorf("focus minutes today: %w", err)
	}

	return &stats, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*model.CompletedSession, error) {
	session := model.CompletedSession{}
	var startedAt, endedAt, createdAt string
	var linkedTaskID sql.NullString
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&startedAt,
		&endedAt,
		&session.DurationMinutes,
		&linkedTaskID,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan focus session: %w", err)
	}

	if session.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	if session.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse session ended_at: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	if linkedTaskID.Valid {
		value := linkedTaskID.String
		session.LinkedTaskID = &value
	}
	return &session, nil
}
