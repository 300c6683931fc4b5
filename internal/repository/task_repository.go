package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studydesk/backend/internal/model"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	var dueAt interface{}
	if task.DueAt != nil {
		dueAt = task.DueAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO tasks (id, user_id, title, completed, due_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.UserID,
		task.Title,
		task.Completed,
		dueAt,
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		task.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, title, completed, due_at, created_at, updated_at
		 FROM tasks
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, title, completed, due_at, created_at, updated_at
		 FROM tasks
		 WHERE user_id = ? AND id = ?`,
		userID,
		taskID,
	)
	return scanTask(row)
}

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	var dueAt interface{}
	if task.DueAt != nil {
		dueAt = task.DueAt.UTC().Format(time.RFC3339Nano)
	}

	result, err := r.db.ExecContext(
		ctx,
		`UPDATE tasks
		 SET title = ?, completed = ?, due_at = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		task.Title,
		task.Completed,
		dueAt,
		task.UpdatedAt.UTC().Format(time.RFC3339Nano),
		task.UserID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(s scanner) (*model.Task, error) {
	task := model.Task{}
	var dueAt sql.NullString
	var createdAt, updatedAt string
	err := s.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Completed,
		&dueAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if dueAt.Valid {
		parsed, parseErr := parseTime(dueAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse task due_at: %w", parseErr)
		}
		task.DueAt = &parsed
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse task created_at: %w", err)
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse task updated_at: %w", err)
	}
	return &task, nil
}
