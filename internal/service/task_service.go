package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "studydesk/backend/internal/errors"
	"studydesk/backend/internal/model"
	"studydesk/backend/internal/repository"
)

// TaskService backs the task list the timer's linked-task picker reads from.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

func (s *TaskService) Create(ctx context.Context, userID, title string, dueAt *time.Time) (*model.Task, *apperrors.APIError) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.BadRequest("invalid_title", "title is required")
	}
	if len(title) > 500 {
		return nil, apperrors.BadRequest("invalid_title", "title is too long")
	}

	now := time.Now().UTC()
	task := model.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		DueAt:     dueAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, apperrors.Internal("failed to create task")
	}
	return &task, nil
}

func (s *TaskService) List(ctx context.Context, userID string) ([]model.Task, *apperrors.APIError) {
	tasks, err := s.taskRepo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list tasks")
	}
	return tasks, nil
}

func (s *TaskService) SetCompleted(ctx context.Context, userID, taskID string, completed bool) (*model.Task, *apperrors.APIError) {
	task, err := s.taskRepo.Get(ctx, userID, taskID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("task_not_found", "task not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get task")
	}

	task.Completed = completed
	task.UpdatedAt = time.Now().UTC()
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, apperrors.Internal("failed to update task")
	}
	return task, nil
}
