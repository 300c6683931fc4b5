package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studydesk/backend/internal/middleware"
	"studydesk/backend/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskService
}

type createTaskRequest struct {
	Title string     `json:"title"`
	DueAt *time.Time `json:"dueAt"`
}

type completeTaskRequest struct {
	Completed bool `json:"completed"`
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	task, apiErr := h.taskService.Create(c.Request.Context(), middleware.UserID(c), req.Title, req.DueAt)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *TaskHandler) List(c *gin.Context) {
	tasks, apiErr := h.taskService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) SetCompleted(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	task, apiErr := h.taskService.SetCompleted(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Completed)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}
