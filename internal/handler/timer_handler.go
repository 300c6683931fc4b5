package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studydesk/backend/internal/middleware"
	"studydesk/backend/internal/service"
)

type TimerHandler struct {
	timerService *service.TimerService
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

type updateSettingsRequest struct {
	FocusDurationSeconds int `json:"focusDurationSeconds"`
	BreakDurationSeconds int `json:"breakDurationSeconds"`
}

type linkTaskRequest struct {
	TaskID *string `json:"taskId"`
}

type visibilityRequest struct {
	State string `json:"state"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	state, apiErr := h.timerService.GetState(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Start(c *gin.Context) {
	state, apiErr := h.timerService.Start(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Pause(c *gin.Context) {
	state, apiErr := h.timerService.Pause(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Reset(c *gin.Context) {
	state, apiErr := h.timerService.Reset(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) SwitchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.SwitchMode(c.Request.Context(), middleware.UserID(c), req.Mode)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.UpdateSettings(
		c.Request.Context(),
		middleware.UserID(c),
		req.FocusDurationSeconds,
		req.BreakDurationSeconds,
	)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) LinkTask(c *gin.Context) {
	var req linkTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.SetLinkedTask(c.Request.Context(), middleware.UserID(c), req.TaskID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) ReportVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, apiErr := h.timerService.ReportVisibility(c.Request.Context(), middleware.UserID(c), req.State)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Flush is the unload beacon; it has no response body worth reading because
// the sender is typically already navigating away.
func (h *TimerHandler) Flush(c *gin.Context) {
	if apiErr := h.timerService.Flush(c.Request.Context(), middleware.UserID(c)); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TimerHandler) GetHistory(c *gin.Context) {
	limit := 50
	if rawLimit := c.Query("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	sessions, apiErr := h.timerService.GetHistory(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *TimerHandler) GetStats(c *gin.Context) {
	stats, apiErr := h.timerService.GetStats(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
