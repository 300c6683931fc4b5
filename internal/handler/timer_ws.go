package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	apperrors "studydesk/backend/internal/errors"
	"studydesk/backend/internal/service"
)

// TimerStreamHandler pushes the timer state over a websocket once per second,
// so the countdown a client renders never drifts from the engine. Browser
// WebSocket clients cannot set an Authorization header, so the bearer token
// rides in the query string and goes through the same parse path as the
// middleware.
type TimerStreamHandler struct {
	authService    *service.AuthService
	timerService   *service.TimerService
	originPatterns []string
}

func NewTimerStreamHandler(authService *service.AuthService, timerService *service.TimerService, corsOrigins []string) *TimerStreamHandler {
	patterns := make([]string, 0, len(corsOrigins))
	for _, origin := range corsOrigins {
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		if host != "" && host != "*" {
			patterns = append(patterns, host)
		}
	}
	return &TimerStreamHandler{
		authService:    authService,
		timerService:   timerService,
		originPatterns: patterns,
	}
}

func (h *TimerStreamHandler) Stream(c *gin.Context) {
	userID, apiErr := h.authService.ParseToken(c.Query("token"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept already wrote the HTTP error response.
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// The client never sends application frames; CloseRead keeps control
	// frames flowing and cancels the context when the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if err := h.writeState(ctx, conn, userID); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (h *TimerStreamHandler) writeState(ctx context.Context, conn *websocket.Conn, userID string) error {
	state, apiErr := h.timerService.GetState(ctx, userID)
	if apiErr != nil {
		return apperrors.Internal(apiErr.Message)
	}

	payload, err := json.Marshal(gin.H{"state": state})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
