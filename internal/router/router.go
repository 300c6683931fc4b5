package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studydesk/backend/internal/handler"
	"studydesk/backend/internal/middleware"
	"studydesk/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	timerStreamHandler *handler.TimerStreamHandler,
	taskHandler *handler.TaskHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// The stream endpoint authenticates via query token inside the handler.
	api.GET("/timer/ws", timerStreamHandler.Stream)

	timer := api.Group("/timer")
	timer.Use(middleware.Auth(authService))
	timer.GET("/state", timerHandler.GetState)
	timer.POST("/start", timerHandler.Start)
	timer.POST("/pause", timerHandler.Pause)
	timer.POST("/reset", timerHandler.Reset)
	timer.POST("/mode", timerHandler.SwitchMode)
	timer.PUT("/settings", timerHandler.UpdateSettings)
	timer.PUT("/task", timerHandler.LinkTask)
	timer.POST("/visibility", timerHandler.ReportVisibility)
	timer.POST("/flush", timerHandler.Flush)

	focus := api.Group("/focus")
	focus.Use(middleware.Auth(authService))
	focus.GET("/history", timerHandler.GetHistory)
	focus.GET("/stats", timerHandler.GetStats)

	tasks := api.Group("/tasks")
	tasks.Use(middleware.Auth(authService))
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.PATCH("/:id", taskHandler.SetCompleted)

	return engine
}
