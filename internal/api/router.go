package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"audiojoin-manager/internal/config"
	"audiojoin-manager/internal/manager"
)

// SetupRouter sets up the Gin router with all routes
func SetupRouter(cfg *config.Config, sessionManager *manager.SessionManager) *gin.Engine {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORS.AllowedOrigins,
		AllowMethods:     cfg.Server.CORS.AllowedMethods,
		AllowHeaders:     cfg.Server.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Create handler
	handler := NewHandler(sessionManager)

	// Health check
	router.GET("/", handler.HealthCheck)

	// Session routes
	sessions := router.Group("/sessions")
	{
		sessions.GET("", handler.ListSessions)
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:session_id", handler.GetSession)
		sessions.DELETE("/:session_id", handler.DeleteSession)
		sessions.POST("/:session_id/mount", handler.MountSession)
		sessions.PUT("/:session_id/locks", handler.UpdateLocks)
		sessions.PUT("/:session_id/settings", handler.UpdateSettings)
		sessions.PUT("/:session_id/selections", handler.UpdateSelections)
		sessions.GET("/:session_id/decisions", handler.GetDecisions)
		sessions.GET("/:session_id/notifications", handler.GetNotifications)
		sessions.GET("/:session_id/logs", handler.GetSessionLogs)
		sessions.GET("/:session_id/audio", handler.GetAudioState)
		sessions.POST("/:session_id/audio/leave", handler.LeaveAudio)
		sessions.POST("/:session_id/prompts/:prompt_id/resolve", handler.ResolvePrompt)
	}

	// Meeting routes
	meetings := router.Group("/meetings")
	{
		meetings.GET("", handler.ListMeetings)
		meetings.GET("/:meeting_id/breakouts", handler.ListBreakoutRooms)
		meetings.POST("/:meeting_id/breakouts", handler.AddBreakoutRoom)
		meetings.PUT("/:meeting_id/breakouts", handler.SetBreakoutRooms)
		meetings.DELETE("/:meeting_id/breakouts/:room_id", handler.RemoveBreakoutRoom)
	}

	// Stateless policy evaluation
	router.POST("/decide", handler.Decide)

	// WebSocket routes
	router.GET("/ws/sessions/:session_id", handler.WebSocketSession)
	router.GET("/ws/session", handler.WebSocketWatcher)

	// Additional utility routes
	router.GET("/usage", handler.GetUsageStats)
	router.GET("/ws/stats", handler.GetWebSocketStats)

	return router
}
