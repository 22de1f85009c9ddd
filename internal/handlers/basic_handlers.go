package handlers

import (
	"net/http"

	"chainvault-backend/internal/config"
	"chainvault-backend/internal/db"
	"chainvault-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler liveness and dependency health
// GET /health
func HealthHandler(c *gin.Context) {
	dbStatus := "ok"
	if db.DB != nil {
		if err := db.HealthCheck(); err != nil {
			dbStatus = "unhealthy"
		}
	} else {
		dbStatus = "disabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"chain_id": config.AppConfig.Chain.ChainID,
		"database": dbStatus,
	})
}

// WebSocketHandler bridges gin to the push service upgrade
// GET /ws
func WebSocketHandler(push *services.WebSocketPushService) gin.HandlerFunc {
	return func(c *gin.Context) {
		push.HandleWebSocket(c.Writer, c.Request)
	}
}
