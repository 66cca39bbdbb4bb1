package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airalert-service/internal/config"
	"airalert-service/internal/logging"
)

// NewRouter builds the operational HTTP surface: health, recent reports,
// open alerts, manual pipeline trigger, and the websocket event feed.
func NewRouter(h *Handler, hub *Hub, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.Default()

	base := r.Group(cfg.API.BasePath)
	{
		base.GET("/reports", h.GetReports)
		base.GET("/alerts/active", h.GetActiveAlerts)
		base.GET("/subscriptions/:id", h.GetSubscription)
		base.POST("/run", h.TriggerRun)
	}

	r.GET("/ws/events", hub.HandleWS(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
