package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"airalert-service/internal/logging"
	"airalert-service/internal/models"
)

// Store is the read surface the handlers need.
type Store interface {
	ListRecentReports(ctx context.Context, limit int) ([]models.Report, error)
	ListActiveAlerts(ctx context.Context) ([]models.Alert, error)
	GetSubscription(ctx context.Context, recordID int) (models.Subscription, error)
}

// Runner triggers an immediate pipeline run.
type Runner interface {
	TriggerRun()
}

type Handler struct {
	store  Store
	runner Runner
	logger *logging.Logger
}

func NewHandler(store Store, runner Runner, logger *logging.Logger) *Handler {
	return &Handler{store: store, runner: runner, logger: logger}
}

func (h *Handler) GetReports(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	reports, err := h.store.ListRecentReports(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("Failed to list reports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) GetActiveAlerts(c *gin.Context) {
	alerts, err := h.store.ListActiveAlerts(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list active alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list active alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) GetSubscription(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
		return
	}

	sub, err := h.store.GetSubscription(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorf("Failed to get subscription %d: %v", id, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) TriggerRun(c *gin.Context) {
	h.runner.TriggerRun()
	h.logger.Infof("Manual pipeline run triggered")
	c.JSON(http.StatusAccepted, gin.H{"message": "Run triggered"})
}
