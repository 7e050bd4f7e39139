package http

import (
	"context"
	"net/http"
	"time"

	"splitstream/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker   *monitoring.HealthChecker
	startTime time.Time
	timeout   time.Duration
}

func NewHealthHandler(checker *monitoring.HealthChecker, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		checker:   checker,
		startTime: startTime,
		timeout:   2 * time.Second,
	}
}

func (h *HealthHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := h.checker.CheckLiveness(ctx)
	c.JSON(statusCode(status), gin.H{
		"status":    status.Status,
		"timestamp": status.Timestamp,
		"uptime":    time.Since(h.startTime).String(),
		"checks":    status.Checks,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := h.checker.CheckReadiness(ctx)
	c.JSON(statusCode(status), status)
}

func statusCode(status monitoring.HealthStatus) int {
	if status.Healthy() {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
