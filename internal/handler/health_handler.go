package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymate/studyplan-api/internal/models"
	"github.com/studymate/studyplan-api/internal/service"
)

type healthChecker interface {
	Check(ctx context.Context) *models.HealthReport
}

// HealthHandler exposes the liveness and readiness probe.
type HealthHandler struct {
	service healthChecker
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(svc *service.HealthService) *HealthHandler {
	return &HealthHandler{service: svc}
}

// Check godoc
// @Summary Service health report
// @Description Probes the database, cache, and model gateway. Responds 503 only when the database is unreachable; degraded dependencies keep a 200.
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthReport
// @Failure 503 {object} models.HealthReport
// @Router /healthz [get]
func (h *HealthHandler) Check(c *gin.Context) {
	report := h.service.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status == models.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
