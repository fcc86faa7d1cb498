package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	service string
	dryRun  bool
}

func NewHealthHandler(service string, dryRun bool) *HealthHandler {
	return &HealthHandler{service: service, dryRun: dryRun}
}

// Healthz godoc
// @Summary Health check
// @Description Reports liveness and whether Slack calls are being skipped (dry run).
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: h.service,
		DryRun:  h.dryRun,
	})
}
