package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/Dhoini/comics-billing/pkg/res"

	"github.com/gin-gonic/gin"
)

// HealthCheck проверяет одну зависимость.
type HealthCheck func(ctx context.Context) error

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler отвечает на GET /health.
type HealthHandler struct {
	checks map[string]HealthCheck
	log    *logger.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, log *logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(h.checks))
		}
		if err := check(ctx); err != nil {
			h.log.Warnw("Health check failed", "check", name, "error", err)
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}
	res.JsonResponse(c.Writer, resp, status)
}
