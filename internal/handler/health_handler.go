package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	chains  HealthReporter
	monitor StatusReporter
}

func NewHealthHandler(svc *Services) *HealthHandler {
	return &HealthHandler{chains: svc.Chains, monitor: svc.Monitor}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"service": "donation-service",
	}
	if h.chains != nil {
		resp["chains"] = h.chains.GetHealthStatus(c.Request.Context())
	}
	if h.monitor != nil {
		resp["monitor"] = h.monitor.GetStatus()
	}
	c.JSON(http.StatusOK, resp)
}
