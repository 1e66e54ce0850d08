package handler

import (
	"net/http"

	"github.com/blues/donation/internal/logic"
	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	analytics *logic.CachedAnalytics
}

func NewStatsHandler(svc *Services) *StatsHandler {
	return &StatsHandler{analytics: svc.Analytics}
}

// GetCampaignStats 活动统计
func (h *StatsHandler) GetCampaignStats(c *gin.Context) {
	stats, err := h.analytics.CampaignStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", stats)
}

// GetPlatformStats 全平台统计
func (h *StatsHandler) GetPlatformStats(c *gin.Context) {
	stats, err := h.analytics.PlatformStats(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", stats)
}
