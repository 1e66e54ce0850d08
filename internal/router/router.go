package router

import (
	"time"

	"github.com/blues/donation/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var allowHeaders = []string{
	"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
	handler.HeaderActorID, handler.HeaderActorRole,
}

func Setup(svc *handler.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    allowHeaders,
		MaxAge:          12 * time.Hour,
	}))
	r.Use(handler.ActorMiddleware())

	healthHandler := handler.NewHealthHandler(svc)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	donationHandler := handler.NewDonationHandler(svc)
	campaignHandler := handler.NewCampaignHandler(svc)
	statsHandler := handler.NewStatsHandler(svc)
	reconcileHandler := handler.NewReconcileHandler(svc)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		donations := v1.Group("/donations")
		{
			donations.POST("", donationHandler.CreateDonation)
			donations.GET("/:tx_hash", donationHandler.GetDonation)
			donations.POST("/:tx_hash/receipt", donationHandler.GenerateReceipt)
		}

		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/donations", campaignHandler.GetCampaignDonations)
			campaigns.GET("/:id/stats", statsHandler.GetCampaignStats)
			campaigns.PUT("/:id/status", campaignHandler.UpdateCampaignStatus)
			campaigns.PUT("/:id/milestones", campaignHandler.SaveMilestones)
			campaigns.PUT("/:id/milestones/:order/status", campaignHandler.UpdateMilestoneStatus)
		}

		v1.GET("/stats", statsHandler.GetPlatformStats)
		v1.POST("/chain/finalizations", reconcileHandler.ReportFinalization)
		v1.POST("/reconcile/sweep", reconcileHandler.RunSweep)
	}

	return r
}
