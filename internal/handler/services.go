package handler

import (
	"context"

	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/money"
)

// HealthReporter 链客户端健康状态
type HealthReporter interface {
	GetHealthStatus(ctx context.Context) map[string]interface{}
}

// StatusReporter 后台组件运行状态
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

// Services 接口层依赖
type Services struct {
	Donations  *logic.DonationLogic
	Campaigns  *logic.CampaignLogic
	Milestones *logic.MilestoneLogic
	Reconcile  *logic.ReconcileLogic
	Analytics  *logic.CachedAnalytics
	Rates      money.RateProvider
	Chains     HealthReporter // 可选
	Monitor    StatusReporter // 可选
}
