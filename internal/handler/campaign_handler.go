package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MilestoneRequest 里程碑参数
type MilestoneRequest struct {
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	TargetAmount string    `json:"target_amount" binding:"required"`
	Deadline     time.Time `json:"deadline" binding:"required"`
}

// CreateCampaignRequest 创建活动参数
type CreateCampaignRequest struct {
	Title        string             `json:"title" binding:"required"`
	Description  string             `json:"description"`
	CreatorId    string             `json:"creator_id"`
	Currency     string             `json:"currency" binding:"required"`
	TargetAmount string             `json:"target_amount" binding:"required"`
	StartDate    *time.Time         `json:"start_date"`
	EndDate      *time.Time         `json:"end_date"`
	Milestones   []MilestoneRequest `json:"milestones"`
}

// StatusRequest 状态变更参数
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CampaignHandler struct {
	campaigns  *logic.CampaignLogic
	milestones *logic.MilestoneLogic
	donations  *logic.DonationLogic
	rates      money.RateProvider
}

func NewCampaignHandler(svc *Services) *CampaignHandler {
	return &CampaignHandler{
		campaigns:  svc.Campaigns,
		milestones: svc.Milestones,
		donations:  svc.Donations,
		rates:      svc.Rates,
	}
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if !authorize(c, logic.ActionCreateCampaign, logic.Resource{}) {
		return
	}

	// 只有管理员可以代他人创建
	actor := CurrentActor(c)
	if req.CreatorId == "" || actor.Role != logic.RoleAdmin {
		req.CreatorId = actor.ID
	}

	target, err := money.Parse(req.TargetAmount, req.Currency)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	milestones, err := parseMilestones(req.Milestones)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	campaign := &model.CampaignModel{
		Title:        req.Title,
		Description:  req.Description,
		CreatorId:    req.CreatorId,
		Currency:     target.Currency,
		TargetAmount: target.Amount,
		EndDate:      req.EndDate,
		Milestones:   milestones,
	}
	if req.StartDate != nil {
		campaign.StartDate = *req.StartDate
	}

	if err := h.campaigns.CreateCampaign(c.Request.Context(), campaign); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "活动创建成功", campaign)
}

// GetCampaigns 获取活动列表
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	campaigns, total, err := h.campaigns.GetCampaigns(c.Request.Context(), model.CampaignStatus(c.Query("status")), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PageResult{
		Items:      campaigns,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetCampaign 获取活动详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, err := h.campaigns.GetCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", campaign)
}

// GetCampaignDonations 获取活动的捐赠记录
func (h *CampaignHandler) GetCampaignDonations(c *gin.Context) {
	ctx := c.Request.Context()
	campaign, err := h.campaigns.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	donations, total, err := h.donations.ListByCampaign(ctx, campaign.Id, model.DonationStatus(c.Query("status")), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PageResult{
		Items:      donationViews(c, h.rates, donations),
		Pagination: newPagination(page, pageSize, total),
	})
}

// UpdateCampaignStatus 修改活动状态
func (h *CampaignHandler) UpdateCampaignStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	campaign, err := h.campaigns.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if !authorize(c, logic.ActionUpdateCampaign, logic.Resource{OwnerID: campaign.CreatorId}) {
		return
	}

	campaign, err = h.campaigns.UpdateStatus(ctx, campaign.Id, model.CampaignStatus(req.Status))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动状态已更新", campaign)
}

// SaveMilestones 整体替换活动里程碑
func (h *CampaignHandler) SaveMilestones(c *gin.Context) {
	var req struct {
		Milestones []MilestoneRequest `json:"milestones"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	campaign, err := h.campaigns.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if !authorize(c, logic.ActionEditMilestones, logic.Resource{OwnerID: campaign.CreatorId}) {
		return
	}

	milestones, err := parseMilestones(req.Milestones)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := h.milestones.SaveMilestones(ctx, campaign.Id, milestones)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "里程碑已保存", saved)
}

// UpdateMilestoneStatus 提交或审核里程碑
func (h *CampaignHandler) UpdateMilestoneStatus(c *gin.Context) {
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil || order < 1 {
		ErrorResponse(c, http.StatusBadRequest, "无效的里程碑序号")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	status := model.MilestoneStatus(req.Status)

	ctx := c.Request.Context()
	campaign, err := h.campaigns.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	// 创建者提交，审核与放款由管理员操作
	action := logic.ActionReviewMilestone
	if status == model.MilestoneStatusSubmitted {
		action = logic.ActionSubmitMilestone
	}
	if !authorize(c, action, logic.Resource{OwnerID: campaign.CreatorId}) {
		return
	}

	milestone, err := h.milestones.UpdateMilestoneStatus(ctx, campaign.Id, order, status)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "里程碑状态已更新", milestone)
}

func parseMilestones(reqs []MilestoneRequest) ([]model.CampaignMilestoneModel, error) {
	milestones := make([]model.CampaignMilestoneModel, 0, len(reqs))
	for _, r := range reqs {
		target, err := decimal.NewFromString(r.TargetAmount)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, model.CampaignMilestoneModel{
			Title:        r.Title,
			Description:  r.Description,
			TargetAmount: target,
			Deadline:     r.Deadline,
		})
	}
	return milestones, nil
}
