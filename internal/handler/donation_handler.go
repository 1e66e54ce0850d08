package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const anonymousDonor = "anonymous"

// CreateDonationRequest 钱包广播交易后提交的捐赠
type CreateDonationRequest struct {
	TransactionHash string `json:"transaction_hash" binding:"required"`
	DonorId         string `json:"donor_id"`
	CampaignId      string `json:"campaign_id" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	Currency        string `json:"currency" binding:"required"`
	Network         string `json:"network" binding:"required"`
	IsAnonymous     bool   `json:"is_anonymous"`
	Message         string `json:"message"`
	DocumentRef     string `json:"document_ref"`
}

// DonationResponse 捐赠记录视图，usd_amount 在读取时按当前汇率计算
type DonationResponse struct {
	model.DonationModel
	UsdAmount *decimal.Decimal `json:"usd_amount,omitempty"`
}

type DonationHandler struct {
	donations *logic.DonationLogic
	rates     money.RateProvider
}

func NewDonationHandler(svc *Services) *DonationHandler {
	return &DonationHandler{
		donations: svc.Donations,
		rates:     svc.Rates,
	}
}

// CreateDonation 记录待确认捐赠，重复提交返回已有记录
func (h *DonationHandler) CreateDonation(c *gin.Context) {
	var req CreateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := money.Parse(req.Amount, req.Currency)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	donorId := strings.TrimSpace(req.DonorId)
	if donorId == "" {
		donorId = CurrentActor(c).ID
	}
	if !authorize(c, logic.ActionCreateDonation, logic.Resource{OwnerID: donorId}) {
		return
	}

	donation, err := h.donations.Create(c.Request.Context(), logic.DraftDonation{
		TransactionHash: req.TransactionHash,
		DonorId:         donorId,
		CampaignId:      req.CampaignId,
		Amount:          amount,
		Network:         req.Network,
		IsAnonymous:     req.IsAnonymous,
		Message:         req.Message,
		DocumentRef:     req.DocumentRef,
	})
	if errors.Is(err, logic.ErrDuplicateTransaction) && donation != nil {
		SuccessResponse(c, http.StatusOK, "交易已记录", donationView(c, h.rates, donation))
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "捐赠已记录，等待链上确认", donationView(c, h.rates, donation))
}

// GetDonation 按交易哈希查询
func (h *DonationHandler) GetDonation(c *gin.Context) {
	donation, err := h.donations.Get(c.Request.Context(), c.Param("tx_hash"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", donationView(c, h.rates, donation))
}

// GenerateReceipt 手动开具税务收据
func (h *DonationHandler) GenerateReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	donation, err := h.donations.Get(ctx, c.Param("tx_hash"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if !authorize(c, logic.ActionGenerateReceipt, logic.Resource{OwnerID: donation.DonorId}) {
		return
	}

	donation, err = h.donations.GenerateTaxReceipt(ctx, donation.TransactionHash)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !donation.TaxReceiptGenerated {
		ErrorResponse(c, http.StatusUnprocessableEntity, "捐赠未确认或未达到开票门槛")
		return
	}
	SuccessResponse(c, http.StatusOK, "收据已开具", donationView(c, h.rates, donation))
}

// donationView 匿名捐赠仅对本人和管理员展示捐赠人
func donationView(c *gin.Context, rates money.RateProvider, d *model.DonationModel) DonationResponse {
	resp := DonationResponse{DonationModel: *d}
	if d.IsAnonymous && !logic.CanPerform(CurrentActor(c), logic.ActionViewDonation, logic.Resource{OwnerID: d.DonorId}) {
		resp.DonorId = anonymousDonor
	}
	if usd, err := money.USDValue(c.Request.Context(), rates, d.Money()); err == nil {
		resp.UsdAmount = &usd
	}
	return resp
}

func donationViews(c *gin.Context, rates money.RateProvider, donations []model.DonationModel) []DonationResponse {
	views := make([]DonationResponse, 0, len(donations))
	for i := range donations {
		views = append(views, donationView(c, rates, &donations[i]))
	}
	return views
}
