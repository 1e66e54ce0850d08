package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FinalizationRequest 外部链上监听方上报的终局结果
type FinalizationRequest struct {
	TransactionHash string `json:"transaction_hash" binding:"required"`
	Outcome         string `json:"outcome" binding:"required"`
	BlockNumber     uint64 `json:"block_number"`
	GasUsed         uint64 `json:"gas_used"`
	GasFee          string `json:"gas_fee"`
}

type ReconcileHandler struct {
	reconcile *logic.ReconcileLogic
	rates     money.RateProvider
}

func NewReconcileHandler(svc *Services) *ReconcileHandler {
	return &ReconcileHandler{
		reconcile: svc.Reconcile,
		rates:     svc.Rates,
	}
}

// ReportFinalization 接收终局通知，重复通知同样返回成功
func (h *ReconcileHandler) ReportFinalization(c *gin.Context) {
	var req FinalizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if !authorize(c, logic.ActionReportFinalization, logic.Resource{}) {
		return
	}

	gasFee := decimal.Zero
	if req.GasFee != "" {
		fee, err := decimal.NewFromString(req.GasFee)
		if err != nil || fee.IsNegative() {
			ErrorResponse(c, http.StatusBadRequest, "无效的 gas_fee")
			return
		}
		gasFee = fee
	}

	donation, err := h.reconcile.OnTransactionFinalized(c.Request.Context(), logic.Finalization{
		TransactionHash: req.TransactionHash,
		Outcome:         model.DonationStatus(req.Outcome),
		BlockNumber:     req.BlockNumber,
		GasUsed:         req.GasUsed,
		GasFee:          gasFee,
		Source:          "webhook",
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", donationView(c, h.rates, donation))
}

// RunSweep 手动触发补记
func (h *ReconcileHandler) RunSweep(c *gin.Context) {
	if !authorize(c, logic.ActionRunSweep, logic.Resource{}) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		ErrorResponse(c, http.StatusBadRequest, "无效的 limit")
		return
	}

	applied, err := h.reconcile.Sweep(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", gin.H{"applied": applied})
}
