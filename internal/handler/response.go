package handler

import (
	"errors"
	"net/http"

	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/money"
	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Pagination 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// PageResult 分页列表
type PageResult struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	page, pageSize = logic.NormalizePage(page, pageSize)
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// HandleError 按业务错误类型返回对应状态码
func HandleError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, status, "服务器内部错误")
		return
	}
	ErrorResponse(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, logic.ErrInvalidAmount),
		errors.Is(err, logic.ErrInvalidDonation),
		errors.Is(err, logic.ErrInvalidCampaign),
		errors.Is(err, logic.ErrCurrencyMismatch),
		errors.Is(err, money.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, logic.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, logic.ErrDonationNotFound),
		errors.Is(err, logic.ErrCampaignNotFound),
		errors.Is(err, logic.ErrMilestoneNotFound),
		errors.Is(err, logic.ErrUnknownTransaction):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrInvalidTransition),
		errors.Is(err, logic.ErrAggregateUpdateConflict):
		return http.StatusConflict
	case errors.Is(err, logic.ErrCampaignNotAccepting):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
