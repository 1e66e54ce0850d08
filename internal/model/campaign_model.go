package model

import (
	"time"

	"github.com/blues/donation/internal/money"
	"github.com/shopspring/decimal"
)

// CampaignStatus 活动状态
type CampaignStatus string

const (
	CampaignStatusDraft           CampaignStatus = "draft"            // 草稿
	CampaignStatusPendingApproval CampaignStatus = "pending_approval" // 待审核
	CampaignStatusActive          CampaignStatus = "active"           // 进行中
	CampaignStatusPaused          CampaignStatus = "paused"           // 暂停
	CampaignStatusCompleted       CampaignStatus = "completed"        // 已达成
	CampaignStatusCancelled       CampaignStatus = "cancelled"        // 已取消
	CampaignStatusUnderReview     CampaignStatus = "under_review"     // 复核中
)

// Valid 是否为已知状态
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusPendingApproval, CampaignStatusActive, CampaignStatusPaused,
		CampaignStatusCompleted, CampaignStatusCancelled, CampaignStatusUnderReview:
		return true
	}
	return false
}

// CampaignModel 捐赠活动及其汇总
type CampaignModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	CreatorId   string `json:"creator_id" gorm:"size:64;not null;index"`

	// 汇总信息
	Currency     money.Currency  `json:"currency" gorm:"size:8;not null"`
	TargetAmount decimal.Decimal `json:"target_amount" gorm:"type:decimal(36,18);not null"`
	RaisedAmount decimal.Decimal `json:"raised_amount" gorm:"type:decimal(36,18);not null;default:0"`
	DonorCount   int64           `json:"donor_count" gorm:"not null;default:0"` // 确认捐赠次数，非去重人数

	// 时间信息
	StartDate time.Time  `json:"start_date" gorm:"not null"`
	EndDate   *time.Time `json:"end_date"`

	Status  CampaignStatus `json:"status" gorm:"size:24;not null;default:'draft';index"`
	Version int64          `json:"version" gorm:"not null;default:0"` // 乐观锁

	Milestones []CampaignMilestoneModel `json:"milestones,omitempty" gorm:"foreignKey:CampaignId"`
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}

// CanAcceptDonation 进行中、未到截止时间且未达目标
func (c *CampaignModel) CanAcceptDonation(now time.Time) bool {
	if c.Status != CampaignStatusActive {
		return false
	}
	if c.RaisedAmount.GreaterThanOrEqual(c.TargetAmount) {
		return false
	}
	return c.EndDate == nil || c.EndDate.After(now)
}

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:           {CampaignStatusPendingApproval, CampaignStatusCancelled},
	CampaignStatusPendingApproval: {CampaignStatusActive, CampaignStatusDraft, CampaignStatusCancelled},
	CampaignStatusActive:          {CampaignStatusPaused, CampaignStatusUnderReview, CampaignStatusCancelled},
	CampaignStatusPaused:          {CampaignStatusActive, CampaignStatusUnderReview, CampaignStatusCancelled},
	CampaignStatusUnderReview:     {CampaignStatusActive, CampaignStatusPaused, CampaignStatusCancelled},
}

// CanTransitionTo 管理端状态流转校验；completed 只由汇总写入产生，completed 与 cancelled 为终态
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
