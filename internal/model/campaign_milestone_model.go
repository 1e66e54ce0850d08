package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MilestoneStatus 里程碑状态
type MilestoneStatus string

const (
	MilestoneStatusPending       MilestoneStatus = "pending"        // 待提交
	MilestoneStatusSubmitted     MilestoneStatus = "submitted"      // 已提交
	MilestoneStatusVerified      MilestoneStatus = "verified"       // 已验证
	MilestoneStatusRejected      MilestoneStatus = "rejected"       // 被驳回
	MilestoneStatusFundsReleased MilestoneStatus = "funds_released" // 已放款
)

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestoneStatusPending:   {MilestoneStatusSubmitted},
	MilestoneStatusSubmitted: {MilestoneStatusVerified, MilestoneStatusRejected},
	MilestoneStatusRejected:  {MilestoneStatusSubmitted},
	MilestoneStatusVerified:  {MilestoneStatusFundsReleased},
}

// CanTransitionTo 里程碑状态流转校验
func (s MilestoneStatus) CanTransitionTo(next MilestoneStatus) bool {
	for _, allowed := range milestoneTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CampaignMilestoneModel 活动里程碑
type CampaignMilestoneModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId   string          `json:"campaign_id" gorm:"size:36;not null;index"`
	Order        int             `json:"order" gorm:"column:sort_order;not null"` // 每次保存按序号重排
	Title        string          `json:"title" gorm:"not null"`
	Description  string          `json:"description" gorm:"type:text"`
	TargetAmount decimal.Decimal `json:"target_amount" gorm:"type:decimal(36,18);not null"`
	Deadline     time.Time       `json:"deadline" gorm:"not null"`
	Status       MilestoneStatus `json:"status" gorm:"size:24;not null;default:'pending'"`
}

// TableName 自定义表名
func (CampaignMilestoneModel) TableName() string {
	return "campaign_milestone"
}
