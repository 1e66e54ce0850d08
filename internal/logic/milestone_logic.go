package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blues/donation/internal/database"
	"github.com/blues/donation/internal/model"
	"gorm.io/gorm"
)

// MilestoneLogic 里程碑业务逻辑
type MilestoneLogic struct {
	db *gorm.DB
}

// NewMilestoneLogic 创建里程碑业务逻辑
func NewMilestoneLogic(db *gorm.DB) *MilestoneLogic {
	return &MilestoneLogic{db: db}
}

// SaveMilestones 整体替换活动的里程碑，序号按列表位置重排，状态重置为待提交
func (m *MilestoneLogic) SaveMilestones(ctx context.Context, campaignId string, milestones []model.CampaignMilestoneModel) ([]model.CampaignMilestoneModel, error) {
	if err := validateMilestones(milestones); err != nil {
		return nil, err
	}

	err := database.Transaction(ctx, m.db, func(txCtx context.Context) error {
		var campaign model.CampaignModel
		if err := database.Conn(txCtx, m.db).Select("id").First(&campaign, "id = ?", campaignId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCampaignNotFound
			}
			return err
		}

		if err := database.Conn(txCtx, m.db).
			Where("campaign_id = ?", campaignId).
			Delete(&model.CampaignMilestoneModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear milestones: %w", err)
		}

		for i := range milestones {
			milestones[i].Id = 0
			milestones[i].CampaignId = campaignId
			milestones[i].Order = i + 1
			milestones[i].Status = model.MilestoneStatusPending
		}
		if len(milestones) == 0 {
			return nil
		}
		if err := database.Conn(txCtx, m.db).Create(&milestones).Error; err != nil {
			return fmt.Errorf("failed to save milestones: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestones, nil
}

// GetMilestone 按活动和序号获取里程碑
func (m *MilestoneLogic) GetMilestone(ctx context.Context, campaignId string, order int) (*model.CampaignMilestoneModel, error) {
	var milestone model.CampaignMilestoneModel
	err := database.Conn(ctx, m.db).
		Where("campaign_id = ? AND sort_order = ?", campaignId, order).
		First(&milestone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return &milestone, nil
}

// UpdateMilestoneStatus 里程碑状态流转
func (m *MilestoneLogic) UpdateMilestoneStatus(ctx context.Context, campaignId string, order int, status model.MilestoneStatus) (*model.CampaignMilestoneModel, error) {
	milestone, err := m.GetMilestone(ctx, campaignId, order)
	if err != nil {
		return nil, err
	}
	if !milestone.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, milestone.Status, status)
	}

	result := database.Conn(ctx, m.db).Model(&model.CampaignMilestoneModel{}).
		Where("id = ? AND status = ?", milestone.Id, milestone.Status).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update milestone status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: 里程碑状态已变更", ErrInvalidTransition)
	}

	milestone.Status = status
	return milestone, nil
}

// validateMilestones 验证里程碑数据
func validateMilestones(milestones []model.CampaignMilestoneModel) error {
	for i, ms := range milestones {
		if strings.TrimSpace(ms.Title) == "" {
			return fmt.Errorf("%w: 第%d个里程碑标题不能为空", ErrInvalidCampaign, i+1)
		}
		if !ms.TargetAmount.IsPositive() {
			return fmt.Errorf("%w: 第%d个里程碑目标金额必须大于0", ErrInvalidCampaign, i+1)
		}
		if ms.Deadline.IsZero() {
			return fmt.Errorf("%w: 第%d个里程碑截止时间不能为空", ErrInvalidCampaign, i+1)
		}
	}
	return nil
}
