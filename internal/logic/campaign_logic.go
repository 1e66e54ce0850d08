package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/donation/internal/database"
	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/metrics"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultAggregateRetries = 5

// CampaignLogic 活动业务逻辑
type CampaignLogic struct {
	db      *gorm.DB
	retries int
}

// NewCampaignLogic 创建活动业务逻辑；retries 为汇总更新的乐观锁重试次数
func NewCampaignLogic(db *gorm.DB, retries int) *CampaignLogic {
	if retries <= 0 {
		retries = defaultAggregateRetries
	}
	return &CampaignLogic{db: db, retries: retries}
}

// CreateCampaign 创建活动，初始为草稿
func (c *CampaignLogic) CreateCampaign(ctx context.Context, campaign *model.CampaignModel) error {
	if err := c.validateCampaign(campaign); err != nil {
		return err
	}

	campaign.Id = uuid.NewString()
	campaign.Status = model.CampaignStatusDraft
	campaign.RaisedAmount = decimal.Zero
	campaign.DonorCount = 0
	campaign.Version = 0
	if campaign.StartDate.IsZero() {
		campaign.StartDate = time.Now()
	}
	for i := range campaign.Milestones {
		campaign.Milestones[i].Order = i + 1
		campaign.Milestones[i].Status = model.MilestoneStatusPending
	}

	if err := database.Conn(ctx, c.db).Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetCampaign 获取活动详情及里程碑
func (c *CampaignLogic) GetCampaign(ctx context.Context, id string) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	err := database.Conn(ctx, c.db).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign %s: %w", id, err)
	}
	return &campaign, nil
}

// GetCampaigns 活动列表，status 为空时不过滤
func (c *CampaignLogic) GetCampaigns(ctx context.Context, status model.CampaignStatus, page, pageSize int) ([]model.CampaignModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	query := database.Conn(ctx, c.db).Model(&model.CampaignModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	var campaigns []model.CampaignModel
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, total, nil
}

// UpdateStatus 管理端修改活动状态
func (c *CampaignLogic) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) (*model.CampaignModel, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: 未知状态 %s", ErrInvalidCampaign, status)
	}

	for attempt := 0; attempt < c.retries; attempt++ {
		campaign, err := c.GetCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		if !campaign.Status.CanTransitionTo(status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, campaign.Status, status)
		}

		result := database.Conn(ctx, c.db).Model(&model.CampaignModel{}).
			Where("id = ? AND version = ?", id, campaign.Version).
			Updates(map[string]interface{}{
				"status":  status,
				"version": campaign.Version + 1,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update campaign status: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			logger.Info("Campaign %s status %s -> %s", id, campaign.Status, status)
			return c.GetCampaign(ctx, id)
		}
	}
	return nil, ErrAggregateUpdateConflict
}

// ApplyConfirmedDonation 将一笔已确认捐赠计入活动汇总
// 读取-修改-按版本号写回，版本不一致时重新读取重试
// 读取加行锁，可重复读隔离级别下重试也能看到最新提交的版本
func (c *CampaignLogic) ApplyConfirmedDonation(ctx context.Context, campaignId string, amount money.Money, donorId string) (*model.CampaignModel, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	for attempt := 0; attempt < c.retries; attempt++ {
		var campaign model.CampaignModel
		err := database.Conn(ctx, c.db).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&campaign, "id = ?", campaignId).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCampaignNotFound
			}
			return nil, fmt.Errorf("failed to load campaign %s: %w", campaignId, err)
		}
		if campaign.Currency != amount.Currency {
			return nil, fmt.Errorf("%w: 活动币种 %s, 捐赠币种 %s", ErrCurrencyMismatch, campaign.Currency, amount.Currency)
		}

		raised := campaign.RaisedAmount.Add(amount.Amount)
		status := campaign.Status
		if raised.GreaterThanOrEqual(campaign.TargetAmount) {
			status = model.CampaignStatusCompleted
		}

		result := database.Conn(ctx, c.db).Model(&model.CampaignModel{}).
			Where("id = ? AND version = ?", campaignId, campaign.Version).
			Updates(map[string]interface{}{
				"raised_amount": raised,
				"donor_count":   campaign.DonorCount + 1,
				"status":        status,
				"version":       campaign.Version + 1,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to apply donation to campaign %s: %w", campaignId, result.Error)
		}
		if result.RowsAffected == 1 {
			campaign.RaisedAmount = raised
			campaign.DonorCount++
			campaign.Status = status
			campaign.Version++
			if status == model.CampaignStatusCompleted {
				logger.Info("Campaign %s reached target: raised=%s target=%s", campaignId, raised, campaign.TargetAmount)
			}
			logger.Debug("Applied %s from donor %s to campaign %s", amount, donorId, campaignId)
			return &campaign, nil
		}

		metrics.AggregateConflicts.Inc()
		logger.Warn("Campaign %s version conflict at v%d, retry %d/%d", campaignId, campaign.Version, attempt+1, c.retries)
	}

	return nil, ErrAggregateUpdateConflict
}

// validateCampaign 验证活动数据
func (c *CampaignLogic) validateCampaign(campaign *model.CampaignModel) error {
	if strings.TrimSpace(campaign.Title) == "" {
		return fmt.Errorf("%w: 活动标题不能为空", ErrInvalidCampaign)
	}
	if strings.TrimSpace(campaign.CreatorId) == "" {
		return fmt.Errorf("%w: 创建者不能为空", ErrInvalidCampaign)
	}
	if !campaign.Currency.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidCampaign, money.ErrUnsupportedCurrency)
	}
	if !campaign.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: 目标金额必须大于0", ErrInvalidCampaign)
	}
	if campaign.EndDate != nil && !campaign.StartDate.IsZero() && !campaign.EndDate.After(campaign.StartDate) {
		return fmt.Errorf("%w: 结束时间必须晚于开始时间", ErrInvalidCampaign)
	}
	return validateMilestones(campaign.Milestones)
}
