package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/blues/donation/internal/database"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stats 已确认捐赠的统计
// TotalDonations 为捐赠次数，UniqueDonorCount 为去重后的捐赠人数，两者不可混用
type Stats struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalDonations   int64           `json:"total_donations"`
	AverageDonation  decimal.Decimal `json:"average_donation"`
	UniqueDonorCount int64           `json:"unique_donor_count"`
}

// CampaignStats 单个活动的统计
type CampaignStats struct {
	CampaignId string         `json:"campaign_id"`
	Currency   money.Currency `json:"currency"`
	Stats
}

// CurrencyStats 平台按币种的统计
type CurrencyStats struct {
	Currency money.Currency `json:"currency"`
	Stats
}

// PlatformStats 全平台统计；TotalAmount 为各币种原值直接相加，按币种的明细见 ByCurrency
type PlatformStats struct {
	Stats
	ByCurrency []CurrencyStats `json:"by_currency"`
}

// AnalyticsLogic 统计业务逻辑，每次调用都重新计算，不修改任何数据
type AnalyticsLogic struct {
	db *gorm.DB
}

// NewAnalyticsLogic 创建统计业务逻辑
func NewAnalyticsLogic(db *gorm.DB) *AnalyticsLogic {
	return &AnalyticsLogic{db: db}
}

type aggregateRow struct {
	Currency       money.Currency
	TotalAmount    decimal.Decimal
	TotalDonations int64
	UniqueDonors   int64
}

const aggregateSelect = "COALESCE(SUM(amount), 0) AS total_amount, COUNT(*) AS total_donations, COUNT(DISTINCT donor_id) AS unique_donors"

// CampaignStats 活动统计
func (a *AnalyticsLogic) CampaignStats(ctx context.Context, campaignId string) (*CampaignStats, error) {
	var campaign model.CampaignModel
	if err := database.Conn(ctx, a.db).Select("id", "currency").First(&campaign, "id = ?", campaignId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to load campaign %s: %w", campaignId, err)
	}

	var row aggregateRow
	err := database.Conn(ctx, a.db).Model(&model.DonationModel{}).
		Select(aggregateSelect).
		Where("campaign_id = ? AND status = ?", campaignId, model.DonationStatusConfirmed).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign %s: %w", campaignId, err)
	}

	return &CampaignStats{
		CampaignId: campaignId,
		Currency:   campaign.Currency,
		Stats:      newStats(row.TotalAmount, row.TotalDonations, row.UniqueDonors),
	}, nil
}

// PlatformStats 全平台统计
func (a *AnalyticsLogic) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	var rows []aggregateRow
	err := database.Conn(ctx, a.db).Model(&model.DonationModel{}).
		Select("currency, "+aggregateSelect).
		Where("status = ?", model.DonationStatusConfirmed).
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate platform stats: %w", err)
	}

	// 同一捐赠人可能使用多个币种，去重人数需单独统计
	var uniqueDonors int64
	err = database.Conn(ctx, a.db).Model(&model.DonationModel{}).
		Where("status = ?", model.DonationStatusConfirmed).
		Distinct("donor_id").
		Count(&uniqueDonors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count platform donors: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Currency < rows[j].Currency })

	total := decimal.Zero
	var count int64
	byCurrency := make([]CurrencyStats, 0, len(rows))
	for _, row := range rows {
		total = total.Add(row.TotalAmount)
		count += row.TotalDonations
		byCurrency = append(byCurrency, CurrencyStats{
			Currency: row.Currency,
			Stats:    newStats(row.TotalAmount, row.TotalDonations, row.UniqueDonors),
		})
	}

	return &PlatformStats{
		Stats:      newStats(total, count, uniqueDonors),
		ByCurrency: byCurrency,
	}, nil
}

func newStats(total decimal.Decimal, count, uniqueDonors int64) Stats {
	average := decimal.Zero
	if count > 0 {
		average = total.DivRound(decimal.NewFromInt(count), money.Scale)
	}
	return Stats{
		TotalAmount:      total,
		TotalDonations:   count,
		AverageDonation:  average,
		UniqueDonorCount: uniqueDonors,
	}
}
