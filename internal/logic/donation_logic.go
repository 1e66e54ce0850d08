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
)

// DraftDonation 钱包广播交易后提交的捐赠草稿
type DraftDonation struct {
	TransactionHash string
	DonorId         string
	CampaignId      string
	Amount          money.Money
	Network         string
	IsAnonymous     bool
	Message         string
	DocumentRef     string
}

// DonationLogic 捐赠记录业务逻辑
type DonationLogic struct {
	db     *gorm.DB
	policy *money.Policy
	now    func() time.Time
}

// NewDonationLogic 创建捐赠记录业务逻辑
func NewDonationLogic(db *gorm.DB, policy *money.Policy) *DonationLogic {
	return &DonationLogic{db: db, policy: policy, now: time.Now}
}

// NormalizeHash 交易哈希统一小写存储
func NormalizeHash(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}

// Create 记录待确认捐赠；重复哈希返回已有记录和 ErrDuplicateTransaction
func (d *DonationLogic) Create(ctx context.Context, draft DraftDonation) (*model.DonationModel, error) {
	draft.TransactionHash = NormalizeHash(draft.TransactionHash)
	if err := d.validateDraft(&draft); err != nil {
		return nil, err
	}

	if !d.policy.MeetsMinimum(draft.Network, draft.Amount) {
		return nil, fmt.Errorf("%w: %s 低于最小捐赠额 %s", ErrInvalidAmount,
			draft.Amount, d.policy.Minimum(draft.Network, draft.Amount.Currency))
	}

	// 钱包重试提交同一笔交易
	if existing, err := d.Get(ctx, draft.TransactionHash); err == nil {
		return existing, ErrDuplicateTransaction
	} else if !errors.Is(err, ErrDonationNotFound) {
		return nil, err
	}

	var campaign model.CampaignModel
	if err := database.Conn(ctx, d.db).First(&campaign, "id = ?", draft.CampaignId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to load campaign %s: %w", draft.CampaignId, err)
	}
	if campaign.Currency != draft.Amount.Currency {
		return nil, fmt.Errorf("%w: 活动币种 %s, 捐赠币种 %s", ErrCurrencyMismatch, campaign.Currency, draft.Amount.Currency)
	}
	if !campaign.CanAcceptDonation(d.now()) {
		return nil, ErrCampaignNotAccepting
	}

	donation := &model.DonationModel{
		Id:              uuid.NewString(),
		TransactionHash: draft.TransactionHash,
		DonorId:         draft.DonorId,
		CampaignId:      draft.CampaignId,
		Amount:          draft.Amount.Amount,
		Currency:        draft.Amount.Currency,
		Network:         strings.ToLower(draft.Network),
		GasFee:          decimal.Zero,
		Status:          model.DonationStatusPending,
		IsAnonymous:     draft.IsAnonymous,
		Message:         draft.Message,
		DocumentRef:     draft.DocumentRef,
	}

	if err := database.Conn(ctx, d.db).Create(donation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, getErr := d.Get(ctx, draft.TransactionHash)
			if getErr != nil {
				return nil, getErr
			}
			return existing, ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	metrics.DonationsCreated.WithLabelValues(donation.Currency.String()).Inc()
	logger.Info("Donation recorded: tx=%s campaign=%s amount=%s", donation.TransactionHash, donation.CampaignId, draft.Amount)
	return donation, nil
}

// Get 按交易哈希查询
func (d *DonationLogic) Get(ctx context.Context, txHash string) (*model.DonationModel, error) {
	var donation model.DonationModel
	err := database.Conn(ctx, d.db).
		Where("transaction_hash = ?", NormalizeHash(txHash)).
		First(&donation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to get donation %s: %w", txHash, err)
	}
	return &donation, nil
}

// UpdateStatus 仅允许 pending -> confirmed / failed，条件更新保证并发下只有一方成功
func (d *DonationLogic) UpdateStatus(ctx context.Context, txHash string, status model.DonationStatus, blockNumber, gasUsed uint64, gasFee decimal.Decimal) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: 目标状态 %s", ErrInvalidTransition, status)
	}

	result := database.Conn(ctx, d.db).Model(&model.DonationModel{}).
		Where("transaction_hash = ? AND status = ?", NormalizeHash(txHash), model.DonationStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"block_number": blockNumber,
			"gas_used":     gasUsed,
			"gas_fee":      gasFee,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update donation status: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	current, err := d.Get(ctx, txHash)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
}

// MarkApplied 标记已计入活动汇总，返回是否由本次调用标记
func (d *DonationLogic) MarkApplied(ctx context.Context, id string) (bool, error) {
	result := database.Conn(ctx, d.db).Model(&model.DonationModel{}).
		Where("id = ? AND applied_at IS NULL", id).
		Update("applied_at", d.now())
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark donation applied: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GenerateTaxReceipt 为已确认且达到门槛的捐赠开具收据，至多一次
func (d *DonationLogic) GenerateTaxReceipt(ctx context.Context, txHash string) (*model.DonationModel, error) {
	donation, err := d.Get(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if donation.TaxReceiptGenerated ||
		donation.Status != model.DonationStatusConfirmed ||
		!d.policy.QualifiesForReceipt(donation.Money()) {
		return donation, nil
	}

	now := d.now()
	receiptId := fmt.Sprintf("TR-%s-%s", now.Format("20060102"), uuid.NewString())
	result := database.Conn(ctx, d.db).Model(&model.DonationModel{}).
		Where("id = ? AND tax_receipt_generated = ?", donation.Id, false).
		Updates(map[string]interface{}{
			"tax_receipt_generated": true,
			"tax_receipt_id":        receiptId,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to generate tax receipt: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		metrics.ReceiptsGenerated.Inc()
		logger.Info("Tax receipt %s issued for tx %s", receiptId, donation.TransactionHash)
	}

	// 并发调用时以先写入者为准
	return d.Get(ctx, txHash)
}

// ListByCampaign 分页查询活动的捐赠记录，status 为空时不过滤
func (d *DonationLogic) ListByCampaign(ctx context.Context, campaignId string, status model.DonationStatus, page, pageSize int) ([]model.DonationModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	query := database.Conn(ctx, d.db).Model(&model.DonationModel{}).Where("campaign_id = ?", campaignId)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count donations: %w", err)
	}

	var donations []model.DonationModel
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&donations).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, total, nil
}

// ListPending 最早提交的待确认捐赠
func (d *DonationLogic) ListPending(ctx context.Context, limit int) ([]model.DonationModel, error) {
	var donations []model.DonationModel
	err := database.Conn(ctx, d.db).
		Where("status = ?", model.DonationStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending donations: %w", err)
	}
	return donations, nil
}

// ListUnapplied 已确认但未计入活动汇总的捐赠
func (d *DonationLogic) ListUnapplied(ctx context.Context, limit int) ([]model.DonationModel, error) {
	var donations []model.DonationModel
	err := database.Conn(ctx, d.db).
		Where("status = ? AND applied_at IS NULL", model.DonationStatusConfirmed).
		Order("updated_at ASC").
		Limit(limit).
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unapplied donations: %w", err)
	}
	return donations, nil
}

// ListReceiptCandidates 已确认、达到门槛但尚未开票的捐赠
func (d *DonationLogic) ListReceiptCandidates(ctx context.Context, limit int) ([]model.DonationModel, error) {
	thresholds := d.policy.ReceiptThresholds()
	if len(thresholds) == 0 {
		return nil, nil
	}

	var (
		clauses []string
		args    []interface{}
	)
	for currency, threshold := range thresholds {
		clauses = append(clauses, "(currency = ? AND amount >= ?)")
		args = append(args, currency, threshold)
	}

	var donations []model.DonationModel
	err := database.Conn(ctx, d.db).
		Where("status = ? AND tax_receipt_generated = ?", model.DonationStatusConfirmed, false).
		Where("("+strings.Join(clauses, " OR ")+")", args...).
		Order("updated_at ASC").
		Limit(limit).
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list receipt candidates: %w", err)
	}
	return donations, nil
}

// validateDraft 验证捐赠草稿
func (d *DonationLogic) validateDraft(draft *DraftDonation) error {
	if draft.TransactionHash == "" {
		return fmt.Errorf("%w: 交易哈希不能为空", ErrInvalidDonation)
	}
	if !strings.HasPrefix(draft.TransactionHash, "0x") || len(draft.TransactionHash) > 80 {
		return fmt.Errorf("%w: 交易哈希格式错误", ErrInvalidDonation)
	}
	if strings.TrimSpace(draft.DonorId) == "" {
		return fmt.Errorf("%w: 捐赠人不能为空", ErrInvalidDonation)
	}
	if strings.TrimSpace(draft.CampaignId) == "" {
		return fmt.Errorf("%w: 活动ID不能为空", ErrInvalidDonation)
	}
	if strings.TrimSpace(draft.Network) == "" {
		return fmt.Errorf("%w: 网络不能为空", ErrInvalidDonation)
	}
	if !draft.Amount.Currency.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidDonation, money.ErrUnsupportedCurrency)
	}
	return nil
}

// NormalizePage 分页参数归一化，默认每页20条，最多100条
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
