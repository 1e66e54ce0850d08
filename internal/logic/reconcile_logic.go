package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/donation/internal/cache"
	"github.com/blues/donation/internal/database"
	"github.com/blues/donation/internal/event"
	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/metrics"
	"github.com/blues/donation/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Finalization 链上交易终局通知
type Finalization struct {
	TransactionHash string
	Outcome         model.DonationStatus
	BlockNumber     uint64
	GasUsed         uint64
	GasFee          decimal.Decimal
	Source          string // monitor, webhook
}

// ReconcileLogic 对账引擎：把链上终局结果恰好一次地应用到捐赠记录和活动汇总
type ReconcileLogic struct {
	db        *gorm.DB
	donations *DonationLogic
	campaigns *CampaignLogic
	cache     cache.Cache
	publisher event.Publisher
	now       func() time.Time
}

// NewReconcileLogic 创建对账引擎
func NewReconcileLogic(db *gorm.DB, donations *DonationLogic, campaigns *CampaignLogic, c cache.Cache, publisher event.Publisher) *ReconcileLogic {
	if c == nil {
		c = cache.Nop{}
	}
	return &ReconcileLogic{
		db:        db,
		donations: donations,
		campaigns: campaigns,
		cache:     c,
		publisher: publisher,
		now:       time.Now,
	}
}

// OnTransactionFinalized 处理一条终局通知，重复投递返回已有记录
func (r *ReconcileLogic) OnTransactionFinalized(ctx context.Context, f Finalization) (*model.DonationModel, error) {
	if !f.Outcome.Terminal() {
		return nil, fmt.Errorf("%w: 通知状态 %s", ErrInvalidTransition, f.Outcome)
	}
	f.TransactionHash = NormalizeHash(f.TransactionHash)

	donation, err := r.donations.Get(ctx, f.TransactionHash)
	if err != nil {
		if errors.Is(err, ErrDonationNotFound) {
			logger.Error("ALERT: finalization for unrecorded transaction %s outcome=%s block=%d source=%s",
				f.TransactionHash, f.Outcome, f.BlockNumber, f.Source)
			metrics.UnknownTransactions.Inc()
			r.record(ctx, f, model.FinalizationUnknown, "no donation record")
			return nil, ErrUnknownTransaction
		}
		r.record(ctx, f, model.FinalizationError, err.Error())
		return nil, err
	}

	if donation.Status.Terminal() {
		return r.duplicate(ctx, f, donation)
	}

	var applied bool
	switch f.Outcome {
	case model.DonationStatusFailed:
		err = r.donations.UpdateStatus(ctx, f.TransactionHash, f.Outcome, f.BlockNumber, f.GasUsed, f.GasFee)
	case model.DonationStatusConfirmed:
		err = database.Transaction(ctx, r.db, func(txCtx context.Context) error {
			if err := r.donations.UpdateStatus(txCtx, f.TransactionHash, f.Outcome, f.BlockNumber, f.GasUsed, f.GasFee); err != nil {
				return err
			}
			var applyErr error
			applied, applyErr = r.applyInTx(txCtx, donation)
			return applyErr
		})
	}
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// 并发投递中的另一方已完成状态流转
			current, getErr := r.donations.Get(ctx, f.TransactionHash)
			if getErr != nil {
				return nil, getErr
			}
			return r.duplicate(ctx, f, current)
		}
		logger.Error("Failed to reconcile tx %s: %v", f.TransactionHash, err)
		r.record(ctx, f, model.FinalizationError, err.Error())
		return nil, err
	}

	metrics.Finalizations.WithLabelValues(string(f.Outcome), string(model.FinalizationApplied)).Inc()
	r.record(ctx, f, model.FinalizationApplied, "")
	logger.Info("Donation %s finalized as %s at block %d", f.TransactionHash, f.Outcome, f.BlockNumber)

	if applied {
		r.afterConfirmed(ctx, donation)
	}
	return r.donations.Get(ctx, f.TransactionHash)
}

// Sweep 重放已确认但未计入汇总的捐赠，返回本次补记的数量
func (r *ReconcileLogic) Sweep(ctx context.Context, limit int) (int, error) {
	donations, err := r.donations.ListUnapplied(ctx, limit)
	if err != nil {
		return 0, err
	}

	var (
		applied int
		errs    []error
	)
	for i := range donations {
		ok, err := r.applyConfirmed(ctx, &donations[i])
		if err != nil {
			logger.Error("Sweep failed for tx %s: %v", donations[i].TransactionHash, err)
			errs = append(errs, fmt.Errorf("tx %s: %w", donations[i].TransactionHash, err))
			continue
		}
		if ok {
			applied++
		}
	}

	if applied > 0 {
		metrics.SweepApplied.Add(float64(applied))
		logger.Info("Sweep applied %d confirmed donations", applied)
	}
	return applied, errors.Join(errs...)
}

// duplicate 终态记录上的重复通知；已确认但未计入汇总时补记一次
func (r *ReconcileLogic) duplicate(ctx context.Context, f Finalization, donation *model.DonationModel) (*model.DonationModel, error) {
	if donation.Status != f.Outcome {
		logger.Warn("Ignoring %s finalization for tx %s already %s", f.Outcome, f.TransactionHash, donation.Status)
	}

	if donation.Status == model.DonationStatusConfirmed && donation.AppliedAt == nil {
		if _, err := r.applyConfirmed(ctx, donation); err != nil {
			logger.Error("Failed to replay apply for tx %s: %v", donation.TransactionHash, err)
			r.record(ctx, f, model.FinalizationError, err.Error())
			return nil, err
		}
		return r.donations.Get(ctx, donation.TransactionHash)
	}

	metrics.Finalizations.WithLabelValues(string(f.Outcome), string(model.FinalizationDuplicate)).Inc()
	r.record(ctx, f, model.FinalizationDuplicate, "already "+string(donation.Status))
	return donation, nil
}

// applyConfirmed 在独立事务中把已确认捐赠计入汇总
func (r *ReconcileLogic) applyConfirmed(ctx context.Context, donation *model.DonationModel) (bool, error) {
	var applied bool
	err := database.Transaction(ctx, r.db, func(txCtx context.Context) error {
		var err error
		applied, err = r.applyInTx(txCtx, donation)
		return err
	})
	if err != nil {
		return false, err
	}
	if applied {
		r.afterConfirmed(ctx, donation)
	}
	return applied, nil
}

// applyInTx 必须在事务中调用：applied_at 与汇总同时生效，已标记过的不再计入
func (r *ReconcileLogic) applyInTx(txCtx context.Context, donation *model.DonationModel) (bool, error) {
	marked, err := r.donations.MarkApplied(txCtx, donation.Id)
	if err != nil || !marked {
		return false, err
	}
	if _, err := r.campaigns.ApplyConfirmedDonation(txCtx, donation.CampaignId, donation.Money(), donation.DonorId); err != nil {
		return false, err
	}
	return true, nil
}

// afterConfirmed 提交后的确认钩子：失效缓存、发布事件、尝试开票，失败只记录日志
func (r *ReconcileLogic) afterConfirmed(ctx context.Context, donation *model.DonationModel) {
	if err := InvalidateStats(ctx, r.cache, donation.CampaignId); err != nil {
		logger.Warn("Failed to invalidate stats cache for campaign %s: %v", donation.CampaignId, err)
	}

	if r.publisher != nil {
		evt := event.DonationConfirmed{
			DonationId:      donation.Id,
			DonorId:         donation.DonorId,
			CampaignId:      donation.CampaignId,
			Amount:          donation.Amount.String(),
			Currency:        donation.Currency.String(),
			TransactionHash: donation.TransactionHash,
			ConfirmedAt:     r.now().UTC(),
		}
		if err := r.publisher.PublishDonationConfirmed(ctx, evt); err != nil {
			metrics.EventPublishErrors.Inc()
			logger.Warn("Failed to publish DonationConfirmed for tx %s: %v", donation.TransactionHash, err)
		}
	}

	if _, err := r.donations.GenerateTaxReceipt(ctx, donation.TransactionHash); err != nil {
		logger.Warn("Tax receipt generation failed for tx %s: %v", donation.TransactionHash, err)
	}
}

// record 写入终局通知审计记录
func (r *ReconcileLogic) record(ctx context.Context, f Finalization, result model.FinalizationResult, detail string) {
	source := f.Source
	if source == "" {
		source = "unknown"
	}
	entry := &model.EventModel{
		TxHash:    f.TransactionHash,
		Outcome:   f.Outcome,
		Source:    source,
		BlockNum:  f.BlockNumber,
		Result:    result,
		Detail:    detail,
		Processed: result != model.FinalizationError,
	}
	if err := database.Conn(ctx, r.db).Create(entry).Error; err != nil {
		logger.Warn("Failed to record finalization for tx %s: %v", f.TransactionHash, err)
	}
}
