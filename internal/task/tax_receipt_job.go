package task

import (
	"context"
	"time"

	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/model"
	"github.com/go-co-op/gocron/v2"
)

// ReceiptIssuer 收据开具
type ReceiptIssuer interface {
	ListReceiptCandidates(ctx context.Context, limit int) ([]model.DonationModel, error)
	GenerateTaxReceipt(ctx context.Context, txHash string) (*model.DonationModel, error)
}

// TaxReceiptJob 补开税务收据，覆盖确认钩子中开票失败的捐赠
type TaxReceiptJob struct {
	issuer    ReceiptIssuer
	interval  time.Duration
	batchSize int
}

// NewTaxReceiptJob 创建补开收据任务
func NewTaxReceiptJob(issuer ReceiptIssuer, interval time.Duration, batchSize int) *TaxReceiptJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &TaxReceiptJob{issuer: issuer, interval: interval, batchSize: batchSize}
}

// GetName 获取任务名称
func (j *TaxReceiptJob) GetName() string {
	return "tax_receipt_backfill"
}

// GetSchedule 获取调度配置
func (j *TaxReceiptJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *TaxReceiptJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	donations, err := j.issuer.ListReceiptCandidates(ctx, j.batchSize)
	if err != nil {
		logger.Error("Failed to fetch receipt candidates: %v", err)
		return
	}

	issued := 0
	for _, donation := range donations {
		d, err := j.issuer.GenerateTaxReceipt(ctx, donation.TransactionHash)
		if err != nil {
			logger.Error("Failed to issue tax receipt for tx %s: %v", donation.TransactionHash, err)
			continue
		}
		if d.TaxReceiptGenerated {
			issued++
		}
	}

	if len(donations) > 0 {
		logger.Info("Tax receipt task completed. Issued %d/%d receipts", issued, len(donations))
	}
}
