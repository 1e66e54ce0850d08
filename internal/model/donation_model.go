package model

import (
	"time"

	"github.com/blues/donation/internal/money"
	"github.com/shopspring/decimal"
)

// DonationStatus 捐赠状态
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"   // 已广播，待确认
	DonationStatusConfirmed DonationStatus = "confirmed" // 已上链确认
	DonationStatusFailed    DonationStatus = "failed"    // 上链失败
)

// Terminal 是否为终态
func (s DonationStatus) Terminal() bool {
	return s == DonationStatusConfirmed || s == DonationStatusFailed
}

// DonationModel 捐赠记录，只追加不删除
type DonationModel struct {
	Id        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TransactionHash string          `json:"transaction_hash" gorm:"size:80;not null;uniqueIndex"`
	DonorId         string          `json:"donor_id" gorm:"size:64;not null;index"`
	CampaignId      string          `json:"campaign_id" gorm:"size:36;not null;index:idx_donation_campaign_status"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(36,18);not null"`
	Currency        money.Currency  `json:"currency" gorm:"size:8;not null"`
	Network         string          `json:"network" gorm:"size:32;not null"`

	// 链上信息
	BlockNumber uint64          `json:"block_number"`
	GasUsed     uint64          `json:"gas_used"`
	GasFee      decimal.Decimal `json:"gas_fee" gorm:"type:decimal(36,18);default:0"`

	Status      DonationStatus `json:"status" gorm:"size:16;not null;default:'pending';index:idx_donation_campaign_status"`
	IsAnonymous bool           `json:"is_anonymous" gorm:"default:false"`
	Message     string         `json:"message" gorm:"type:text"`
	DocumentRef string         `json:"document_ref" gorm:"size:255"` // 链下文档引用，如 IPFS CID

	// 税务收据
	TaxReceiptGenerated bool   `json:"tax_receipt_generated" gorm:"default:false"`
	TaxReceiptId        string `json:"tax_receipt_id" gorm:"size:64"`

	// 已计入活动汇总的时间，与汇总更新在同一事务内写入
	AppliedAt *time.Time `json:"applied_at"`
}

// TableName 自定义表名
func (DonationModel) TableName() string {
	return "donation"
}

// Money 金额与币种
func (d *DonationModel) Money() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}
