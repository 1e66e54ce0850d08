package model

import (
	"time"
)

// FinalizationResult 终局通知的处理结果
type FinalizationResult string

const (
	FinalizationApplied   FinalizationResult = "applied"   // 首次处理并生效
	FinalizationDuplicate FinalizationResult = "duplicate" // 重复投递，忽略
	FinalizationUnknown   FinalizationResult = "unknown"   // 未记录的交易
	FinalizationError     FinalizationResult = "error"     // 处理失败，等待重投
)

// EventModel 链上终局通知审计记录
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TxHash    string             `json:"tx_hash" gorm:"size:80;not null;index"`
	Outcome   DonationStatus     `json:"outcome" gorm:"size:16;not null"`
	Source    string             `json:"source" gorm:"size:32;not null"` // monitor, webhook, sweep
	BlockNum  uint64             `json:"block_num"`
	Result    FinalizationResult `json:"result" gorm:"size:16;not null"`
	Detail    string             `json:"detail" gorm:"type:text"`
	Processed bool               `json:"processed" gorm:"default:false"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "finalization_event"
}
