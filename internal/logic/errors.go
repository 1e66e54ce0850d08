package logic

import "errors"

var (
	// ErrDuplicateTransaction 交易哈希已记录，调用方按成功处理
	ErrDuplicateTransaction = errors.New("交易哈希已存在")
	// ErrInvalidAmount 金额非正或低于最小捐赠额
	ErrInvalidAmount = errors.New("捐赠金额无效")
	// ErrInvalidTransition 状态流转不允许
	ErrInvalidTransition = errors.New("状态流转无效")
	// ErrUnknownTransaction 链上终局通知对应的交易没有捐赠记录
	ErrUnknownTransaction = errors.New("未知交易")
	// ErrAggregateUpdateConflict 活动汇总乐观锁重试耗尽
	ErrAggregateUpdateConflict = errors.New("活动汇总更新冲突")

	ErrDonationNotFound     = errors.New("捐赠记录不存在")
	ErrCampaignNotFound     = errors.New("活动不存在")
	ErrCampaignNotAccepting = errors.New("活动当前不接受捐赠")
	ErrCurrencyMismatch     = errors.New("币种与活动不一致")
	ErrInvalidDonation      = errors.New("捐赠参数无效")
	ErrInvalidCampaign      = errors.New("活动参数无效")
	ErrMilestoneNotFound    = errors.New("里程碑不存在")
	ErrPermissionDenied     = errors.New("无权执行该操作")
)
