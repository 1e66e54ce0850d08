package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/donation/internal/chain"
	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/logic"
	"github.com/blues/donation/internal/model"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
)

// Networks 按网络名获取链上查询入口
type Networks interface {
	Network(name string) (*chain.Network, bool)
}

// PendingSource 待确认捐赠来源
type PendingSource interface {
	ListPending(ctx context.Context, limit int) ([]model.DonationModel, error)
}

// Finalizer 终局通知的接收方
type Finalizer interface {
	OnTransactionFinalized(ctx context.Context, f logic.Finalization) (*model.DonationModel, error)
}

// Options 监控参数
type Options struct {
	Interval       time.Duration
	BatchSize      int
	PoolSize       int
	PendingTimeout time.Duration // 超过该时长仍查不到收据视为失败，0 表示不超时
}

// ConfirmationMonitor 轮询待确认捐赠的收据，确认数满足后通知对账引擎
type ConfirmationMonitor struct {
	networks  Networks
	pending   PendingSource
	finalizer Finalizer
	opts      Options
	now       func() time.Time

	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	retryCount      int           // 连续失败次数
	lastRetryTime   time.Time     // 上次失败时间
	backoffDuration time.Duration // 退避时间
	lastRun         time.Time
	finalized       atomic.Int64
}

// NewConfirmationMonitor 创建确认监控器
func NewConfirmationMonitor(networks Networks, pending PendingSource, finalizer Finalizer, opts Options) *ConfirmationMonitor {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ConfirmationMonitor{
		networks:  networks,
		pending:   pending,
		finalizer: finalizer,
		opts:      opts,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start 启动监控
func (m *ConfirmationMonitor) Start() {
	logger.Info("Starting confirmation monitor (interval: %s, batch: %d, pool: %d)",
		m.opts.Interval, m.opts.BatchSize, m.opts.PoolSize)

	m.wg.Add(1)
	go m.loop()
}

// Stop 停止监控并等待当前一轮结束
func (m *ConfirmationMonitor) Stop() {
	logger.Info("Stopping confirmation monitor")
	m.cancel()
	m.wg.Wait()
}

// loop 监控循环
func (m *ConfirmationMonitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			logger.Info("Monitor stopped")
			return
		case <-ticker.C:
			if m.inBackoff() {
				continue
			}
			if _, err := m.RunOnce(m.ctx); err != nil {
				m.handleError(err)
				continue
			}
			m.resetError()
		}
	}
}

// RunOnce 检查一批待确认捐赠，返回本轮上报的终局数量
func (m *ConfirmationMonitor) RunOnce(ctx context.Context) (int, error) {
	donations, err := m.pending.ListPending(ctx, m.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending donations: %w", err)
	}

	m.mu.Lock()
	m.lastRun = m.now()
	m.mu.Unlock()

	if len(donations) == 0 {
		logger.Debug("No pending donations")
		return 0, nil
	}

	pool, err := ants.NewPool(m.opts.PoolSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Release()

	var (
		wg          sync.WaitGroup
		reported    atomic.Int64
		failures    atomic.Int64
		rateLimited atomic.Bool
	)
	for i := range donations {
		donation := donations[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			ok, err := m.check(ctx, &donation)
			if err != nil {
				failures.Add(1)
				if isRateLimitError(err) {
					rateLimited.Store(true)
				}
				logger.Error("Failed to check tx %s on %s: %v", donation.TransactionHash, donation.Network, err)
				return
			}
			if ok {
				reported.Add(1)
			}
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit check for tx %s: %v", donation.TransactionHash, err)
		}
	}
	wg.Wait()

	n := int(reported.Load())
	m.finalized.Add(int64(n))
	logger.Debug("Checked %d pending donations, %d finalized", len(donations), n)

	if rateLimited.Load() {
		return n, fmt.Errorf("rpc rate limit hit")
	}
	// 全部失败通常是 RPC 不可用
	if f := failures.Load(); f > 0 && int(f) == len(donations) {
		return n, fmt.Errorf("all %d receipt checks failed", f)
	}
	return n, nil
}

// check 查询单笔交易，达到终局时上报
func (m *ConfirmationMonitor) check(ctx context.Context, donation *model.DonationModel) (bool, error) {
	network, ok := m.networks.Network(donation.Network)
	if !ok {
		logger.Warn("No chain client for network %s (tx %s)", donation.Network, donation.TransactionHash)
		return false, nil
	}

	outcome, err := network.Lookup(ctx, donation.TransactionHash)
	if err != nil {
		return false, err
	}

	f := logic.Finalization{
		TransactionHash: donation.TransactionHash,
		BlockNumber:     outcome.BlockNumber,
		GasUsed:         outcome.GasUsed,
		GasFee:          outcome.GasFee,
		Source:          "monitor",
	}

	switch outcome.State {
	case chain.ReceiptUnconfirmed:
		return false, nil
	case chain.ReceiptNotFound:
		if m.opts.PendingTimeout <= 0 || m.now().Sub(donation.CreatedAt) < m.opts.PendingTimeout {
			return false, nil
		}
		logger.Warn("Tx %s not mined after %s, marking failed", donation.TransactionHash, m.opts.PendingTimeout)
		f.Outcome = model.DonationStatusFailed
		f.GasFee = decimal.Zero
	case chain.ReceiptFinal:
		f.Outcome = model.DonationStatusFailed
		if outcome.Succeeded {
			f.Outcome = model.DonationStatusConfirmed
		}
	}

	if _, err := m.finalizer.OnTransactionFinalized(ctx, f); err != nil {
		return false, err
	}
	return true, nil
}

func (m *ConfirmationMonitor) inBackoff() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryCount > 0 && m.now().Before(m.lastRetryTime.Add(m.backoffDuration))
}

// handleError 处理错误
func (m *ConfirmationMonitor) handleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retryCount++
	m.lastRetryTime = m.now()

	// 线性退避，最多5分钟
	if m.retryCount > 5 {
		m.backoffDuration = time.Minute * 5
	} else {
		m.backoffDuration = time.Duration(m.retryCount) * time.Second * 10
	}

	logger.Error("Monitor encountered error (retry %d, backoff %s): %v", m.retryCount, m.backoffDuration, err)
}

func (m *ConfirmationMonitor) resetError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = 0
	m.backoffDuration = 0
}

// GetStatus 获取监控状态
func (m *ConfirmationMonitor) GetStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"interval":        m.opts.Interval.String(),
		"batch_size":      m.opts.BatchSize,
		"pool_size":       m.opts.PoolSize,
		"last_run":        m.lastRun,
		"retry_count":     m.retryCount,
		"backoff":         m.backoffDuration.String(),
		"finalized_total": m.finalized.Load(),
	}
}

// GetStatusJSON 获取监控状态的JSON格式
func (m *ConfirmationMonitor) GetStatusJSON() (string, error) {
	jsonData, err := json.MarshalIndent(m.GetStatus(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal monitor status: %w", err)
	}
	return string(jsonData), nil
}

// isRateLimitError 检查是否为节点限流错误
func isRateLimitError(err error) bool {
	return strings.Contains(err.Error(), "Too Many Requests") || strings.Contains(err.Error(), "429")
}
