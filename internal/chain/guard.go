package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrRPCUnavailable 熔断打开时直接失败，不再请求节点
var ErrRPCUnavailable = errors.New("rpc circuit open")

// GuardOptions 节点调用的限速与熔断参数
type GuardOptions struct {
	RatePerSecond       float64 // 0 表示不限速
	Burst               int
	ConsecutiveFailures uint32        // 连续失败多少次后熔断
	OpenTimeout         time.Duration // 熔断持续时间，到期进入半开
}

// GuardedSource 为收据查询加上令牌桶限速和熔断
type GuardedSource struct {
	source  ReceiptSource
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
}

// NewGuardedSource 包装网络的收据来源
func NewGuardedSource(name string, source ReceiptSource, opts GuardOptions) *GuardedSource {
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	threshold := opts.ConsecutiveFailures
	return &GuardedSource{
		source:  source,
		limiter: rate.NewLimiter(limit, opts.Burst),
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    name,
			Timeout: opts.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			// 交易未上链是正常结果，不计入节点失败
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ethereum.NotFound)
			},
		}),
	}
}

func (g *GuardedSource) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := g.call(ctx, func() error {
		var err error
		receipt, err = g.source.TransactionReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

func (g *GuardedSource) BlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := g.call(ctx, func() error {
		var err error
		head, err = g.source.BlockNumber(ctx)
		return err
	})
	return head, err
}

// State 熔断器状态
func (g *GuardedSource) State() string {
	return g.cb.State().String()
}

func (g *GuardedSource) call(ctx context.Context, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, err := g.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrRPCUnavailable, g.cb.Name())
	}
	return err
}
