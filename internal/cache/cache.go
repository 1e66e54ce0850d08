package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 键不存在或已过期
var ErrMiss = errors.New("cache miss")

// Cache 统计结果缓存
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePattern 按 glob 模式删除，如 stats:campaign:42*
	InvalidatePattern(ctx context.Context, pattern string) error
}

// Nop 不缓存任何内容
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) InvalidatePattern(context.Context, string) error          { return nil }
