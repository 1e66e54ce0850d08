package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/allegro/bigcache/v3"
)

// MemoryCache 进程内缓存；bigcache 只有全局生命周期，单键 TTL 以 8 字节过期时间前缀保存
type MemoryCache struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

// NewMemoryCache lifeWindow 为条目最长存活时间
func NewMemoryCache(ctx context.Context, lifeWindow time.Duration) (*MemoryCache, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = 64
	cfg.CleanWindow = lifeWindow
	cfg.Verbose = false

	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigcache: %w", err)
	}
	return &MemoryCache{cache: c, now: time.Now}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	entry, err := c.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	if len(entry) < 8 {
		_ = c.cache.Delete(key)
		return nil, ErrMiss
	}

	expireAt := int64(binary.BigEndian.Uint64(entry[:8]))
	if expireAt > 0 && c.now().UnixNano() >= expireAt {
		_ = c.cache.Delete(key)
		return nil, ErrMiss
	}
	return entry[8:], nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expireAt int64
	if ttl > 0 {
		expireAt = c.now().Add(ttl).UnixNano()
	}
	entry := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(entry[:8], uint64(expireAt))
	copy(entry[8:], value)
	return c.cache.Set(key, entry)
}

func (c *MemoryCache) InvalidatePattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var matched []string
	it := c.cache.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		if ok, _ := path.Match(pattern, info.Key()); ok {
			matched = append(matched, info.Key())
		}
	}

	for _, key := range matched {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

func (c *MemoryCache) Close() error {
	return c.cache.Close()
}
