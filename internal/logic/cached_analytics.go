package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blues/donation/internal/cache"
	"github.com/blues/donation/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// PlatformStatsKey 平台统计缓存范围
	PlatformStatsKey = "stats:platform"

	// 代号键不落在 stats: 前缀下，按模式清理数据时保留
	statsGenerationPrefix = "statsgen:"
	statsGenerationTTL    = 7 * 24 * time.Hour
)

// CampaignStatsKey 活动统计缓存范围
func CampaignStatsKey(campaignId string) string {
	return "stats:campaign:" + campaignId
}

// InvalidateStats 轮换活动与平台统计的代号并清理旧条目
// 轮换之前开始计算的结果只会写入旧代号的键，之后的读取不会命中
func InvalidateStats(ctx context.Context, c cache.Cache, campaignId string) error {
	var errs []error
	for _, scope := range []string{CampaignStatsKey(campaignId), PlatformStatsKey} {
		gen := uuid.NewString()
		if err := c.Set(ctx, statsGenerationPrefix+scope, []byte(gen), statsGenerationTTL); err != nil {
			errs = append(errs, fmt.Errorf("rotate %s: %w", scope, err))
		}
		if err := c.InvalidatePattern(ctx, scope+":*"); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", scope, err))
		}
	}
	return errors.Join(errs...)
}

// CachedAnalytics 统计读穿缓存，键带代号，确认捐赠后由对账引擎轮换
type CachedAnalytics struct {
	inner *AnalyticsLogic
	cache cache.Cache
	ttl   time.Duration
	sf    singleflight.Group
}

// NewCachedAnalytics 创建带缓存的统计
func NewCachedAnalytics(inner *AnalyticsLogic, c cache.Cache, ttl time.Duration) *CachedAnalytics {
	return &CachedAnalytics{inner: inner, cache: c, ttl: ttl}
}

// CampaignStats 活动统计
func (c *CachedAnalytics) CampaignStats(ctx context.Context, campaignId string) (*CampaignStats, error) {
	key := c.versionedKey(ctx, CampaignStatsKey(campaignId))
	var stats CampaignStats
	if c.load(ctx, key, &stats) {
		return &stats, nil
	}

	// singleflight 防击穿，同一代号内合并
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		res, err := c.inner.CampaignStats(ctx, campaignId)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*CampaignStats)
	return &res, nil
}

// PlatformStats 平台统计
func (c *CachedAnalytics) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	key := c.versionedKey(ctx, PlatformStatsKey)
	var stats PlatformStats
	if c.load(ctx, key, &stats) {
		return &stats, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		res, err := c.inner.PlatformStats(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*PlatformStats)
	res.ByCurrency = append([]CurrencyStats(nil), res.ByCurrency...)
	return &res, nil
}

// versionedKey 读取范围的当前代号，没有时写入一个新代号
func (c *CachedAnalytics) versionedKey(ctx context.Context, scope string) string {
	genKey := statsGenerationPrefix + scope
	raw, err := c.cache.Get(ctx, genKey)
	if err == nil && len(raw) > 0 {
		return scope + ":" + string(raw)
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		logger.Warn("Cache get %s failed: %v", genKey, err)
	}

	gen := uuid.NewString()
	if err := c.cache.Set(ctx, genKey, []byte(gen), statsGenerationTTL); err != nil {
		logger.Warn("Cache set %s failed: %v", genKey, err)
	}
	return scope + ":" + gen
}

func (c *CachedAnalytics) load(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.Warn("Cache get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Warn("Cache entry %s is corrupt: %v", key, err)
		return false
	}
	return true
}

func (c *CachedAnalytics) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		logger.Warn("Cache set %s failed: %v", key, err)
	}
}
