package logic

import (
	"context"
	"testing"
	"time"

	"github.com/blues/donation/internal/cache"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	c, err := cache.NewMemoryCache(context.Background(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCampaignStatsOverConfirmedOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "100", "0")

	f.pending(t, c, "0x1", "alice", "1")
	f.pending(t, c, "0x2", "alice", "2")
	f.pending(t, c, "0x3", "bob", "3")
	f.pending(t, c, "0x4", "carol", "50")
	f.pending(t, c, "0x5", "dave", "0.5")

	for _, hash := range []string{"0x1", "0x2", "0x3"} {
		_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed(hash))
		require.NoError(t, err)
	}
	_, err := f.reconcile.OnTransactionFinalized(ctx, failed("0x4"))
	require.NoError(t, err)

	stats, err := f.analytics.CampaignStats(ctx, c.Id)
	require.NoError(t, err)
	assert.Equal(t, money.ETH, stats.Currency)
	decEq(t, "6", stats.TotalAmount)
	assert.EqualValues(t, 3, stats.TotalDonations)
	decEq(t, "2", stats.AverageDonation)
	assert.EqualValues(t, 2, stats.UniqueDonorCount)

	// 汇总中的 DonorCount 为次数
	assert.EqualValues(t, 3, f.campaign(t, c.Id).DonorCount)

	_, err = f.analytics.CampaignStats(ctx, "missing")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestCampaignStatsEmpty(t *testing.T) {
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "100", "0")

	stats, err := f.analytics.CampaignStats(context.Background(), c.Id)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDonations)
	assert.True(t, stats.TotalAmount.IsZero())
	assert.True(t, stats.AverageDonation.IsZero())
}

func TestPlatformStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	eth := f.seedCampaign(t, money.ETH, "100", "0")
	usdc := f.seedCampaign(t, money.USDC, "100000", "0")

	f.pending(t, eth, "0xe1", "alice", "1")
	f.pending(t, eth, "0xe2", "bob", "2")
	f.pending(t, usdc, "0xu1", "alice", "30")
	f.pending(t, usdc, "0xu2", "carol", "12")

	for _, hash := range []string{"0xe1", "0xe2", "0xu1"} {
		_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed(hash))
		require.NoError(t, err)
	}

	stats, err := f.analytics.PlatformStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalDonations)
	assert.EqualValues(t, 2, stats.UniqueDonorCount)
	decEq(t, "33", stats.TotalAmount)

	require.Len(t, stats.ByCurrency, 2)
	assert.Equal(t, money.ETH, stats.ByCurrency[0].Currency)
	decEq(t, "3", stats.ByCurrency[0].TotalAmount)
	decEq(t, "1.5", stats.ByCurrency[0].AverageDonation)
	assert.Equal(t, money.USDC, stats.ByCurrency[1].Currency)
	assert.EqualValues(t, 1, stats.ByCurrency[1].UniqueDonorCount)
}

func TestAnalyticsDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "100", "0")
	f.pending(t, c, "0x1", "alice", "1")
	_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0x1"))
	require.NoError(t, err)

	before := f.campaign(t, c.Id)
	_, err = f.analytics.CampaignStats(ctx, c.Id)
	require.NoError(t, err)
	_, err = f.analytics.PlatformStats(ctx)
	require.NoError(t, err)
	after := f.campaign(t, c.Id)

	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.UpdatedAt.Unix(), after.UpdatedAt.Unix())
}

func TestCachedAnalyticsServesFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mem := newMemoryCache(t)
	cached := NewCachedAnalytics(f.analytics, mem, time.Minute)
	c := f.seedCampaign(t, money.ETH, "100", "0")

	first, err := cached.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.TotalDonations)

	// 绕过对账引擎直接写库，缓存未失效
	f.pending(t, c, "0x1", "alice", "1")
	require.NoError(t, f.donations.UpdateStatus(ctx, "0x1", model.DonationStatusConfirmed, 1, 1, decimal.Zero))

	second, err := cached.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.TotalDonations)

	require.NoError(t, InvalidateStats(ctx, mem, c.Id))
	third, err := cached.PlatformStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, third.TotalDonations)
}
