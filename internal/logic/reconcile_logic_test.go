package logic

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blues/donation/internal/cache"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConfirmationAppliedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "1")
	f.pending(t, c, "0xonce", "donor-1", "0.5")

	for i := 0; i < 3; i++ {
		d, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0xONCE"))
		require.NoError(t, err)
		assert.Equal(t, model.DonationStatusConfirmed, d.Status)
		assert.NotNil(t, d.AppliedAt)
	}

	got := f.campaign(t, c.Id)
	decEq(t, "1.5", got.RaisedAmount)
	assert.EqualValues(t, 1, got.DonorCount)
	assert.EqualValues(t, 1, got.Version)
	assert.Equal(t, model.CampaignStatusActive, got.Status)

	d, err := f.donations.Get(ctx, "0xonce")
	require.NoError(t, err)
	assert.EqualValues(t, 100, d.BlockNumber)
	decEq(t, "0.000021", d.GasFee)
	assert.True(t, d.TaxReceiptGenerated)

	// 只发布一次确认事件
	require.Len(t, f.events, 1)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(<-f.events, &evt))
	assert.Equal(t, d.Id, evt["donation_id"])
	assert.Equal(t, "0.5", evt["amount"])
	assert.Equal(t, c.Id, evt["campaign_id"])

	var audits []model.EventModel
	require.NoError(t, f.db.Where("tx_hash = ?", "0xonce").Order("id").Find(&audits).Error)
	require.Len(t, audits, 3)
	assert.Equal(t, model.FinalizationApplied, audits[0].Result)
	assert.Equal(t, model.FinalizationDuplicate, audits[1].Result)
	assert.Equal(t, model.FinalizationDuplicate, audits[2].Result)
}

func TestConcurrentConfirmationsCompleteCampaign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.USDC, "1000", "900")
	f.pending(t, c, "0x150", "donor-1", "150")
	f.pending(t, c, "0x050", "donor-2", "50")

	var wg sync.WaitGroup
	// 每笔通知重复投递一次
	for _, hash := range []string{"0x150", "0x050", "0x150", "0x050"} {
		wg.Add(1)
		go func(hash string) {
			defer wg.Done()
			_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed(hash))
			assert.NoError(t, err)
		}(hash)
	}
	wg.Wait()

	got := f.campaign(t, c.Id)
	decEq(t, "1100", got.RaisedAmount)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
	assert.EqualValues(t, 2, got.DonorCount)
}

func TestFailedAfterConfirmedIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "0")
	f.pending(t, c, "0xdef", "donor-1", "0.5")

	_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0xDEF"))
	require.NoError(t, err)
	before := f.campaign(t, c.Id)

	d, err := f.reconcile.OnTransactionFinalized(ctx, failed("0xDEF"))
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusConfirmed, d.Status)

	after := f.campaign(t, c.Id)
	decEq(t, before.RaisedAmount.String(), after.RaisedAmount)
	assert.Equal(t, before.Version, after.Version)
}

func TestFailedOutcomeLeavesCampaignUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "2")
	f.pending(t, c, "0xfail", "donor-1", "0.5")

	d, err := f.reconcile.OnTransactionFinalized(ctx, failed("0xfail"))
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusFailed, d.Status)
	assert.Nil(t, d.AppliedAt)

	// 失败后的确认通知同样被忽略
	d, err = f.reconcile.OnTransactionFinalized(ctx, confirmed("0xfail"))
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusFailed, d.Status)

	got := f.campaign(t, c.Id)
	decEq(t, "2", got.RaisedAmount)
	assert.Zero(t, got.DonorCount)
	assert.Len(t, f.events, 0)
}

func TestUnknownTransaction(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconcile.OnTransactionFinalized(context.Background(), confirmed("0xghost"))
	assert.ErrorIs(t, err, ErrUnknownTransaction)

	var audit model.EventModel
	require.NoError(t, f.db.Where("tx_hash = ?", "0xghost").First(&audit).Error)
	assert.Equal(t, model.FinalizationUnknown, audit.Result)
}

func TestPendingOutcomeRejected(t *testing.T) {
	f := newFixture(t)
	fin := confirmed("0xabc")
	fin.Outcome = model.DonationStatusPending

	_, err := f.reconcile.OnTransactionFinalized(context.Background(), fin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRaisedAmountMatchesConfirmedSum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.USDC, "100000", "0")

	outcomes := map[string]model.DonationStatus{
		"0x01": model.DonationStatusConfirmed,
		"0x02": model.DonationStatusFailed,
		"0x03": model.DonationStatusConfirmed,
		"0x04": model.DonationStatusConfirmed,
		"0x05": model.DonationStatusFailed,
		"0x06": model.DonationStatusConfirmed,
	}
	amounts := []string{"12.5", "3", "7.25", "100", "1", "40"}
	i := 0
	for _, hash := range []string{"0x01", "0x02", "0x03", "0x04", "0x05", "0x06"} {
		f.pending(t, c, hash, "donor-"+hash, amounts[i])
		i++
	}

	var wg sync.WaitGroup
	for hash, outcome := range outcomes {
		for n := 0; n < 2; n++ {
			wg.Add(1)
			go func(hash string, outcome model.DonationStatus) {
				defer wg.Done()
				fin := confirmed(hash)
				fin.Outcome = outcome
				_, err := f.reconcile.OnTransactionFinalized(ctx, fin)
				assert.NoError(t, err)
			}(hash, outcome)
		}
	}
	wg.Wait()

	var confirmedRows []model.DonationModel
	require.NoError(t, f.db.Where("campaign_id = ? AND status = ?", c.Id, model.DonationStatusConfirmed).Find(&confirmedRows).Error)
	sum := decimal.Zero
	for _, d := range confirmedRows {
		sum = sum.Add(d.Amount)
	}

	got := f.campaign(t, c.Id)
	decEq(t, sum.String(), got.RaisedAmount)
	decEq(t, "159.75", got.RaisedAmount)
	assert.EqualValues(t, len(confirmedRows), got.DonorCount)
}

func TestSweepReappliesUnapplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "0")
	f.pending(t, c, "0xs1", "donor-1", "0.5")
	f.pending(t, c, "0xs2", "donor-2", "0.25")

	// 模拟状态已确认但汇总未写入的中断
	require.NoError(t, f.donations.UpdateStatus(ctx, "0xs1", model.DonationStatusConfirmed, 1, 1, decimal.Zero))
	require.NoError(t, f.donations.UpdateStatus(ctx, "0xs2", model.DonationStatusConfirmed, 1, 1, decimal.Zero))

	applied, err := f.reconcile.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = f.reconcile.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, applied)

	got := f.campaign(t, c.Id)
	decEq(t, "0.75", got.RaisedAmount)
	assert.EqualValues(t, 2, got.DonorCount)
	assert.Len(t, f.events, 2)
}

func TestDuplicateNotificationHealsUnapplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "0")
	f.pending(t, c, "0xheal", "donor-1", "0.5")
	require.NoError(t, f.donations.UpdateStatus(ctx, "0xheal", model.DonationStatusConfirmed, 1, 1, decimal.Zero))

	for i := 0; i < 2; i++ {
		d, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0xheal"))
		require.NoError(t, err)
		assert.NotNil(t, d.AppliedAt)
	}

	got := f.campaign(t, c.Id)
	decEq(t, "0.5", got.RaisedAmount)
	assert.EqualValues(t, 1, got.DonorCount)
}

func TestAggregateConflictRollsBackConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "0")
	f.pending(t, c, "0xconflict", "donor-1", "0.5")

	// 每次写回前抢先修改版本号，模拟持续的并发写
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:bump_version", bumpCampaignVersion))

	_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0xconflict"))
	assert.ErrorIs(t, err, ErrAggregateUpdateConflict)

	d, err := f.donations.Get(ctx, "0xconflict")
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusPending, d.Status)
	assert.Nil(t, d.AppliedAt)

	require.NoError(t, f.db.Callback().Update().Remove("test:bump_version"))

	d, err = f.reconcile.OnTransactionFinalized(ctx, confirmed("0xconflict"))
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusConfirmed, d.Status)
	decEq(t, "0.5", f.campaign(t, c.Id).RaisedAmount)
}

func TestReconcileInvalidatesStatsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mem := newMemoryCache(t)
	f.reconcile = NewReconcileLogic(f.db, f.donations, f.campaigns, mem, nil)
	cached := NewCachedAnalytics(f.analytics, mem, time.Minute)

	c := f.seedCampaign(t, money.ETH, "10", "0")
	f.pending(t, c, "0xcache", "donor-1", "0.5")

	stats, err := cached.CampaignStats(ctx, c.Id)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDonations)

	_, err = f.reconcile.OnTransactionFinalized(ctx, confirmed("0xcache"))
	require.NoError(t, err)

	stats, err = cached.CampaignStats(ctx, c.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalDonations)
	decEq(t, "0.5", stats.TotalAmount)
}

// confirmBeforeSetCache 第一次写入活动统计前先完成一笔确认，使计算结果落后于提交
type confirmBeforeSetCache struct {
	cache.Cache
	once    sync.Once
	trigger func()
}

func (c *confirmBeforeSetCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.HasPrefix(key, CampaignStatsKey("")) {
		c.once.Do(c.trigger)
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

func TestStatsComputedBeforeConfirmationNotServed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "0")
	f.pending(t, c, "0xrace", "donor-1", "0.5")

	wrapped := &confirmBeforeSetCache{Cache: newMemoryCache(t)}
	f.reconcile = NewReconcileLogic(f.db, f.donations, f.campaigns, wrapped, nil)
	wrapped.trigger = func() {
		_, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0xrace"))
		assert.NoError(t, err)
	}
	cached := NewCachedAnalytics(f.analytics, wrapped, time.Minute)

	stats, err := cached.CampaignStats(ctx, c.Id)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDonations)

	stats, err = cached.CampaignStats(ctx, c.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalDonations)
	decEq(t, "0.5", stats.TotalAmount)

	platform, err := cached.PlatformStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, platform.TotalDonations)
}

// bumpCampaignVersionOnce 只在第一次写回活动前抢先修改版本号
func bumpCampaignVersionOnce() func(*gorm.DB) {
	var fired atomic.Bool
	return func(tx *gorm.DB) {
		if tx.Statement.Table != "campaign" || !fired.CompareAndSwap(false, true) {
			return
		}
		bumpCampaignVersion(tx)
	}
}

func TestAggregateConflictRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCampaign(t, money.ETH, "10", "1")
	f.pending(t, c, "0xretry", "donor-1", "0.5")

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:bump_version_once", bumpCampaignVersionOnce()))
	t.Cleanup(func() { _ = f.db.Callback().Update().Remove("test:bump_version_once") })

	d, err := f.reconcile.OnTransactionFinalized(ctx, confirmed("0xretry"))
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusConfirmed, d.Status)
	assert.NotNil(t, d.AppliedAt)

	// 重复投递不再计入
	_, err = f.reconcile.OnTransactionFinalized(ctx, confirmed("0xretry"))
	require.NoError(t, err)

	got := f.campaign(t, c.Id)
	decEq(t, "1.5", got.RaisedAmount)
	assert.EqualValues(t, 1, got.DonorCount)
	// 一次被抢先修改，一次本次写回
	assert.EqualValues(t, 2, got.Version)
	assert.Len(t, f.events, 1)
}
