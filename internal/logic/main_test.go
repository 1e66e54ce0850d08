package logic

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/blues/donation/internal/cache"
	"github.com/blues/donation/internal/event"
	"github.com/blues/donation/internal/logger"
	"github.com/blues/donation/internal/model"
	"github.com/blues/donation/internal/money"
	"github.com/blues/donation/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.SetDefaultLogger(logger.NewNop())
	os.Exit(m.Run())
}

type fixture struct {
	db        *gorm.DB
	donations *DonationLogic
	campaigns *CampaignLogic
	reconcile *ReconcileLogic
	analytics *AnalyticsLogic
	events    <-chan []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	policy, err := money.NewPolicy(
		map[string]string{"ETH": "0.001", "USDC": "1", "DAI": "1"},
		nil,
		map[string]string{"ETH": "0.01", "USDC": "10"},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	publisher := event.NewMemPublisher()

	donations := NewDonationLogic(db, policy)
	campaigns := NewCampaignLogic(db, 5)
	return &fixture{
		db:        db,
		donations: donations,
		campaigns: campaigns,
		reconcile: NewReconcileLogic(db, donations, campaigns, cache.Nop{}, publisher),
		analytics: NewAnalyticsLogic(db),
		events:    publisher.Subscribe(ctx, 64),
	}
}

func (f *fixture) seedCampaign(t *testing.T, currency money.Currency, target, raised string) *model.CampaignModel {
	t.Helper()

	c := &model.CampaignModel{
		Id:           uuid.NewString(),
		Title:        "clean water",
		CreatorId:    "creator-1",
		Currency:     currency,
		TargetAmount: decimal.RequireFromString(target),
		RaisedAmount: decimal.RequireFromString(raised),
		StartDate:    time.Now().Add(-time.Hour),
		Status:       model.CampaignStatusActive,
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) pending(t *testing.T, campaign *model.CampaignModel, txHash, donor, amount string) *model.DonationModel {
	t.Helper()

	d, err := f.donations.Create(context.Background(), DraftDonation{
		TransactionHash: txHash,
		DonorId:         donor,
		CampaignId:      campaign.Id,
		Amount:          money.MustParse(amount, campaign.Currency.String()),
		Network:         "ethereum",
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) campaign(t *testing.T, id string) *model.CampaignModel {
	t.Helper()

	var c model.CampaignModel
	require.NoError(t, f.db.First(&c, "id = ?", id).Error)
	return &c
}

func confirmed(txHash string) Finalization {
	return Finalization{
		TransactionHash: txHash,
		Outcome:         model.DonationStatusConfirmed,
		BlockNumber:     100,
		GasUsed:         21000,
		GasFee:          decimal.RequireFromString("0.000021"),
		Source:          "test",
	}
}

func failed(txHash string) Finalization {
	f := confirmed(txHash)
	f.Outcome = model.DonationStatusFailed
	return f
}

func decEq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}
