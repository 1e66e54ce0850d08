package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanAcceptDonation(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		campaign CampaignModel
		want     bool
	}{
		{"进行中", CampaignModel{Status: CampaignStatusActive, TargetAmount: decimal.NewFromInt(10), RaisedAmount: decimal.NewFromInt(1)}, true},
		{"未开始", CampaignModel{Status: CampaignStatusDraft, TargetAmount: decimal.NewFromInt(10)}, false},
		{"暂停", CampaignModel{Status: CampaignStatusPaused, TargetAmount: decimal.NewFromInt(10)}, false},
		{"已截止", CampaignModel{Status: CampaignStatusActive, TargetAmount: decimal.NewFromInt(10), EndDate: &past}, false},
		{"截止前", CampaignModel{Status: CampaignStatusActive, TargetAmount: decimal.NewFromInt(10), EndDate: &future}, true},
		{"已达目标", CampaignModel{Status: CampaignStatusActive, TargetAmount: decimal.NewFromInt(10), RaisedAmount: decimal.NewFromInt(10)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.campaign.CanAcceptDonation(now))
		})
	}
}

func TestMilestoneTransitions(t *testing.T) {
	assert.True(t, MilestoneStatusPending.CanTransitionTo(MilestoneStatusSubmitted))
	assert.True(t, MilestoneStatusSubmitted.CanTransitionTo(MilestoneStatusRejected))
	assert.True(t, MilestoneStatusRejected.CanTransitionTo(MilestoneStatusSubmitted))
	assert.True(t, MilestoneStatusVerified.CanTransitionTo(MilestoneStatusFundsReleased))
	assert.False(t, MilestoneStatusPending.CanTransitionTo(MilestoneStatusVerified))
	assert.False(t, MilestoneStatusFundsReleased.CanTransitionTo(MilestoneStatusPending))
}

func TestCampaignTransitions(t *testing.T) {
	assert.True(t, CampaignStatusPendingApproval.CanTransitionTo(CampaignStatusActive))
	assert.False(t, CampaignStatusCompleted.CanTransitionTo(CampaignStatusActive))
	for _, from := range []CampaignStatus{CampaignStatusDraft, CampaignStatusPendingApproval, CampaignStatusActive, CampaignStatusPaused, CampaignStatusUnderReview} {
		assert.False(t, from.CanTransitionTo(CampaignStatusCompleted), from)
	}
	assert.False(t, CampaignStatusCancelled.CanTransitionTo(CampaignStatusActive))
	assert.True(t, DonationStatusFailed.Terminal())
	assert.False(t, DonationStatusPending.Terminal())
}
