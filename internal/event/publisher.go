package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DonationConfirmed 捐赠确认事件，供通知服务消费
type DonationConfirmed struct {
	DonationId      string    `json:"donation_id"`
	DonorId         string    `json:"donor_id"`
	CampaignId      string    `json:"campaign_id"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	TransactionHash string    `json:"transaction_hash"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// Publisher 事件发布
type Publisher interface {
	PublishDonationConfirmed(ctx context.Context, evt DonationConfirmed) error
	Close() error
}

func encode(evt DonationConfirmed) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode donation event: %w", err)
	}
	return payload, nil
}
