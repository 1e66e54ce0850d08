package event

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsPublisher 发布到 NATS subject
type NatsPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNatsPublisher(url, subject string, opts ...nats.Option) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NatsPublisher{nc: nc, subject: subject}, nil
}

func (p *NatsPublisher) PublishDonationConfirmed(_ context.Context, evt DonationConfirmed) error {
	payload, err := encode(evt)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", p.subject, err)
	}
	return nil
}

func (p *NatsPublisher) Close() error {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
	return nil
}
