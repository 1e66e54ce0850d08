package event

import (
	"context"
	"sync"
)

// MemPublisher 进程内广播，未配置 NATS 时使用；慢订阅者直接丢弃
type MemPublisher struct {
	mu   sync.RWMutex
	subs []chan []byte
}

func NewMemPublisher() *MemPublisher {
	return &MemPublisher{}
}

func (p *MemPublisher) PublishDonationConfirmed(_ context.Context, evt DonationConfirmed) error {
	payload, err := encode(evt)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe 订阅原始 JSON 负载，ctx 结束后关闭通道
func (p *MemPublisher) Subscribe(ctx context.Context, buffer int) <-chan []byte {
	ch := make(chan []byte, buffer)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		for i, c := range p.subs {
			if c == ch {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (p *MemPublisher) Close() error {
	return nil
}
