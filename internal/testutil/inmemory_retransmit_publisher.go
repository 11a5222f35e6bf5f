package testutil

import (
	"context"
	"sync"
)

// InMemoryRetransmitPublisher implements retransmit.Publisher and
// captures the published access keys for assertions
type InMemoryRetransmitPublisher struct {
	mu   sync.Mutex
	keys []string

	// PublishErr, when set, fails every publish
	PublishErr error
}

// NewInMemoryRetransmitPublisher creates a capturing publisher
func NewInMemoryRetransmitPublisher() *InMemoryRetransmitPublisher {
	return &InMemoryRetransmitPublisher{}
}

func (p *InMemoryRetransmitPublisher) PublishRetransmit(ctx context.Context, accessKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.keys = append(p.keys, accessKey)
	return nil
}

func (p *InMemoryRetransmitPublisher) Close() error {
	return nil
}

// Published returns the access keys published so far
func (p *InMemoryRetransmitPublisher) Published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}
