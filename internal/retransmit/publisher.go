// Package retransmit moves queued contingency documents back to the
// authority. Emission publishes one command per queued access key; the
// handler consumes them with backoff so a still-unreachable authority
// is probed, not hammered.
package retransmit

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/pubsub"
)

// Command asks the worker to retransmit one queued document
type Command struct {
	AccessKey string `json:"access_key"`
}

// Publisher interface for producing retransmission commands
type Publisher interface {
	PublishRetransmit(ctx context.Context, accessKey string) error
	Close() error
}

type retransmitPublisher struct {
	pubSub pubsub.PubSub
	config *config.ContingencyConfig
	logger *logger.Logger
}

// NewPublisher creates a new publisher on the contingency topic
func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (Publisher, error) {
	return &retransmitPublisher{
		pubSub: pubSub,
		config: &cfg.Contingency,
		logger: logger,
	}, nil
}

func (p *retransmitPublisher) PublishRetransmit(ctx context.Context, accessKey string) error {
	payload, err := json.Marshal(Command{AccessKey: accessKey})
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("access_key", accessKey)

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish retransmission command",
			"error", err,
			"access_key", accessKey,
		)
		return err
	}

	p.logger.Debugw("published retransmission command",
		"access_key", accessKey,
		"topic", p.config.Topic,
	)
	return nil
}

func (p *retransmitPublisher) Close() error {
	return p.pubSub.Close()
}
