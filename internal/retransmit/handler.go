package retransmit

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/pubsub"
	pubsubRouter "github.com/giropos/fiscal/internal/pubsub/router"
)

// Retransmitter performs one retransmission attempt for a queued key
type Retransmitter interface {
	Retransmit(ctx context.Context, accessKey string) (*contingency.Record, error)
}

// Handler interface for processing retransmission commands
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub        pubsub.PubSub
	config        *config.ContingencyConfig
	retransmitter Retransmitter
	logger        *logger.Logger
}

// NewHandler creates a new retransmission handler
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	retransmitter Retransmitter,
	logger *logger.Logger,
) (Handler, error) {
	return &handler{
		pubSub:        pubSub,
		config:        &cfg.Contingency,
		retransmitter: retransmitter,
		logger:        logger,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"retransmit_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// processMessage processes a single retransmission command. Only
// transport failures are returned for retry; any other outcome is
// terminal for this command and must not spin the backoff loop.
func (h *handler) processMessage(msg *message.Message) error {
	var cmd Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		h.logger.Errorw("failed to unmarshal retransmission command",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil // Don't retry on unmarshal errors
	}

	record, err := h.retransmitter.Retransmit(msg.Context(), cmd.AccessKey)
	if err != nil {
		if ierr.IsTransport(err) {
			h.logger.Warnw("authority still unreachable, will retry",
				"access_key", cmd.AccessKey,
				"message_uuid", msg.UUID,
			)
			return err
		}
		h.logger.Errorw("retransmission failed permanently for this attempt",
			"error", err,
			"access_key", cmd.AccessKey,
			"message_uuid", msg.UUID,
		)
		return nil
	}

	h.logger.Infow("queued document retransmitted",
		"access_key", cmd.AccessKey,
		"status", record.Status,
		"protocol", record.Protocol,
	)
	return nil
}
