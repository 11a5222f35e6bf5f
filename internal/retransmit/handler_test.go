package retransmit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetransmitter struct {
	err  error
	keys []string
}

func (s *stubRetransmitter) Retransmit(ctx context.Context, accessKey string) (*contingency.Record, error) {
	s.keys = append(s.keys, accessKey)
	if s.err != nil {
		return nil, s.err
	}
	return &contingency.Record{
		AccessKey: accessKey,
		Status:    types.ContingencyStatusTransmitted,
		Protocol:  "135260000000001",
	}, nil
}

func newTestHandler(t *testing.T, retransmitter Retransmitter) *handler {
	t.Helper()
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	h, err := NewHandler(nil, cfg, retransmitter, log)
	require.NoError(t, err)
	return h.(*handler)
}

func commandMessage(t *testing.T, accessKey string) *message.Message {
	t.Helper()
	payload, err := json.Marshal(Command{AccessKey: accessKey})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func TestProcessMessageSuccess(t *testing.T) {
	stub := &stubRetransmitter{}
	h := newTestHandler(t, stub)

	err := h.processMessage(commandMessage(t, "35260112345678000190650010000000429123456780"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"35260112345678000190650010000000429123456780"}, stub.keys)
}

func TestProcessMessageTransportErrorIsRetried(t *testing.T) {
	stub := &stubRetransmitter{
		err: ierr.NewError("connection refused").Mark(ierr.ErrTransport),
	}
	h := newTestHandler(t, stub)

	err := h.processMessage(commandMessage(t, "35260112345678000190650010000000429123456780"))
	assert.Error(t, err)
	assert.True(t, ierr.IsTransport(err))
}

func TestProcessMessageRejectionIsNotRetried(t *testing.T) {
	stub := &stubRetransmitter{
		err: ierr.NewError("rejected").Mark(ierr.ErrAuthorityRejection),
	}
	h := newTestHandler(t, stub)

	// A rejection verdict cannot change on retry; the command must be
	// acked so the backoff loop does not spin on it
	err := h.processMessage(commandMessage(t, "35260112345678000190650010000000429123456780"))
	assert.NoError(t, err)
}

func TestProcessMessageMalformedPayloadIsDropped(t *testing.T) {
	stub := &stubRetransmitter{}
	h := newTestHandler(t, stub)

	err := h.processMessage(message.NewMessage(watermill.NewUUID(), []byte("{not json")))
	assert.NoError(t, err)
	assert.Empty(t, stub.keys)
}
