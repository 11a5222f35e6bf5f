package service

import (
	"context"

	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
)

// RetransmissionService drains the contingency queue
type RetransmissionService interface {
	// Retransmit submits one queued document to the authority
	Retransmit(ctx context.Context, accessKey string) (*contingency.Record, error)
	// RetransmitPending enqueues a retransmission command for every
	// pending record and returns how many were enqueued
	RetransmitPending(ctx context.Context) (int, error)
	// ListPending returns the queue, oldest first
	ListPending(ctx context.Context) ([]*contingency.Record, error)
}

type retransmissionService struct {
	ServiceParams
}

// NewRetransmissionService creates a retransmission service
func NewRetransmissionService(params ServiceParams) RetransmissionService {
	return &retransmissionService{ServiceParams: params}
}

func (s *retransmissionService) Retransmit(ctx context.Context, accessKey string) (*contingency.Record, error) {
	record, err := s.ContingencyRepo.Get(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	if record.Status == types.ContingencyStatusTransmitted {
		return record, nil
	}

	resp, err := s.AuthorityClient.Authorize(ctx, record.SignedXML)
	if err != nil {
		return nil, err
	}

	if !resp.Accepted() {
		// Late rejection: the record stays pending for an operator to
		// inspect; retrying the same bytes cannot change the verdict
		s.Logger.Errorw("late rejection of contingency document",
			"access_key", accessKey,
			"status_code", resp.StatusCode,
			"message", resp.Message,
		)
		return nil, ierr.NewError("authority rejected the queued document").
			WithHintf("Rejection %s: %s", resp.StatusCode, resp.Message).
			WithReportableDetails(map[string]any{
				"access_key":  accessKey,
				"status_code": resp.StatusCode,
			}).
			Mark(ierr.ErrAuthorityRejection)
	}

	if err := s.ContingencyRepo.MarkTransmitted(ctx, accessKey, resp.Protocol); err != nil {
		return nil, err
	}

	s.Logger.Infow("contingency document transmitted",
		"access_key", accessKey,
		"protocol", resp.Protocol,
	)
	return s.ContingencyRepo.Get(ctx, accessKey)
}

func (s *retransmissionService) RetransmitPending(ctx context.Context) (int, error) {
	pending, err := s.ContingencyRepo.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, record := range pending {
		if err := s.RetransmitPublisher.PublishRetransmit(ctx, record.AccessKey); err != nil {
			s.Logger.Warnw("could not enqueue retransmission",
				"access_key", record.AccessKey,
				"error", err,
			)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *retransmissionService) ListPending(ctx context.Context) ([]*contingency.Record, error) {
	return s.ContingencyRepo.ListPending(ctx)
}
