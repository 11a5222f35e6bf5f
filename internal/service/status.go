package service

import (
	"context"

	"github.com/giropos/fiscal/internal/types"
)

// AuthorityStatus is the outcome of one health probe
type AuthorityStatus struct {
	Active      bool              `json:"active"`
	StatusCode  string            `json:"status_code"`
	Message     string            `json:"message"`
	Environment types.Environment `json:"environment"`
}

// StatusService probes the authority health endpoint
type StatusService interface {
	CheckAuthority(ctx context.Context) (*AuthorityStatus, error)
}

type statusService struct {
	ServiceParams
}

// NewStatusService creates a status service
func NewStatusService(params ServiceParams) StatusService {
	return &statusService{ServiceParams: params}
}

func (s *statusService) CheckAuthority(ctx context.Context) (*AuthorityStatus, error) {
	resp, err := s.AuthorityClient.CheckStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &AuthorityStatus{
		Active:      resp.Healthy(),
		StatusCode:  resp.StatusCode,
		Message:     resp.Message,
		Environment: s.Config.Fiscal.Environment,
	}, nil
}
