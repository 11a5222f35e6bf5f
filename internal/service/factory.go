package service

import (
	"time"

	"github.com/giropos/fiscal/internal/authority"
	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/contingency"
	"github.com/giropos/fiscal/internal/domain/sequence"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/retransmit"
	"github.com/giropos/fiscal/internal/signer"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// Repositories
	ContingencyRepo contingency.Repository
	SequenceCounter sequence.Counter

	// Pipeline collaborators
	AuthorityClient authority.Client
	Signer          *signer.Signer

	// Publishers
	RetransmitPublisher retransmit.Publisher

	// Now is the clock; tests pin it for reproducible documents
	Now func() time.Time
}

func (p ServiceParams) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// NewServiceParams builds params with the real clock
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	contingencyRepo contingency.Repository,
	sequenceCounter sequence.Counter,
	authorityClient authority.Client,
	documentSigner *signer.Signer,
	retransmitPublisher retransmit.Publisher,
) ServiceParams {
	return ServiceParams{
		Logger:              logger,
		Config:              config,
		ContingencyRepo:     contingencyRepo,
		SequenceCounter:     sequenceCounter,
		AuthorityClient:     authorityClient,
		Signer:              documentSigner,
		RetransmitPublisher: retransmitPublisher,
		Now:                 time.Now,
	}
}
