package testutil

import (
	"context"
	"time"

	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/contingency"
	"github.com/giropos/fiscal/internal/domain/sequence"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/signer"
	"github.com/giropos/fiscal/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	ContingencyRepo contingency.Repository
	SequenceCounter sequence.Counter
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	authority *StubAuthorityClient
	publisher *InMemoryRetransmitPublisher
	signer    *signer.Signer
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Emitter = config.EmitterConfig{
		TaxID:        "12345678000190",
		StateTaxID:   "123456789",
		Name:         "Mercado Exemplo LTDA",
		TradeName:    "Mercado Exemplo",
		Address:      "Rua das Flores",
		City:         "Sao Paulo",
		CityCode:     "3550308",
		Jurisdiction: "SP",
		PostalCode:   "01001000",
	}
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	cred, err := GenerateTestCredential()
	if err != nil {
		s.T().Fatalf("failed to generate test credential: %v", err)
	}
	s.signer = signer.NewSigner(cred, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.stores = Stores{
		ContingencyRepo: NewInMemoryContingencyStore(),
		SequenceCounter: NewInMemoryCounter(),
	}
	s.authority = NewStubAuthorityClient()
	s.publisher = NewInMemoryRetransmitPublisher()
	s.now = time.Now().UTC()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetAuthority returns the scripted authority client
func (s *BaseServiceTestSuite) GetAuthority() *StubAuthorityClient {
	return s.authority
}

// GetPublisher returns the capturing retransmit publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryRetransmitPublisher {
	return s.publisher
}

// GetSigner returns a signer backed by a throwaway credential
func (s *BaseServiceTestSuite) GetSigner() *signer.Signer {
	return s.signer
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
