package service

import (
	"testing"
	"time"

	"github.com/giropos/fiscal/internal/domain/contingency"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/testutil"
	"github.com/giropos/fiscal/internal/types"
	"github.com/stretchr/testify/suite"
)

type RetransmissionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RetransmissionService
}

func TestRetransmissionService(t *testing.T) {
	suite.Run(t, new(RetransmissionServiceSuite))
}

func (s *RetransmissionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRetransmissionService(ServiceParams{
		Logger:              s.GetLogger(),
		Config:              s.GetConfig(),
		ContingencyRepo:     s.GetStores().ContingencyRepo,
		SequenceCounter:     s.GetStores().SequenceCounter,
		AuthorityClient:     s.GetAuthority(),
		RetransmitPublisher: s.GetPublisher(),
	})
}

const queuedKey = "35260112345678000190650010000000429123456780"

func (s *RetransmissionServiceSuite) savePending(key string) {
	record := &contingency.Record{
		AccessKey: key,
		SignedXML: `<NFe><infNFe Id="NFe` + key + `"></infNFe></NFe>`,
		Status:    types.ContingencyStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.NoError(s.GetStores().ContingencyRepo.Save(s.GetContext(), record))
}

func (s *RetransmissionServiceSuite) TestRetransmitAccepted() {
	s.savePending(queuedKey)
	s.GetAuthority().ScriptAccept("135260000000077")

	record, err := s.service.Retransmit(s.GetContext(), queuedKey)
	s.NoError(err)

	s.Equal(types.ContingencyStatusTransmitted, record.Status)
	s.Equal("135260000000077", record.Protocol)
	s.NotNil(record.TransmittedAt)

	pending, err := s.service.ListPending(s.GetContext())
	s.NoError(err)
	s.Empty(pending)
}

func (s *RetransmissionServiceSuite) TestRetransmitAlreadyTransmittedSkipsRoundTrip() {
	s.savePending(queuedKey)
	s.GetAuthority().ScriptAccept("135260000000077")

	_, err := s.service.Retransmit(s.GetContext(), queuedKey)
	s.NoError(err)
	s.Len(s.GetAuthority().Authorized, 1)

	record, err := s.service.Retransmit(s.GetContext(), queuedKey)
	s.NoError(err)
	s.Equal(types.ContingencyStatusTransmitted, record.Status)
	s.Len(s.GetAuthority().Authorized, 1, "no second submission")
}

func (s *RetransmissionServiceSuite) TestRetransmitLateRejectionKeepsRecordPending() {
	s.savePending(queuedKey)
	s.GetAuthority().ScriptReject("613", "Chave de Acesso invalida")

	_, err := s.service.Retransmit(s.GetContext(), queuedKey)
	s.Error(err)
	s.True(ierr.IsAuthorityRejection(err))

	record, err := s.GetStores().ContingencyRepo.Get(s.GetContext(), queuedKey)
	s.NoError(err)
	s.Equal(types.ContingencyStatusPending, record.Status)
}

func (s *RetransmissionServiceSuite) TestRetransmitTransportFailurePropagates() {
	s.savePending(queuedKey)
	s.GetAuthority().ScriptTransportFailure()

	_, err := s.service.Retransmit(s.GetContext(), queuedKey)
	s.Error(err)
	s.True(ierr.IsTransport(err))

	record, err := s.GetStores().ContingencyRepo.Get(s.GetContext(), queuedKey)
	s.NoError(err)
	s.Equal(types.ContingencyStatusPending, record.Status)
}

func (s *RetransmissionServiceSuite) TestRetransmitUnknownKey() {
	_, err := s.service.Retransmit(s.GetContext(), queuedKey)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *RetransmissionServiceSuite) TestRetransmitPendingEnqueuesAll() {
	first := "35260112345678000190650010000000019123456781"
	second := "35260112345678000190650010000000029123456782"
	s.savePending(first)
	s.savePending(second)

	count, err := s.service.RetransmitPending(s.GetContext())
	s.NoError(err)
	s.Equal(2, count)
	s.ElementsMatch([]string{first, second}, s.GetPublisher().Published())
}
