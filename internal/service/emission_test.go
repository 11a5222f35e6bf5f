package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/giropos/fiscal/internal/accesskey"
	"github.com/giropos/fiscal/internal/authority"
	"github.com/giropos/fiscal/internal/domain/emission"
	"github.com/giropos/fiscal/internal/domain/sequence"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/signer"
	"github.com/giropos/fiscal/internal/testutil"
	"github.com/giropos/fiscal/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type EmissionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service EmissionService
}

func TestEmissionService(t *testing.T) {
	suite.Run(t, new(EmissionServiceSuite))
}

func (s *EmissionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewEmissionService(s.params())
}

func (s *EmissionServiceSuite) params() ServiceParams {
	return ServiceParams{
		Logger:              s.GetLogger(),
		Config:              s.GetConfig(),
		ContingencyRepo:     s.GetStores().ContingencyRepo,
		SequenceCounter:     s.GetStores().SequenceCounter,
		AuthorityClient:     s.GetAuthority(),
		Signer:              s.GetSigner(),
		RetransmitPublisher: s.GetPublisher(),
		Now:                 s.GetNow,
	}
}

func (s *EmissionServiceSuite) newRequest() *emission.Request {
	return &emission.Request{
		ID: types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EMISSION),
		Emitter: emission.Emitter{
			TaxID:        "12345678000190",
			StateTaxID:   "123456789",
			Name:         "Mercado Exemplo LTDA",
			TradeName:    "Mercado Exemplo",
			Address:      "Rua das Flores",
			City:         "Sao Paulo",
			CityCode:     "3550308",
			Jurisdiction: "SP",
			PostalCode:   "01001000",
		},
		Items: []emission.LineItem{
			{
				Number:      1,
				Code:        "SKU001",
				EAN:         "7891234567895",
				Description: "Cafe Torrado 500g",
				NCM:         "09012100",
				CFOP:        "5102",
				Unit:        "UN",
				Quantity:    decimal.NewFromFloat(2),
				UnitValue:   decimal.NewFromFloat(10),
				TotalValue:  decimal.NewFromFloat(20),
				TaxOrigin:   "0",
				ICMSCode:    "102",
				PISCode:     "07",
				COFINSCode:  "07",
			},
		},
		TotalItems:    decimal.NewFromFloat(20),
		TotalDiscount: decimal.Zero,
		PaymentMethod: types.PaymentMethodInstantPay,
		PaymentValue:  decimal.NewFromFloat(20),
		Series:        1,
		Environment:   types.EnvironmentStaging,
	}
}

func (s *EmissionServiceSuite) scope() sequence.Scope {
	return sequence.Scope{
		Jurisdiction: "SP",
		EmitterTaxID: "12345678000190",
		Series:       1,
	}
}

func (s *EmissionServiceSuite) TestEmitAuthorized() {
	s.GetAuthority().ScriptAccept("135260000000042")

	result, err := s.service.Emit(s.GetContext(), s.newRequest())
	s.NoError(err)

	s.Equal(types.EmissionStatusAuthorized, result.Status)
	s.Equal(uint64(1), result.Sequence)
	s.NotNil(result.Protocol)
	s.Equal("135260000000042", *result.Protocol)
	s.Equal(statusLineAuthorized, result.StatusLine)

	s.NoError(accesskey.Validate(result.AccessKey))
	s.Equal("1", result.AccessKey[34:35], "online emission type digit")

	s.Contains(result.SignedXML, "<Signature")

	// The verification payload is built from the digest the signature
	// embedded; a result whose digest cannot be read back has no QR
	digest, err := signer.ExtractDigest(result.SignedXML)
	s.NoError(err)
	s.NotEmpty(digest)
	s.Contains(result.QRCodeURL, "chNFe="+result.AccessKey)
	s.NotEmpty(result.QRCodePNG)
	s.NotEmpty(result.Receipt)
	s.Contains(string(result.Receipt), "135260000000042")

	// The number was consumed
	next, err := s.GetStores().SequenceCounter.Current(s.GetContext(), s.scope())
	s.NoError(err)
	s.Equal(uint64(2), next)

	s.Empty(s.GetPublisher().Published())
}

func (s *EmissionServiceSuite) TestEmitRejectedDoesNotConsumeSequence() {
	s.GetAuthority().ScriptReject("539", "Duplicidade de NF-e")

	result, err := s.service.Emit(s.GetContext(), s.newRequest())
	s.NoError(err)

	s.Equal(types.EmissionStatusRejected, result.Status)
	s.Equal("539", result.RejectionCode)
	s.Equal("Duplicidade de NF-e", result.RejectionMessage)
	s.Nil(result.Protocol)
	s.Empty(result.Receipt)
	s.Empty(result.QRCodeURL)
	s.NotEmpty(result.SignedXML)

	// The number is still available and the next sale reuses it
	next, err := s.GetStores().SequenceCounter.Current(s.GetContext(), s.scope())
	s.NoError(err)
	s.Equal(uint64(1), next)

	s.GetAuthority().ScriptAccept("135260000000043")
	retry, err := s.service.Emit(s.GetContext(), s.newRequest())
	s.NoError(err)
	s.Equal(uint64(1), retry.Sequence)
}

func (s *EmissionServiceSuite) TestEmitTransportFailureQueuesContingency() {
	s.GetAuthority().ScriptTransportFailure()

	result, err := s.service.Emit(s.GetContext(), s.newRequest())
	s.NoError(err)

	s.Equal(types.EmissionStatusContingencyQueued, result.Status)
	s.Equal(statusLineContingency, result.StatusLine)
	s.Nil(result.Protocol)

	// Re-keyed for offline emission
	s.NoError(accesskey.Validate(result.AccessKey))
	s.Equal("9", result.AccessKey[34:35], "offline emission type digit")

	// Durable record saved before the result came back
	record, err := s.GetStores().ContingencyRepo.Get(s.GetContext(), result.AccessKey)
	s.NoError(err)
	s.Equal(types.ContingencyStatusPending, record.Status)
	s.Equal(result.SignedXML, record.SignedXML)

	// Number consumed: the sale happened, even offline
	next, err := s.GetStores().SequenceCounter.Current(s.GetContext(), s.scope())
	s.NoError(err)
	s.Equal(uint64(2), next)

	// Retransmission enqueued
	s.Equal([]string{result.AccessKey}, s.GetPublisher().Published())

	// Receipt carries the pending-authorization banner, folded to the
	// printer's plain-ASCII text
	s.Contains(string(result.Receipt), "EMITIDA EM CONTINGENCIA - Pendente de Autorizacao")
}

func (s *EmissionServiceSuite) TestEmitContingencySaveFailureFailsEmission() {
	s.GetAuthority().ScriptTransportFailure()
	store := s.GetStores().ContingencyRepo.(*testutil.InMemoryContingencyStore)
	store.SaveErr = ierr.NewError("disk full").Mark(ierr.ErrPersistence)

	_, err := s.service.Emit(s.GetContext(), s.newRequest())
	s.Error(err)
	s.True(ierr.IsPersistence(err))

	// Nothing durable happened, so the number was not consumed
	next, err := s.GetStores().SequenceCounter.Current(s.GetContext(), s.scope())
	s.NoError(err)
	s.Equal(uint64(1), next)
	s.Empty(s.GetPublisher().Published())
}

func (s *EmissionServiceSuite) TestEmitValidatesRequest() {
	req := s.newRequest()
	req.Items = nil

	_, err := s.service.Emit(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *EmissionServiceSuite) TestConcurrentEmissionsGetUniqueSequences() {
	const n = 10

	var wg sync.WaitGroup
	results := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.service.Emit(s.GetContext(), s.newRequest())
			if s.NoError(err) {
				results <- result.Sequence
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[uint64]bool{}
	for seq := range results {
		s.False(seen[seq], "sequence %d embedded in two documents", seq)
		seen[seq] = true
	}
	s.Len(seen, n)
}

// rendezvousAuthority blocks every authorization until released,
// signalling each arrival, so tests can observe in-flight round trips
type rendezvousAuthority struct {
	arrived chan struct{}
	release chan struct{}
}

func (a *rendezvousAuthority) Authorize(ctx context.Context, signedXML string) (*authority.Response, error) {
	a.arrived <- struct{}{}
	<-a.release
	return &authority.Response{
		StatusCode: "100",
		Message:    "Autorizado o uso da NF-e",
		Protocol:   "135260000000001",
	}, nil
}

func (a *rendezvousAuthority) CheckStatus(ctx context.Context) (*authority.Response, error) {
	return &authority.Response{StatusCode: "107"}, nil
}

func (s *EmissionServiceSuite) TestIndependentSeriesDoNotSerialize() {
	auth := &rendezvousAuthority{
		arrived: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	params := s.params()
	params.AuthorityClient = auth
	service := NewEmissionService(params)

	var wg sync.WaitGroup
	for _, series := range []int{1, 2} {
		wg.Add(1)
		go func(series int) {
			defer wg.Done()
			req := s.newRequest()
			req.Series = series
			result, err := service.Emit(s.GetContext(), req)
			if s.NoError(err) {
				s.Equal(types.EmissionStatusAuthorized, result.Status)
			}
		}(series)
	}

	// Both series must reach the authority while the other round trip
	// is still in flight
	inFlight := 0
	deadline := time.After(5 * time.Second)
	for inFlight < 2 {
		select {
		case <-auth.arrived:
			inFlight++
		case <-deadline:
			close(auth.release)
			wg.Wait()
			s.FailNowf("emissions serialized", "only %d round trips in flight", inFlight)
			return
		}
	}

	close(auth.release)
	wg.Wait()
}

func (s *EmissionServiceSuite) TestEmitQRFailureDegradesReceipt() {
	// An empty security code makes the verification payload
	// unbuildable; the emission must still succeed
	s.GetConfig().Fiscal.SecurityCode = ""
	defer func() { s.GetConfig().Fiscal.SecurityCode = "000000" }()

	s.GetAuthority().ScriptAccept("135260000000044")
	result, err := s.service.Emit(s.GetContext(), s.newRequest())
	s.NoError(err)

	s.Equal(types.EmissionStatusAuthorized, result.Status)
	s.Empty(result.QRCodeURL)
	s.Empty(result.QRCodePNG)
	s.NotEmpty(result.Receipt, "receipt falls back to the textual key")
	s.Contains(string(result.Receipt), accesskey.Format(result.AccessKey))
}
