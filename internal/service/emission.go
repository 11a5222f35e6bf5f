package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giropos/fiscal/internal/accesskey"
	"github.com/giropos/fiscal/internal/authority"
	"github.com/giropos/fiscal/internal/danfe"
	"github.com/giropos/fiscal/internal/document"
	"github.com/giropos/fiscal/internal/domain/contingency"
	"github.com/giropos/fiscal/internal/domain/emission"
	"github.com/giropos/fiscal/internal/domain/sequence"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/qrpayload"
	"github.com/giropos/fiscal/internal/signer"
	"github.com/giropos/fiscal/internal/types"
)

const (
	statusLineAuthorized  = "NFC-e autorizada com sucesso"
	statusLineContingency = "NFC-e emitida em Contingência Offline (Sem Internet)"

	receiptThanksNote      = "OBRIGADO PELA PREFERENCIA"
	receiptContingencyNote = "EMITIDA EM CONTINGÊNCIA - Pendente de Autorização"
)

// EmissionService runs one sale through the full pipeline: number,
// build, sign, transmit, and produce the printable artifacts.
type EmissionService interface {
	Emit(ctx context.Context, req *emission.Request) (*emission.Result, error)
}

type emissionService struct {
	ServiceParams

	// locks serialize emissions per numbering scope so a document
	// number peeked for one sale can never be embedded in two
	// concurrent documents. Independent scopes emit concurrently and
	// never wait on each other's authority round trip.
	locks sync.Map
}

// NewEmissionService creates an emission service
func NewEmissionService(params ServiceParams) EmissionService {
	return &emissionService{ServiceParams: params}
}

func (s *emissionService) scopeLock(key string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *emissionService) Emit(ctx context.Context, req *emission.Request) (*emission.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	scope := sequence.Scope{
		Jurisdiction: req.Emitter.Jurisdiction,
		EmitterTaxID: req.Emitter.TaxID,
		Series:       req.Series,
	}

	mu := s.scopeLock(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	// Peek the number; it is consumed only once the sale actually
	// produced a document (authorized or queued), never on rejection.
	seq, err := s.SequenceCounter.Current(ctx, scope)
	if err != nil {
		return nil, err
	}

	emittedAt := s.now().UTC()

	signedXML, accessKey, err := s.buildAndSign(req, seq, emittedAt, types.EmissionTypeNormal)
	if err != nil {
		return nil, err
	}

	// The round trip keeps running even if the caller goes away: an
	// authorization granted to an abandoned request must still consume
	// the number and be recorded.
	resp, authErr := s.AuthorityClient.Authorize(context.WithoutCancel(ctx), signedXML)

	switch {
	case authErr == nil && resp.Accepted():
		return s.finishAuthorized(ctx, req, scope, seq, emittedAt, accessKey, signedXML, resp)

	case authErr == nil:
		return s.finishRejected(req, seq, accessKey, signedXML, resp), nil

	case ierr.IsTransport(authErr):
		return s.finishContingency(ctx, req, scope, seq, emittedAt)

	default:
		return nil, authErr
	}
}

func (s *emissionService) buildAndSign(req *emission.Request, seq uint64, emittedAt time.Time, emissionType types.EmissionType) (signedXML, key string, err error) {
	key, err = accesskey.Generate(accesskey.Params{
		Jurisdiction: req.Emitter.Jurisdiction,
		EmittedAt:    emittedAt,
		EmitterTaxID: req.Emitter.TaxID,
		Series:       req.Series,
		Sequence:     seq,
		EmissionType: emissionType,
	})
	if err != nil {
		return "", "", err
	}

	xml, err := document.NewBuilder(req, key, emissionType, emittedAt).Build()
	if err != nil {
		return "", "", err
	}

	signedXML, err = s.Signer.Sign(xml)
	if err != nil {
		return "", "", err
	}
	return signedXML, key, nil
}

func (s *emissionService) finishAuthorized(ctx context.Context, req *emission.Request, scope sequence.Scope, seq uint64, emittedAt time.Time, accessKey, signedXML string, resp *authority.Response) (*emission.Result, error) {
	if _, err := s.SequenceCounter.Next(ctx, scope); err != nil {
		return nil, err
	}

	s.Logger.Infow("emission authorized",
		"access_key", accessKey,
		"sequence", seq,
		"protocol", resp.Protocol,
	)

	result := &emission.Result{
		Status:    types.EmissionStatusAuthorized,
		AccessKey: accessKey,
		Sequence:  seq,
		EmittedAt: emittedAt,
		Protocol:  &resp.Protocol,
		SignedXML: signedXML,
	}
	result.StatusLine = statusLineAuthorized
	s.attachArtifacts(result, req, emittedAt, resp.Protocol, receiptThanksNote, "")
	return result, nil
}

func (s *emissionService) finishRejected(req *emission.Request, seq uint64, accessKey, signedXML string, resp *authority.Response) *emission.Result {
	s.Logger.Warnw("emission rejected by authority",
		"access_key", accessKey,
		"status_code", resp.StatusCode,
		"message", resp.Message,
	)

	return &emission.Result{
		Status:           types.EmissionStatusRejected,
		AccessKey:        accessKey,
		Sequence:         seq,
		RejectionCode:    resp.StatusCode,
		RejectionMessage: resp.Message,
		SignedXML:        signedXML,
		StatusLine:       fmt.Sprintf("Rejeição SEFAZ: %s - %s", resp.StatusCode, resp.Message),
	}
}

// finishContingency re-keys the document for offline emission, signs
// it again, and makes the sale durable before anything else. Only the
// successful save consumes the number.
func (s *emissionService) finishContingency(ctx context.Context, req *emission.Request, scope sequence.Scope, seq uint64, emittedAt time.Time) (*emission.Result, error) {
	signedXML, accessKey, err := s.buildAndSign(req, seq, emittedAt, types.EmissionTypeContingency)
	if err != nil {
		return nil, err
	}

	record := &contingency.Record{
		AccessKey: accessKey,
		SignedXML: signedXML,
		Status:    types.ContingencyStatusPending,
		CreatedAt: emittedAt,
	}
	if err := s.ContingencyRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	if _, err := s.SequenceCounter.Next(ctx, scope); err != nil {
		return nil, err
	}

	s.Logger.Warnw("emission queued for contingency",
		"access_key", accessKey,
		"sequence", seq,
	)

	if s.RetransmitPublisher != nil {
		if err := s.RetransmitPublisher.PublishRetransmit(ctx, accessKey); err != nil {
			// The record is durable; a lost command only delays the
			// retransmission until the next sweep
			s.Logger.Warnw("could not enqueue retransmission",
				"access_key", accessKey,
				"error", err,
			)
		}
	}

	result := &emission.Result{
		Status:    types.EmissionStatusContingencyQueued,
		AccessKey: accessKey,
		Sequence:  seq,
		EmittedAt: emittedAt,
		SignedXML: signedXML,
	}
	result.StatusLine = statusLineContingency
	s.attachArtifacts(result, req, emittedAt, "", receiptContingencyNote, receiptContingencyNote)
	return result, nil
}

// attachArtifacts adds the verification payload and the printable
// receipt. Artifact failures degrade the result instead of failing the
// emission: the textual access key on the receipt is the fallback.
func (s *emissionService) attachArtifacts(result *emission.Result, req *emission.Request, emittedAt time.Time, protocol, additionalInfo, banner string) {
	// The verification payload reuses the digest bytes the signature
	// embedded; recomputing the hash here would break verification.
	digest, err := signer.ExtractDigest(result.SignedXML)
	if err != nil {
		s.Logger.Warnw("signature digest could not be extracted",
			"access_key", result.AccessKey,
			"error", err,
		)
	}

	qrParams := qrpayload.Params{
		AccessKey:      result.AccessKey,
		Jurisdiction:   req.Emitter.Jurisdiction,
		Environment:    req.Environment,
		SecurityCodeID: s.Config.Fiscal.SecurityCodeID,
		SecurityCode:   s.Config.Fiscal.SecurityCode,
		DigestValue:    digest,
		EmittedAt:      emittedAt,
		TotalValue:     req.TotalNote(),
	}

	data := &danfe.Data{
		Emitter:        req.Emitter,
		Number:         result.Sequence,
		Series:         req.Series,
		EmittedAt:      emittedAt,
		AccessKey:      result.AccessKey,
		Protocol:       protocol,
		Items:          req.Items,
		TotalItems:     req.TotalItems,
		TotalDiscount:  req.TotalDiscount,
		Total:          req.TotalNote(),
		PaymentMethod:  req.PaymentMethod,
		PaymentValue:   req.PaymentValue,
		StatusLine:     banner,
		AdditionalInfo: additionalInfo,
	}

	url, err := qrpayload.BuildURL(qrParams)
	if err != nil {
		s.Logger.Warnw("verification URL could not be built",
			"access_key", result.AccessKey,
			"error", err,
		)
	} else {
		result.QRCodeURL = url

		if png, err := qrpayload.GeneratePNG(qrParams, 256); err != nil {
			s.Logger.Warnw("verification code image failed, receipt will carry the key only",
				"access_key", result.AccessKey,
				"error", err,
			)
		} else {
			result.QRCodePNG = png
		}

		if code, err := qrpayload.GenerateImage(qrParams, 256); err == nil {
			data.QRCode = code.Image(256)
		}
	}

	receipt, err := danfe.Render(data)
	if err != nil {
		s.Logger.Errorw("receipt rendering failed",
			"access_key", result.AccessKey,
			"error", err,
		)
		return
	}
	result.Receipt = receipt
}
