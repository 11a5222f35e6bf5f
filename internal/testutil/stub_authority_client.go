package testutil

import (
	"context"
	"sync"

	"github.com/giropos/fiscal/internal/authority"
	ierr "github.com/giropos/fiscal/internal/errors"
)

// StubAuthorityClient implements authority.Client with scripted
// outcomes. Responses are consumed in order; when the script runs out
// the default outcome (accept) applies.
type StubAuthorityClient struct {
	mu sync.Mutex

	script []outcome

	// StatusResponse is returned by CheckStatus
	StatusResponse *authority.Response
	StatusErr      error

	// Authorized captures every document submitted
	Authorized []string
}

type outcome struct {
	resp *authority.Response
	err  error
}

// NewStubAuthorityClient creates a stub that accepts everything
func NewStubAuthorityClient() *StubAuthorityClient {
	return &StubAuthorityClient{
		StatusResponse: &authority.Response{StatusCode: "107", Message: "Servico em Operacao"},
	}
}

// ScriptAccept queues an acceptance with the given protocol
func (s *StubAuthorityClient) ScriptAccept(protocol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, outcome{resp: &authority.Response{
		StatusCode: "100",
		Message:    "Autorizado o uso da NF-e",
		Protocol:   protocol,
	}})
}

// ScriptReject queues a rejection verdict
func (s *StubAuthorityClient) ScriptReject(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, outcome{resp: &authority.Response{
		StatusCode: code,
		Message:    message,
	}})
}

// ScriptTransportFailure queues an unreachable-authority round trip
func (s *StubAuthorityClient) ScriptTransportFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, outcome{err: ierr.NewError("connection refused").
		WithHint("The authority webservice did not answer").
		Mark(ierr.ErrTransport)})
}

func (s *StubAuthorityClient) Authorize(ctx context.Context, signedXML string) (*authority.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Authorized = append(s.Authorized, signedXML)

	if len(s.script) == 0 {
		return &authority.Response{
			StatusCode: "100",
			Message:    "Autorizado o uso da NF-e",
			Protocol:   "135260000000001",
		}, nil
	}

	next := s.script[0]
	s.script = s.script[1:]
	return next.resp, next.err
}

func (s *StubAuthorityClient) CheckStatus(ctx context.Context) (*authority.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StatusErr != nil {
		return nil, s.StatusErr
	}
	return s.StatusResponse, nil
}
