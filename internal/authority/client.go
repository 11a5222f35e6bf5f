// Package authority talks to the tax authority webservices over mutual
// TLS. It reports outcomes verbatim: a rejection status is data, not an
// error, while a failure to complete the round trip is a transport
// error that callers route to contingency.
package authority

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/giropos/fiscal/internal/config"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/httpclient"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/signer"
	"github.com/giropos/fiscal/internal/types"
)

// Response is the authority's verdict on one round trip
type Response struct {
	// StatusCode is the authority status ("100" means accepted,
	// "107" means the service is healthy)
	StatusCode string
	Message    string
	Protocol   string
}

// Accepted reports whether the document was authorized
func (r *Response) Accepted() bool {
	return r.StatusCode == types.StatusCodeAuthorized
}

// Healthy reports whether a status round trip found the service up
func (r *Response) Healthy() bool {
	return r.StatusCode == types.StatusCodeServiceHealthy
}

// Client is the transmission surface the orchestrator depends on
type Client interface {
	// Authorize submits a signed document. A non-nil Response with a
	// rejection status is a successful round trip; only transport
	// failures return an error.
	Authorize(ctx context.Context, signedXML string) (*Response, error)
	// CheckStatus probes the authority health endpoint
	CheckStatus(ctx context.Context) (*Response, error)
}

type sefazClient struct {
	http         httpclient.Client
	logger       *logger.Logger
	jurisdiction string
	environment  types.Environment
	authorizeURL string
	statusURL    string
}

// NewClient builds an authority client that presents the signing
// credential as its TLS identity. Endpoint overrides in the
// configuration win over the per-jurisdiction defaults.
func NewClient(cfg *config.Configuration, credential *signer.Credential, log *logger.Logger) Client {
	ep := endpointsFor(cfg.Emitter.Jurisdiction, cfg.Fiscal.Environment)
	if cfg.Authority.AuthorizeURL != "" {
		ep.Authorize = cfg.Authority.AuthorizeURL
	}
	if cfg.Authority.StatusURL != "" {
		ep.Status = cfg.Authority.StatusURL
	}

	var identity *tls.Certificate
	if credential != nil {
		identity = &tls.Certificate{
			Certificate: [][]byte{credential.Certificate.Raw},
			PrivateKey:  credential.PrivateKey,
		}
	}

	return &sefazClient{
		http: httpclient.NewClient(httpclient.ClientConfig{
			Timeout:  cfg.Authority.Timeout,
			Identity: identity,
		}),
		logger:       log,
		jurisdiction: cfg.Emitter.Jurisdiction,
		environment:  cfg.Fiscal.Environment,
		authorizeURL: ep.Authorize,
		statusURL:    ep.Status,
	}
}

func (c *sefazClient) Authorize(ctx context.Context, signedXML string) (*Response, error) {
	envelope := buildAuthorizeEnvelope(signedXML)

	body, err := c.post(ctx, c.authorizeURL, envelope)
	if err != nil {
		return nil, err
	}

	resp := parseResponse(body)
	c.logger.Infow("authority round trip completed",
		"status_code", resp.StatusCode,
		"protocol", resp.Protocol,
	)
	return resp, nil
}

func (c *sefazClient) CheckStatus(ctx context.Context) (*Response, error) {
	envelope := buildStatusEnvelope(
		types.JurisdictionCode(c.jurisdiction),
		c.environment.Code(),
	)

	body, err := c.post(ctx, c.statusURL, envelope)
	if err != nil {
		return nil, err
	}

	return parseResponse(body), nil
}

// post performs one webservice call. Every failure to obtain a parsed
// body is a transport error: connection refused, DNS failure, timeout,
// and gateway-level HTTP errors all land here.
func (c *sefazClient) post(ctx context.Context, url, envelope string) ([]byte, error) {
	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    url,
		Headers: map[string]string{
			"Content-Type": `application/soap+xml; charset=utf-8`,
		},
		Body: []byte(envelope),
	})
	if err != nil {
		c.logger.Warnw("authority unreachable", "url", url, "error", err)
		return nil, ierr.WithError(err).
			WithHint("The authority webservice did not answer").
			Mark(ierr.ErrTransport)
	}
	return resp.Body, nil
}

const (
	authorizeWSDL = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
	statusWSDL    = "http://www.portalfiscal.inf.br/nfe/wsdl/NfeStatusServico4"
)

func buildAuthorizeEnvelope(signedXML string) string {
	// The signed document goes inside the batch envelope as-is; the
	// XML declaration must not repeat inside the SOAP body.
	doc := strings.TrimPrefix(signedXML, `<?xml version="1.0" encoding="UTF-8"?>`)
	doc = strings.TrimSpace(doc)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">`)
	b.WriteString(`<soap12:Body>`)
	b.WriteString(`<nfeDadosMsg xmlns="` + authorizeWSDL + `">`)
	b.WriteString(`<enviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">`)
	b.WriteString(`<idLote>1</idLote>`)
	b.WriteString(`<indSinc>1</indSinc>`)
	b.WriteString(doc)
	b.WriteString(`</enviNFe>`)
	b.WriteString(`</nfeDadosMsg>`)
	b.WriteString(`</soap12:Body>`)
	b.WriteString(`</soap12:Envelope>`)
	return b.String()
}

func buildStatusEnvelope(jurisdictionCode, environmentCode string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">`)
	b.WriteString(`<soap12:Body>`)
	b.WriteString(`<nfeDadosMsg xmlns="` + statusWSDL + `">`)
	b.WriteString(`<consStatServ xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">`)
	b.WriteString(fmt.Sprintf(`<tpAmb>%s</tpAmb>`, environmentCode))
	b.WriteString(fmt.Sprintf(`<cUF>%s</cUF>`, jurisdictionCode))
	b.WriteString(`<xServ>STATUS</xServ>`)
	b.WriteString(`</consStatServ>`)
	b.WriteString(`</nfeDadosMsg>`)
	b.WriteString(`</soap12:Body>`)
	b.WriteString(`</soap12:Envelope>`)
	return b.String()
}

// parseResponse pulls the verdict fields out of the response envelope.
// Responses nest the same tags at several levels; the innermost
// protocol block carries the per-document verdict, so the last
// occurrence wins.
func parseResponse(body []byte) *Response {
	text := string(body)
	return &Response{
		StatusCode: lastTagValue(text, "cStat"),
		Message:    lastTagValue(text, "xMotivo"),
		Protocol:   lastTagValue(text, "nProt"),
	}
}

func lastTagValue(text, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.LastIndex(text, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.Index(text[start:], close)
	if end < 0 {
		return ""
	}
	return text[start : start+end]
}
