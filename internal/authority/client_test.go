package authority

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giropos/fiscal/internal/config"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, authorizeURL, statusURL string) Client {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Emitter.Jurisdiction = "SP"
	cfg.Authority.Timeout = 2 * time.Second
	cfg.Authority.AuthorizeURL = authorizeURL
	cfg.Authority.StatusURL = statusURL

	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	return NewClient(cfg, nil, log)
}

func soapReply(cStat, xMotivo, nProt string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>`)
	b.WriteString(`<retEnviNFe versao="4.00"><cStat>104</cStat><xMotivo>Lote processado</xMotivo>`)
	b.WriteString(`<protNFe versao="4.00"><infProt>`)
	b.WriteString(`<cStat>` + cStat + `</cStat>`)
	b.WriteString(`<xMotivo>` + xMotivo + `</xMotivo>`)
	if nProt != "" {
		b.WriteString(`<nProt>` + nProt + `</nProt>`)
	}
	b.WriteString(`</infProt></protNFe></retEnviNFe>`)
	b.WriteString(`</soap:Body></soap:Envelope>`)
	return b.String()
}

func TestAuthorizeAccepted(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		_, _ = w.Write([]byte(soapReply("100", "Autorizado o uso da NF-e", "135260000000001")))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, srv.URL)
	resp, err := c.Authorize(context.Background(), `<?xml version="1.0" encoding="UTF-8"?><NFe><infNFe Id="NFe123"/></NFe>`)
	require.NoError(t, err)

	assert.True(t, resp.Accepted())
	assert.Equal(t, "100", resp.StatusCode)
	assert.Equal(t, "135260000000001", resp.Protocol)

	// The submitted batch carries the document without a nested
	// XML declaration
	assert.Contains(t, gotBody, `<NFe><infNFe Id="NFe123"/></NFe>`)
	assert.Equal(t, 1, strings.Count(gotBody, "<?xml"))
	assert.Contains(t, gotBody, "<indSinc>1</indSinc>")
}

func TestAuthorizeRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(soapReply("225", "Rejeicao: Falha no Schema XML", "")))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, srv.URL)
	resp, err := c.Authorize(context.Background(), "<NFe/>")
	require.NoError(t, err)

	assert.False(t, resp.Accepted())
	assert.Equal(t, "225", resp.StatusCode)
	assert.Equal(t, "Rejeicao: Falha no Schema XML", resp.Message)
	assert.Empty(t, resp.Protocol)
}

func TestAuthorizeUnreachableIsTransportError(t *testing.T) {
	// Closed port: the dial fails immediately
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := testClient(t, url, url)
	_, err := c.Authorize(context.Background(), "<NFe/>")
	require.Error(t, err)
	assert.True(t, ierr.IsTransport(err))
}

func TestAuthorizeGatewayErrorIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, srv.URL)
	_, err := c.Authorize(context.Background(), "<NFe/>")
	require.Error(t, err)
	assert.True(t, ierr.IsTransport(err))
}

func TestAuthorizeTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := testClient(t, srv.URL, srv.URL)
	_, err := c.Authorize(ctx, "<NFe/>")
	require.Error(t, err)
	assert.True(t, ierr.IsTransport(err))
}

func TestCheckStatusHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<retConsStatServ><cStat>107</cStat><xMotivo>Servico em Operacao</xMotivo></retConsStatServ>`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, srv.URL)
	resp, err := c.CheckStatus(context.Background())
	require.NoError(t, err)

	assert.True(t, resp.Healthy())
	assert.Equal(t, "Servico em Operacao", resp.Message)
}

func TestEndpointResolutionFallsBackToSharedAuthority(t *testing.T) {
	ep := endpointsFor("AC", types.EnvironmentProduction)
	assert.Contains(t, ep.Authorize, "svrs")

	ep = endpointsFor("SP", types.EnvironmentStaging)
	assert.Contains(t, ep.Authorize, "homologacao")
}
