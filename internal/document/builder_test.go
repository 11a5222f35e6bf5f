package document

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/giropos/fiscal/internal/accesskey"
	"github.com/giropos/fiscal/internal/domain/emission"
	"github.com/giropos/fiscal/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() *emission.Request {
	return &emission.Request{
		ID: "emis_test",
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
		PaymentMethod: types.PaymentMethodCash,
		PaymentValue:  decimal.NewFromFloat(20),
		Series:        1,
		Environment:   types.EnvironmentStaging,
	}
}

func testKey(t *testing.T, req *emission.Request, emissionType types.EmissionType) string {
	t.Helper()
	key, err := accesskey.Generate(accesskey.Params{
		Jurisdiction: req.Emitter.Jurisdiction,
		EmittedAt:    time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		EmitterTaxID: req.Emitter.TaxID,
		Series:       req.Series,
		Sequence:     42,
		EmissionType: emissionType,
	})
	require.NoError(t, err)
	return key
}

// parsedDocument mirrors only the fields the tests assert on
type parsedDocument struct {
	InfNFe struct {
		Versao string `xml:"versao,attr"`
		ID     string `xml:"Id,attr"`
		Ide    struct {
			CUF    string `xml:"cUF"`
			CNF    string `xml:"cNF"`
			Mod    string `xml:"mod"`
			Serie  string `xml:"serie"`
			NNF    string `xml:"nNF"`
			TpEmis string `xml:"tpEmis"`
			CDV    string `xml:"cDV"`
			TpAmb  string `xml:"tpAmb"`
		} `xml:"ide"`
		Emit struct {
			CNPJ  string `xml:"CNPJ"`
			XNome string `xml:"xNome"`
		} `xml:"emit"`
		Dest *struct {
			CPF   string `xml:"CPF"`
			XNome string `xml:"xNome"`
		} `xml:"dest"`
		Det []struct {
			NItem string `xml:"nItem,attr"`
			Prod  struct {
				CProd  string `xml:"cProd"`
				CEAN   string `xml:"cEAN"`
				QCom   string `xml:"qCom"`
				VUnCom string `xml:"vUnCom"`
				VProd  string `xml:"vProd"`
			} `xml:"prod"`
		} `xml:"det"`
		Total struct {
			ICMSTot struct {
				VProd string `xml:"vProd"`
				VDesc string `xml:"vDesc"`
				VNF   string `xml:"vNF"`
			} `xml:"ICMSTot"`
		} `xml:"total"`
		Pag struct {
			DetPag struct {
				TPag string `xml:"tPag"`
				VPag string `xml:"vPag"`
			} `xml:"detPag"`
		} `xml:"pag"`
	} `xml:"infNFe"`
}

func buildAndParse(t *testing.T, b *Builder) (string, *parsedDocument) {
	t.Helper()
	raw, err := b.Build()
	require.NoError(t, err)

	var doc parsedDocument
	require.NoError(t, xml.Unmarshal([]byte(raw), &doc))
	return raw, &doc
}

func TestBuildRoundTrip(t *testing.T) {
	req := testRequest()
	key := testKey(t, req, types.EmissionTypeNormal)
	emittedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	raw, doc := buildAndParse(t, NewBuilder(req, key, types.EmissionTypeNormal, emittedAt))

	assert.True(t, strings.HasPrefix(raw, xml.Header))
	assert.Equal(t, "4.00", doc.InfNFe.Versao)
	assert.Equal(t, "NFe"+key, doc.InfNFe.ID)

	assert.Equal(t, "35", doc.InfNFe.Ide.CUF)
	assert.Equal(t, accesskey.Filler(key), doc.InfNFe.Ide.CNF)
	assert.Equal(t, "65", doc.InfNFe.Ide.Mod)
	assert.Equal(t, "1", doc.InfNFe.Ide.Serie)
	assert.Equal(t, "42", doc.InfNFe.Ide.NNF)
	assert.Equal(t, "1", doc.InfNFe.Ide.TpEmis)
	assert.Equal(t, key[43:], doc.InfNFe.Ide.CDV)
	assert.Equal(t, "2", doc.InfNFe.Ide.TpAmb)

	assert.Equal(t, "12345678000190", doc.InfNFe.Emit.CNPJ)
	assert.Equal(t, "Mercado Exemplo LTDA", doc.InfNFe.Emit.XNome)

	require.Len(t, doc.InfNFe.Det, 1)
	item := doc.InfNFe.Det[0]
	assert.Equal(t, "1", item.NItem)
	assert.Equal(t, "SKU001", item.Prod.CProd)
	assert.Equal(t, "2.0000", item.Prod.QCom)
	assert.Equal(t, "10.00", item.Prod.VUnCom)
	assert.Equal(t, "20.00", item.Prod.VProd)

	assert.Equal(t, "20.00", doc.InfNFe.Total.ICMSTot.VProd)
	assert.Equal(t, "0.00", doc.InfNFe.Total.ICMSTot.VDesc)
	assert.Equal(t, "20.00", doc.InfNFe.Total.ICMSTot.VNF)

	assert.Equal(t, "01", doc.InfNFe.Pag.DetPag.TPag)
	assert.Equal(t, "20.00", doc.InfNFe.Pag.DetPag.VPag)
}

func TestBuildOmitsRecipientWhenAnonymous(t *testing.T) {
	req := testRequest()
	key := testKey(t, req, types.EmissionTypeNormal)

	raw, doc := buildAndParse(t, NewBuilder(req, key, types.EmissionTypeNormal, time.Now().UTC()))

	assert.Nil(t, doc.InfNFe.Dest)
	assert.NotContains(t, raw, "<dest>")
}

func TestBuildIncludesIdentifiedRecipient(t *testing.T) {
	req := testRequest()
	req.Recipient = &emission.Recipient{TaxID: "12345678909", Name: "Consumidor Teste"}
	key := testKey(t, req, types.EmissionTypeNormal)

	_, doc := buildAndParse(t, NewBuilder(req, key, types.EmissionTypeNormal, time.Now().UTC()))

	require.NotNil(t, doc.InfNFe.Dest)
	assert.Equal(t, "12345678909", doc.InfNFe.Dest.CPF)
	assert.Equal(t, "Consumidor Teste", doc.InfNFe.Dest.XNome)
}

func TestBuildUsesEANFallback(t *testing.T) {
	req := testRequest()
	req.Items[0].EAN = ""
	key := testKey(t, req, types.EmissionTypeNormal)

	_, doc := buildAndParse(t, NewBuilder(req, key, types.EmissionTypeNormal, time.Now().UTC()))

	assert.Equal(t, "SEM GTIN", doc.InfNFe.Det[0].Prod.CEAN)
}

func TestBuildContingencyEmissionType(t *testing.T) {
	req := testRequest()
	key := testKey(t, req, types.EmissionTypeContingency)

	_, doc := buildAndParse(t, NewBuilder(req, key, types.EmissionTypeContingency, time.Now().UTC()))

	assert.Equal(t, "9", doc.InfNFe.Ide.TpEmis)
}

func TestBuildElementOrderIsStable(t *testing.T) {
	req := testRequest()
	key := testKey(t, req, types.EmissionTypeNormal)

	raw, err := NewBuilder(req, key, types.EmissionTypeNormal, time.Now().UTC()).Build()
	require.NoError(t, err)

	order := []string{"<ide>", "<emit>", "<det ", "<total>", "<transp>", "<pag>", "<infAdic>"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(raw, marker)
		require.Greater(t, idx, last, "expected %s after previous block", marker)
		last = idx
	}
}
