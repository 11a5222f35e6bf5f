// Package document serializes an emission request into the canonical
// XML layout (schema 4.00) expected by the tax authority. Element
// ordering is fixed by the external schema and must not change.
package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/giropos/fiscal/internal/accesskey"
	"github.com/giropos/fiscal/internal/domain/emission"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
)

const (
	namespace = "http://www.portalfiscal.inf.br/nfe"

	// processVersion is reported in the verProc identification tag
	processVersion = "1.0.0"
)

// Builder serializes one emission request against one access key.
// It performs no network or disk I/O and never mutates the request.
type Builder struct {
	req          *emission.Request
	accessKey    string
	emissionType types.EmissionType
	emittedAt    time.Time
}

// NewBuilder creates a builder for the given request and access key
func NewBuilder(req *emission.Request, accessKey string, emissionType types.EmissionType, emittedAt time.Time) *Builder {
	return &Builder{
		req:          req,
		accessKey:    accessKey,
		emissionType: emissionType,
		emittedAt:    emittedAt,
	}
}

// Build produces the canonical XML text
func (b *Builder) Build() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	w := &writer{enc: xml.NewEncoder(&buf)}

	w.start("NFe", xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: namespace})
	b.writeInfNFe(w)
	w.end("NFe")

	if w.err == nil {
		w.err = w.enc.Flush()
	}
	if w.err != nil {
		return "", ierr.WithError(w.err).
			WithHint("Internal document writer fault").
			Mark(ierr.ErrSerialization)
	}

	return buf.String(), nil
}

func (b *Builder) writeInfNFe(w *writer) {
	w.start("infNFe",
		xml.Attr{Name: xml.Name{Local: "versao"}, Value: types.SchemaVersion},
		xml.Attr{Name: xml.Name{Local: "Id"}, Value: "NFe" + b.accessKey},
	)

	b.writeIdentification(w)
	b.writeEmitter(w)
	b.writeRecipient(w)
	for i, item := range b.req.Items {
		b.writeItem(w, &item, i+1)
	}
	b.writeTotals(w)
	b.writeTransport(w)
	b.writePayment(w)
	b.writeAdditionalInfo(w)

	w.end("infNFe")
}

func (b *Builder) writeIdentification(w *writer) {
	w.start("ide")

	w.element("cUF", types.JurisdictionCode(b.req.Emitter.Jurisdiction))
	// cNF must repeat the filler digits already embedded in the key
	w.element("cNF", accesskey.Filler(b.accessKey))
	w.element("natOp", "VENDA")
	w.element("mod", types.DocumentModel)
	w.element("serie", fmt.Sprintf("%d", b.req.Series))
	w.element("nNF", sequenceOf(b.accessKey))
	w.element("dhEmi", b.emittedAt.Format(time.RFC3339))
	w.element("tpNF", "1")
	w.element("idDest", "1")
	w.element("cMunFG", b.req.Emitter.CityCode)
	w.element("tpImp", "4")
	w.element("tpEmis", b.emissionType.Code())
	w.element("cDV", b.accessKey[len(b.accessKey)-1:])
	w.element("tpAmb", b.req.Environment.Code())
	w.element("finNFe", "1")
	w.element("indFinal", "1")
	w.element("indPres", "1")
	w.element("procEmi", "0")
	w.element("verProc", processVersion)

	w.end("ide")
}

func (b *Builder) writeEmitter(w *writer) {
	w.start("emit")

	w.element("CNPJ", b.req.Emitter.TaxID)
	w.element("xNome", b.req.Emitter.Name)
	if b.req.Emitter.TradeName != "" {
		w.element("xFant", b.req.Emitter.TradeName)
	}

	w.start("enderEmit")
	w.element("xLgr", b.req.Emitter.Address)
	w.element("nro", "SN")
	w.element("xMun", b.req.Emitter.City)
	w.element("CEP", b.req.Emitter.PostalCode)
	w.element("cMun", b.req.Emitter.CityCode)
	w.element("UF", b.req.Emitter.Jurisdiction)
	w.end("enderEmit")

	w.element("IE", b.req.Emitter.StateTaxID)
	w.element("CRT", "1")

	w.end("emit")
}

func (b *Builder) writeRecipient(w *writer) {
	if b.req.Recipient == nil {
		return
	}

	w.start("dest")
	w.element("CPF", b.req.Recipient.TaxID)
	w.element("xNome", b.req.Recipient.Name)
	w.element("indIEDest", "9")
	w.end("dest")
}

func (b *Builder) writeItem(w *writer, item *emission.LineItem, num int) {
	w.start("det", xml.Attr{Name: xml.Name{Local: "nItem"}, Value: fmt.Sprintf("%d", num)})

	w.start("prod")
	w.element("cProd", item.Code)
	w.element("cEAN", eanOrFallback(item.EAN))
	w.element("xProd", item.Description)
	w.element("NCM", item.NCM)
	w.element("CFOP", item.CFOP)
	w.element("uCom", item.Unit)
	w.element("qCom", types.FormatQuantity(item.Quantity))
	w.element("vUnCom", types.FormatAmount(item.UnitValue))
	w.element("vProd", types.FormatAmount(item.TotalValue))
	w.element("cEANTrib", eanOrFallback(item.EAN))
	w.element("uTrib", item.Unit)
	w.element("qTrib", types.FormatQuantity(item.Quantity))
	w.element("vUnTrib", types.FormatAmount(item.UnitValue))
	w.element("indTot", "1")
	w.end("prod")

	b.writeItemTaxes(w, item)

	w.end("det")
}

// writeItemTaxes emits the per-item tax sub-blocks. Codes arrive
// pre-computed from the caller and pass through untouched.
func (b *Builder) writeItemTaxes(w *writer, item *emission.LineItem) {
	w.start("imposto")

	w.start("ICMS")
	w.start("ICMSSN102")
	w.element("orig", item.TaxOrigin)
	w.element("CSOSN", item.ICMSCode)
	w.end("ICMSSN102")
	w.end("ICMS")

	w.start("PIS")
	w.start("PISNT")
	w.element("CST", item.PISCode)
	w.end("PISNT")
	w.end("PIS")

	w.start("COFINS")
	w.start("COFINSNT")
	w.element("CST", item.COFINSCode)
	w.end("COFINSNT")
	w.end("COFINS")

	w.end("imposto")
}

func (b *Builder) writeTotals(w *writer) {
	w.start("total")
	w.start("ICMSTot")

	w.element("vBC", "0.00")
	w.element("vICMS", "0.00")
	w.element("vICMSDeson", "0.00")
	w.element("vFCP", "0.00")
	w.element("vBCST", "0.00")
	w.element("vST", "0.00")
	w.element("vFCPST", "0.00")
	w.element("vFCPSTRet", "0.00")
	w.element("vProd", types.FormatAmount(b.req.TotalItems))
	w.element("vFrete", "0.00")
	w.element("vSeg", "0.00")
	w.element("vDesc", types.FormatAmount(b.req.TotalDiscount))
	w.element("vII", "0.00")
	w.element("vIPI", "0.00")
	w.element("vIPIDevol", "0.00")
	w.element("vPIS", "0.00")
	w.element("vCOFINS", "0.00")
	w.element("vOutro", "0.00")
	w.element("vNF", types.FormatAmount(b.req.TotalNote()))

	w.end("ICMSTot")
	w.end("total")
}

func (b *Builder) writeTransport(w *writer) {
	w.start("transp")
	w.element("modFrete", "9")
	w.end("transp")
}

func (b *Builder) writePayment(w *writer) {
	w.start("pag")
	w.start("detPag")
	w.element("tPag", b.req.PaymentMethod.String())
	w.element("vPag", types.FormatAmount(b.req.PaymentValue))
	w.end("detPag")
	w.end("pag")
}

func (b *Builder) writeAdditionalInfo(w *writer) {
	w.start("infAdic")
	w.element("infCpl", "Nota Fiscal gerada pelo Sistema GIRO")
	w.end("infAdic")
}

func eanOrFallback(ean string) string {
	if ean == "" {
		return "SEM GTIN"
	}
	return ean
}

// sequenceOf reads the document number back out of the access key so
// the identification block can never disagree with the key.
func sequenceOf(key string) string {
	if len(key) != accesskey.KeyLength {
		return "0"
	}
	seq := key[25:34]
	for i := 0; i < len(seq); i++ {
		if seq[i] != '0' {
			return seq[i:]
		}
	}
	return "0"
}

// writer is a thin sticky-error wrapper over the xml token encoder
type writer struct {
	enc *xml.Encoder
	err error
}

func (w *writer) start(name string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Local: name},
		Attr: attrs,
	})
}

func (w *writer) end(name string) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *writer) element(name, value string) {
	w.start(name)
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.CharData(value))
	w.end(name)
}
