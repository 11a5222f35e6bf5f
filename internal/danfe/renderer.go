// Package danfe renders the simplified receipt for 80mm thermal
// printers as a raw ESC/POS byte stream.
package danfe

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"time"
	"unicode"

	"github.com/giropos/fiscal/internal/accesskey"
	"github.com/giropos/fiscal/internal/domain/emission"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const separator = "------------------------------------------------"

// Data is everything one receipt needs. QRCode may be nil when the
// optical code could not be produced; the textual access key is the
// consumer's fallback in that case.
type Data struct {
	Emitter emission.Emitter

	Number    uint64
	Series    int
	EmittedAt time.Time
	AccessKey string

	// Protocol is present only for documents already authorized
	Protocol string

	Items         []emission.LineItem
	TotalItems    decimal.Decimal
	TotalDiscount decimal.Decimal
	Total         decimal.Decimal

	PaymentMethod types.PaymentMethod
	PaymentValue  decimal.Decimal

	QRCode image.Image

	// StatusLine is the contingency banner printed when the document
	// awaits authorization
	StatusLine string

	AdditionalInfo string
}

// Render produces the full ESC/POS command stream for one receipt
func Render(data *Data) ([]byte, error) {
	if data.AccessKey == "" {
		return nil, ierr.NewError("missing access key").
			WithHint("A receipt requires the document access key").
			Mark(ierr.ErrValidation)
	}

	var buf bytes.Buffer
	w := escposWriter{&buf}

	w.raw(cmdInit)
	w.raw(cmdAlignCenter)

	// Header
	w.raw(cmdBoldOn)
	w.raw(cmdDoubleHeight)
	w.line(data.Emitter.Name)
	w.raw(cmdNormalSize)
	w.raw(cmdBoldOff)
	if data.Emitter.TradeName != "" {
		w.line(data.Emitter.TradeName)
	}
	w.line("CNPJ: " + FormatTaxID(data.Emitter.TaxID))
	w.line("IE: " + data.Emitter.StateTaxID)

	w.raw(cmdFontSmall)
	w.line(data.Emitter.Address)
	w.line(fmt.Sprintf("%s - %s", data.Emitter.City, data.Emitter.Jurisdiction))
	if data.Emitter.Phone != "" {
		w.line("Tel: " + data.Emitter.Phone)
	}
	w.raw(cmdFontNormal)

	w.lf()
	w.line(separator)

	w.raw(cmdBoldOn)
	w.line("DANFE NFC-e")
	w.line("Documento Auxiliar da NF-e")
	w.raw(cmdBoldOff)
	w.line(fmt.Sprintf("No. %d Serie %d", data.Number, data.Series))
	w.line("Emissao: " + data.EmittedAt.Format("02/01/2006 15:04:05"))
	w.line(separator)

	// Items
	w.raw(cmdAlignLeft)
	w.raw(cmdFontSmall)
	for _, item := range data.Items {
		w.line(fmt.Sprintf("#%s %s", item.Code, item.Description))
		w.line(fmt.Sprintf("%s %s x %s = %s",
			item.Quantity.StringFixed(3),
			item.Unit,
			types.FormatAmount(item.UnitValue),
			types.FormatAmount(item.TotalValue),
		))
	}
	w.raw(cmdFontNormal)
	w.line(separator)

	// Totals
	w.raw(cmdAlignRight)
	w.line("Total de Itens: " + types.FormatAmount(data.TotalItems))
	if data.TotalDiscount.IsPositive() {
		w.line("Desconto: -" + types.FormatAmount(data.TotalDiscount))
	}
	w.raw(cmdBoldOn)
	w.raw(cmdDoubleHeight)
	w.line("TOTAL R$ " + types.FormatAmount(data.Total))
	w.raw(cmdNormalSize)
	w.raw(cmdBoldOff)

	// Payment
	w.raw(cmdAlignLeft)
	w.line(fmt.Sprintf("Pagamento: %s - R$ %s",
		data.PaymentMethod.DisplayName(),
		types.FormatAmount(data.PaymentValue),
	))
	w.line(separator)

	// Contingency banner goes above the verification block so the
	// consumer sees it before scanning
	if data.StatusLine != "" {
		w.raw(cmdAlignCenter)
		w.raw(cmdBoldOn)
		w.line(data.StatusLine)
		w.raw(cmdBoldOff)
		w.line(separator)
	}

	// Verification block
	w.raw(cmdAlignCenter)
	w.line("Consulte pela Chave de Acesso:")
	w.raw(cmdFontSmall)
	w.line(accesskey.Format(data.AccessKey))
	w.raw(cmdFontNormal)

	if data.QRCode != nil {
		w.lf()
		rasterize(&buf, data.QRCode)
		w.lf()
	}

	if data.Protocol != "" {
		w.line("Protocolo de Autorizacao:")
		w.line(data.Protocol)
	}

	if data.AdditionalInfo != "" {
		w.lf()
		w.raw(cmdFontSmall)
		w.line(data.AdditionalInfo)
		w.raw(cmdFontNormal)
	}

	w.lf()
	w.line("Emitido via Sistema GIRO")
	w.raw(cmdCut)

	return buf.Bytes(), nil
}

// FormatTaxID masks a 14-digit registration as 00.000.000/0000-00
func FormatTaxID(taxID string) string {
	if len(taxID) != 14 {
		return taxID
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s",
		taxID[0:2], taxID[2:5], taxID[5:8], taxID[8:12], taxID[12:14])
}

// ESC/POS command bytes
var (
	cmdInit         = []byte{0x1B, 0x40}
	cmdAlignCenter  = []byte{0x1B, 0x61, 0x01}
	cmdAlignLeft    = []byte{0x1B, 0x61, 0x00}
	cmdAlignRight   = []byte{0x1B, 0x61, 0x02}
	cmdBoldOn       = []byte{0x1B, 0x45, 0x01}
	cmdBoldOff      = []byte{0x1B, 0x45, 0x00}
	cmdDoubleHeight = []byte{0x1B, 0x21, 0x10}
	cmdNormalSize   = []byte{0x1B, 0x21, 0x00}
	cmdFontSmall    = []byte{0x1B, 0x21, 0x01}
	cmdFontNormal   = []byte{0x1B, 0x21, 0x00}
	cmdCut          = []byte{0x1D, 0x56, 0x41, 0x03}
)

type escposWriter struct {
	buf *bytes.Buffer
}

func (w escposWriter) raw(b []byte) {
	w.buf.Write(b)
}

func (w escposWriter) line(s string) {
	w.buf.WriteString(toPrinterText(s))
	w.buf.WriteByte(0x0A)
}

func (w escposWriter) lf() {
	w.buf.WriteByte(0x0A)
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// toPrinterText folds text to plain ASCII. The printer interprets the
// stream in its configured codepage, so accented bytes sent raw come
// out as mojibake; stripped diacritics always print readably.
func toPrinterText(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, out)
}
