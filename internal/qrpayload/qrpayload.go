// Package qrpayload builds the consumer verification URL printed on
// every receipt and renders it as a scannable code. The URL follows
// payload version 2: the verification hash binds the access key to the
// emitter's security code without ever exposing the code itself.
package qrpayload

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

const payloadVersion = "2"

// Params are the inputs for one verification payload. DigestValue is
// the DigestValue read back from the signed document; it must be the
// signature's exact bytes, never a recomputed hash. EmittedAt and
// TotalValue ride along for payload variants that embed them.
type Params struct {
	AccessKey      string
	Jurisdiction   string
	Environment    types.Environment
	SecurityCodeID string
	SecurityCode   string

	DigestValue string
	EmittedAt   time.Time
	TotalValue  decimal.Decimal
}

// BuildURL assembles the version 2 verification URL
func BuildURL(p Params) (string, error) {
	if len(p.AccessKey) != 44 {
		return "", ierr.NewError("invalid access key").
			WithHint("Access key must have 44 digits").
			Mark(ierr.ErrValidation)
	}
	if p.SecurityCode == "" {
		return "", ierr.NewError("missing security code").
			WithHint("A security code is required to build the verification hash").
			Mark(ierr.ErrValidation)
	}
	if p.DigestValue == "" {
		return "", ierr.NewError("missing signature digest").
			WithHint("The payload requires the DigestValue carried by the signed document").
			Mark(ierr.ErrValidation)
	}

	base := baseURLFor(p.Jurisdiction, p.Environment)
	token := padToken(p.SecurityCodeID)
	hash := verificationHash(p.AccessKey, p.Environment.Code(), token, p.SecurityCode)

	return fmt.Sprintf("%s?chNFe=%s&nVersao=%s&tpAmb=%s&cIdToken=%s&cHashQRCode=%s",
		base, p.AccessKey, payloadVersion, p.Environment.Code(), token, hash), nil
}

// GeneratePNG renders the verification URL as a PNG image
func GeneratePNG(p Params, size int) ([]byte, error) {
	url, err := BuildURL(p)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Verification URL could not be encoded as a QR image").
			Mark(ierr.ErrEncoding)
	}
	return png, nil
}

// GenerateImage renders the verification URL as a raw image for the
// receipt raster path
func GenerateImage(p Params, size int) (*qrcode.QRCode, error) {
	url, err := BuildURL(p)
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Verification URL could not be encoded as a QR image").
			Mark(ierr.ErrEncoding)
	}
	return code, nil
}

// padToken left-pads the token identifier with zeros to six characters
func padToken(id string) string {
	for len(id) < 6 {
		id = "0" + id
	}
	return id
}

// verificationHash is the lowercase hex SHA-1 over the concatenation
// chNFe + nVersao + tpAmb + cIdToken + securityCode. The token must
// already be zero-padded to six characters.
func verificationHash(accessKey, environmentCode, token, securityCode string) string {
	sum := sha1.Sum([]byte(accessKey + payloadVersion + environmentCode + token + securityCode))
	return hex.EncodeToString(sum[:])
}

// Public consultation pages per jurisdiction. Jurisdictions not listed
// resolve through the shared virtual authority.
var (
	productionConsultURLs = map[string]string{
		"SP": "https://nfe.fazenda.sp.gov.br/NFCeConsultaPublica/Paginas/ConsultaQRCode.aspx",
		"RJ": "http://www4.fazenda.rj.gov.br/consultaNFCe/QRCode",
		"MG": "http://nfce.fazenda.mg.gov.br/portalnfce/sistema/qrcode.xhtml",
		"RS": "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx",
		"PR": "http://www.fazenda.pr.gov.br/nfce/qrcode",
	}

	stagingConsultURLs = map[string]string{
		"SP": "https://homologacao.nfe.fazenda.sp.gov.br/NFCeConsultaPublica/Paginas/ConsultaQRCode.aspx",
		"RJ": "http://www4.fazenda.rj.gov.br/consultaNFCe/QRCode",
		"MG": "http://nfce.fazenda.mg.gov.br/portalnfce/sistema/qrcode.xhtml",
		"RS": "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx",
		"PR": "http://www.fazenda.pr.gov.br/nfce/qrcode",
	}

	fallbackConsultURL = "https://nfce.svrs.rs.gov.br/ws/NFeConsultaQRCode/NFeConsultaQRCode.asn"
)

func baseURLFor(jurisdiction string, env types.Environment) string {
	urls := stagingConsultURLs
	if env == types.EnvironmentProduction {
		urls = productionConsultURLs
	}
	if url, ok := urls[jurisdiction]; ok {
		return url
	}
	return fallbackConsultURL
}
