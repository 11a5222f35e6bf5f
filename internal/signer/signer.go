// Package signer applies the detached-enveloped XML signature the tax
// authority validates. The byte layout of the Signature block is fixed
// by the authority's verifier: element order, algorithm URIs, and the
// absence of whitespace all matter.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
)

const (
	dsigNamespace     = "http://www.w3.org/2000/09/xmldsig#"
	c14nAlgorithm     = "http://www.w3.org/2001/10/xml-exc-c14n#"
	signatureMethod   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	envelopedTransfrm = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	digestMethod      = "http://www.w3.org/2000/09/xmldsig#sha1"
)

var interTagSpace = regexp.MustCompile(`>\s+<`)

// Signer signs serialized documents with a loaded credential
type Signer struct {
	credential *Credential
	logger     *logger.Logger
	now        func() time.Time
}

// NewSigner creates a signer around a decrypted credential
func NewSigner(credential *Credential, log *logger.Logger) *Signer {
	return &Signer{
		credential: credential,
		logger:     log,
		now:        time.Now,
	}
}

// Credential exposes the loaded identity for transport-layer reuse
func (s *Signer) Credential() *Credential {
	return s.credential
}

// Sign inserts a Signature block immediately after the signed region.
// The input must contain exactly one infNFe element with an Id
// attribute; everything else passes through byte for byte.
func (s *Signer) Sign(xml string) (string, error) {
	if err := s.credential.CheckValidity(s.now()); err != nil {
		return "", err
	}

	region, id, err := extractSignedRegion(xml)
	if err != nil {
		return "", err
	}

	digest := sha1.Sum([]byte(canonicalize(region)))
	digestValue := base64.StdEncoding.EncodeToString(digest[:])

	signedInfo := buildSignedInfo(id, digestValue)
	signatureValue, err := s.signRSASHA1(canonicalize(signedInfo))
	if err != nil {
		return "", err
	}

	certValue := base64.StdEncoding.EncodeToString(s.credential.Certificate.Raw)
	signature := buildSignatureElement(id, digestValue, signatureValue, certValue)

	closeTag := "</infNFe>"
	pos := strings.Index(xml, closeTag)
	if pos < 0 {
		return "", ierr.NewError("signed region close tag not found").
			WithHint("Document is missing the infNFe element").
			Mark(ierr.ErrSigning)
	}
	insertAt := pos + len(closeTag)

	s.logger.Debugw("document signed", "reference_id", id)

	return xml[:insertAt] + signature + xml[insertAt:], nil
}

func (s *Signer) signRSASHA1(data string) (string, error) {
	hashed := sha1.Sum([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.credential.PrivateKey, crypto.SHA1, hashed[:])
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Private key signature operation failed").
			Mark(ierr.ErrSigning)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// ExtractDigest returns the DigestValue the signature embedded, read
// back verbatim from the signed XML. Downstream consumers must reuse
// these exact bytes and never recompute the hash.
func ExtractDigest(signedXML string) (string, error) {
	const open, close = "<DigestValue>", "</DigestValue>"
	start := strings.Index(signedXML, open)
	if start < 0 {
		return "", ierr.NewError("digest value not found").
			WithHint("Document does not carry a signature").
			Mark(ierr.ErrSigning)
	}
	start += len(open)
	end := strings.Index(signedXML[start:], close)
	if end < 0 {
		return "", ierr.NewError("digest value not terminated").
			WithHint("Signature block is malformed").
			Mark(ierr.ErrSigning)
	}
	return signedXML[start : start+end], nil
}

// extractSignedRegion slices the infNFe element out of the document
// and returns it together with its Id attribute.
func extractSignedRegion(xml string) (region string, id string, err error) {
	start := strings.Index(xml, "<infNFe")
	if start < 0 {
		return "", "", ierr.NewError("signed region not found").
			WithHint("Document is missing the infNFe element").
			Mark(ierr.ErrSigning)
	}
	closeTag := "</infNFe>"
	end := strings.Index(xml[start:], closeTag)
	if end < 0 {
		return "", "", ierr.NewError("signed region not terminated").
			WithHint("Document infNFe element is not closed").
			Mark(ierr.ErrSigning)
	}
	region = xml[start : start+end+len(closeTag)]

	openEnd := strings.Index(region, ">")
	openTag := region[:openEnd+1]
	idMarker := `Id="`
	idStart := strings.Index(openTag, idMarker)
	if idStart < 0 {
		return "", "", ierr.NewError("signed region id not found").
			WithHint("The infNFe element has no Id attribute").
			Mark(ierr.ErrSigning)
	}
	idStart += len(idMarker)
	idEnd := strings.Index(openTag[idStart:], `"`)
	if idEnd < 0 {
		return "", "", ierr.NewError("signed region id not terminated").
			WithHint("The infNFe Id attribute is malformed").
			Mark(ierr.ErrSigning)
	}
	return region, openTag[idStart : idStart+idEnd], nil
}

// canonicalize applies the reduced canonical form the authority
// accepts for this document class: no line breaks, no whitespace
// between tags, text content untouched.
func canonicalize(xml string) string {
	out := strings.NewReplacer("\n", "", "\r", "").Replace(xml)
	out = interTagSpace.ReplaceAllString(out, "><")
	return strings.TrimSpace(out)
}

func buildSignedInfo(id, digestValue string) string {
	var b strings.Builder
	b.WriteString(`<SignedInfo xmlns="` + dsigNamespace + `">`)
	b.WriteString(`<CanonicalizationMethod Algorithm="` + c14nAlgorithm + `"/>`)
	b.WriteString(`<SignatureMethod Algorithm="` + signatureMethod + `"/>`)
	b.WriteString(`<Reference URI="#` + id + `">`)
	b.WriteString(`<Transforms>`)
	b.WriteString(`<Transform Algorithm="` + envelopedTransfrm + `"/>`)
	b.WriteString(`<Transform Algorithm="` + c14nAlgorithm + `"/>`)
	b.WriteString(`</Transforms>`)
	b.WriteString(`<DigestMethod Algorithm="` + digestMethod + `"/>`)
	b.WriteString(`<DigestValue>` + digestValue + `</DigestValue>`)
	b.WriteString(`</Reference>`)
	b.WriteString(`</SignedInfo>`)
	return b.String()
}

func buildSignatureElement(id, digestValue, signatureValue, certValue string) string {
	var b strings.Builder
	b.WriteString(`<Signature xmlns="` + dsigNamespace + `">`)
	b.WriteString(`<SignedInfo>`)
	b.WriteString(`<CanonicalizationMethod Algorithm="` + c14nAlgorithm + `"/>`)
	b.WriteString(`<SignatureMethod Algorithm="` + signatureMethod + `"/>`)
	b.WriteString(`<Reference URI="#` + id + `">`)
	b.WriteString(`<Transforms>`)
	b.WriteString(`<Transform Algorithm="` + envelopedTransfrm + `"/>`)
	b.WriteString(`<Transform Algorithm="` + c14nAlgorithm + `"/>`)
	b.WriteString(`</Transforms>`)
	b.WriteString(`<DigestMethod Algorithm="` + digestMethod + `"/>`)
	b.WriteString(`<DigestValue>` + digestValue + `</DigestValue>`)
	b.WriteString(`</Reference>`)
	b.WriteString(`</SignedInfo>`)
	b.WriteString(`<SignatureValue>` + signatureValue + `</SignatureValue>`)
	b.WriteString(`<KeyInfo>`)
	b.WriteString(`<X509Data>`)
	b.WriteString(`<X509Certificate>` + certValue + `</X509Certificate>`)
	b.WriteString(`</X509Data>`)
	b.WriteString(`</KeyInfo>`)
	b.WriteString(`</Signature>`)
	return b.String()
}
