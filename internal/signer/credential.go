package signer

import (
	"crypto/rsa"
	"crypto/x509"
	"os"
	"strings"
	"time"

	ierr "github.com/giropos/fiscal/internal/errors"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Credential is a signing identity loaded from a PKCS#12 bundle. The
// private key never leaves this struct; callers sign through Signer.
type Credential struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
	CAChain     []*x509.Certificate
}

// LoadCredential reads and decrypts a PKCS#12 bundle from disk
func LoadCredential(path, password string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not read certificate bundle at %s", path).
			Mark(ierr.ErrCertificateInvalid)
	}
	return ParseCredential(data, password)
}

// ParseCredential decrypts a PKCS#12 bundle held in memory
func ParseCredential(data []byte, password string) (*Credential, error) {
	key, cert, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Certificate bundle could not be decrypted; check the password").
			Mark(ierr.ErrCertificateInvalid)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ierr.NewError("unsupported private key type").
			WithHint("The signing certificate must carry an RSA private key").
			Mark(ierr.ErrCertificateInvalid)
	}

	return &Credential{
		Certificate: cert,
		PrivateKey:  rsaKey,
		CAChain:     chain,
	}, nil
}

// CheckValidity verifies the certificate window at the given instant.
// The signer calls this per use so a bundle loaded at startup cannot
// keep signing past its expiry.
func (c *Credential) CheckValidity(now time.Time) error {
	if now.After(c.Certificate.NotAfter) {
		return ierr.NewError("certificate expired").
			WithHintf("Certificate expired on %s", c.Certificate.NotAfter.Format("2006-01-02")).
			Mark(ierr.ErrCertificateExpired)
	}
	if now.Before(c.Certificate.NotBefore) {
		return ierr.NewError("certificate not yet valid").
			WithHintf("Certificate becomes valid on %s", c.Certificate.NotBefore.Format("2006-01-02")).
			Mark(ierr.ErrCertificateInvalid)
	}
	return nil
}

// ExpiresAt returns the end of the certificate validity window
func (c *Credential) ExpiresAt() time.Time {
	return c.Certificate.NotAfter
}

// TaxID extracts the 14-digit establishment registration embedded in
// the certificate subject. Issuers place it after a colon in the CN or
// as the trailing token.
func (c *Credential) TaxID() string {
	cn := c.Certificate.Subject.CommonName
	if idx := strings.LastIndex(cn, ":"); idx >= 0 {
		if id := digitsOnly(cn[idx+1:]); len(id) == 14 {
			return id
		}
	}
	fields := strings.Fields(cn)
	for i := len(fields) - 1; i >= 0; i-- {
		if id := digitsOnly(fields[i]); len(id) == 14 {
			return id
		}
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
