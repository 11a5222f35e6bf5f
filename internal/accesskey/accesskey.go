// Package accesskey builds the 44-digit unique identifier carried by
// every fiscal document: 43 digits of fixed-width fields plus a final
// modulo-11 check digit.
package accesskey

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
)

const (
	// KeyLength is the total number of digits in an access key
	KeyLength = 44

	maxSeries   = 999
	maxSequence = 999999999
)

// Params are the inputs for one access key
type Params struct {
	Jurisdiction string // two-letter abbreviation
	EmittedAt    time.Time
	EmitterTaxID string // 14 digits
	Series       int
	Sequence     uint64
	EmissionType types.EmissionType
}

// Generate builds the access key:
//
//	cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1)
//
// The 8-digit filler (cNF) is derived from the other fields so the key
// is reproducible for auditing; two keys for the same sale differ only
// in the emission-type digit (and check digit) when a contingency
// retry re-keys the document.
func Generate(p Params) (string, error) {
	if !types.IsKnownJurisdiction(p.Jurisdiction) {
		return "", ierr.NewError("invalid jurisdiction").
			WithHintf("Unknown jurisdiction %q", p.Jurisdiction).
			Mark(ierr.ErrValidation)
	}
	if len(p.EmitterTaxID) != 14 || !isDigits(p.EmitterTaxID) {
		return "", ierr.NewError("invalid emitter tax id").
			WithHint("Emitter tax ID must have exactly 14 digits").
			Mark(ierr.ErrValidation)
	}
	if p.Series < 0 || p.Series > maxSeries {
		return "", ierr.NewError("series overflows field width").
			WithHintf("Series must be between 0 and %d", maxSeries).
			Mark(ierr.ErrValidation)
	}
	if p.Sequence == 0 || p.Sequence > maxSequence {
		return "", ierr.NewError("sequence overflows field width").
			WithHintf("Sequence must be between 1 and %d", maxSequence).
			Mark(ierr.ErrValidation)
	}
	if err := p.EmissionType.Validate(); err != nil {
		return "", ierr.WithError(err).
			WithHint("Emission type is invalid").
			Mark(ierr.ErrValidation)
	}

	var b strings.Builder
	b.WriteString(types.JurisdictionCode(p.Jurisdiction))
	b.WriteString(p.EmittedAt.UTC().Format("0601"))
	b.WriteString(p.EmitterTaxID)
	b.WriteString(types.DocumentModel)
	b.WriteString(fmt.Sprintf("%03d", p.Series))
	b.WriteString(fmt.Sprintf("%09d", p.Sequence))
	b.WriteString(p.EmissionType.Code())
	b.WriteString(filler(p))

	prefix := b.String()
	dv, err := CheckDigit(prefix)
	if err != nil {
		return "", err
	}

	return prefix + fmt.Sprintf("%d", dv), nil
}

// CheckDigit computes the modulo-11 check digit over a 43-digit
// prefix. Weights cycle 2 through 9 starting from the rightmost
// digit; a remainder of 0 or 1 yields digit 0.
func CheckDigit(prefix string) (int, error) {
	if len(prefix) != KeyLength-1 || !isDigits(prefix) {
		return 0, ierr.NewError("invalid access key prefix").
			WithHintf("Check digit input must have %d digits", KeyLength-1).
			Mark(ierr.ErrValidation)
	}

	sum := 0
	weight := 2
	for i := len(prefix) - 1; i >= 0; i-- {
		sum += int(prefix[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}

	rem := sum % 11
	if rem < 2 {
		return 0, nil
	}
	return 11 - rem, nil
}

// Validate reports whether key is 44 numeric digits with a correct
// check digit.
func Validate(key string) error {
	if len(key) != KeyLength || !isDigits(key) {
		return ierr.NewError("invalid access key").
			WithHintf("Access key must have exactly %d digits", KeyLength).
			Mark(ierr.ErrValidation)
	}
	dv, err := CheckDigit(key[:KeyLength-1])
	if err != nil {
		return err
	}
	if int(key[KeyLength-1]-'0') != dv {
		return ierr.NewError("access key check digit mismatch").
			WithHint("The final digit does not validate the preceding 43").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Format groups the digits in 11 blocks of 4 for human display
func Format(key string) string {
	if len(key) != KeyLength {
		return key
	}
	parts := make([]string, 0, KeyLength/4)
	for i := 0; i < KeyLength; i += 4 {
		parts = append(parts, key[i:i+4])
	}
	return strings.Join(parts, " ")
}

// Filler returns the 8-digit cNF field embedded in a generated key.
// Keys carry it at positions 35..42.
func Filler(key string) string {
	if len(key) != KeyLength {
		return "00000000"
	}
	return key[35:43]
}

// filler derives the 8-digit cNF deterministically from the fields
// that identify the sale. The emission type stays out of the
// derivation: re-keying the same sale for contingency must change the
// tpEmis digit and the check digit, nothing else.
func filler(p Params) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%03d|%09d",
		p.EmitterTaxID, p.Series, p.Sequence)))
	n := binary.BigEndian.Uint64(h[:8]) % 100000000
	return fmt.Sprintf("%08d", n)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
