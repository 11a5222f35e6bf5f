package contingency

import (
	"time"

	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
)

// Record is one offline-issued document awaiting authority
// confirmation. It is the durable proof of a sale whose tax
// authorization is still outstanding, so it is never deleted before
// being marked transmitted.
type Record struct {
	AccessKey     string                  `json:"access_key"`
	SignedXML     string                  `json:"xml"`
	Status        types.ContingencyStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
	TransmittedAt *time.Time              `json:"transmitted_at,omitempty"`

	// Protocol assigned by the authority on late acceptance
	Protocol string `json:"protocol,omitempty"`
}

// Validate validates the record
func (r *Record) Validate() error {
	if len(r.AccessKey) != 44 {
		return ierr.NewError("invalid access key").
			WithHint("Access key must have 44 digits").
			Mark(ierr.ErrValidation)
	}
	if r.SignedXML == "" {
		return ierr.NewError("missing signed document").
			WithHint("A contingency record requires the signed document text").
			Mark(ierr.ErrValidation)
	}
	if err := r.Status.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Record status is invalid").
			Mark(ierr.ErrValidation)
	}
	return nil
}
