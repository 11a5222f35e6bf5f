package sequence

import (
	"context"
	"fmt"
)

// Scope identifies one independent numbering series
type Scope struct {
	Jurisdiction string
	EmitterTaxID string
	Series       int
}

func (s Scope) Key() string {
	return fmt.Sprintf("%s-%s-%03d", s.Jurisdiction, s.EmitterTaxID, s.Series)
}

// Counter is the single source of truth for document numbering.
// Implementations must serialize the read-increment: two concurrent
// calls to Next for the same scope must never return the same number.
type Counter interface {
	// Next atomically consumes and returns the next sequence number
	// for the scope. The returned number is committed durably before
	// Next returns.
	Next(ctx context.Context, scope Scope) (uint64, error)
	// Current returns the next number that would be handed out,
	// without consuming it.
	Current(ctx context.Context, scope Scope) (uint64, error)
}
