package contingency

import (
	"context"
)

// Repository defines the interface for contingency record persistence.
// Save must be durable before it returns: the caller treats the sale
// as emitted the moment Save succeeds.
type Repository interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, accessKey string) (*Record, error)
	ListPending(ctx context.Context) ([]*Record, error)
	// MarkTransmitted is idempotent; marking an already-transmitted
	// or unknown key is not an error.
	MarkTransmitted(ctx context.Context, accessKey string, protocol string) error
}
