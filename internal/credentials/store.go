package credentials

import (
	"context"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Store is the credential collaborator consumed by the Validator. The
// registrar never creates or revokes credentials itself; it only reads the
// active set and stamps usage telemetry.
type Store interface {
	// ListActive returns the candidate credential set for validation.
	// Implementations may return revoked or expired entries; the validity
	// invariant is always re-checked by the caller, which needs the full
	// record to distinguish a revoked credential from an unknown token.
	ListActive(ctx context.Context) ([]Credential, error)

	// TouchUsage stamps last-used fields on a credential. The write is
	// non-semantic telemetry; concurrent touches may race, last write wins.
	TouchUsage(ctx context.Context, credentialID uuid.UUID, address *netip.Addr, now time.Time) error
}
