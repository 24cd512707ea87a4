package credentials

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Credential is an opaque bearer secret issued to an owner out-of-band.
// Only the digest of the secret is ever stored.
type Credential struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Digest          string
	ExpiresAt       *time.Time
	IsActive        bool
	RevokedAt       *time.Time
	LastUsedAt      *time.Time
	LastUsedAddress *netip.Addr
}

// Usable reports whether the credential may authenticate a caller at the
// given instant: active, not revoked, and not past its expiry.
func (c *Credential) Usable(now time.Time) bool {
	if !c.IsActive || c.RevokedAt != nil {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Identity is the owner binding resolved from a valid bearer token.
type Identity struct {
	OwnerID      uuid.UUID
	CredentialID uuid.UUID
}
