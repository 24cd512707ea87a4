package hosts

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrHostNotFound = errors.New("host not found")
	ErrHostExists   = errors.New("host already registered for this owner")
)

// Registry is the host-record collaborator. Lookups are always scoped by
// owner; the registrar never enumerates or deletes hosts (retention belongs
// to the external registry).
type Registry interface {
	GetByOwnerAndHostname(ctx context.Context, ownerID uuid.UUID, hostname string) (*Host, error)
	Create(ctx context.Context, host Host) (*Host, error)

	// Update applies the given fields to the (ownerID, hostname) row with
	// last-write-wins semantics. Returns false when no such row exists.
	Update(ctx context.Context, ownerID uuid.UUID, hostname string, fields UpdateFields) (bool, error)
}
