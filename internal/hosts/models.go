package hosts

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Host is a registered hostname/address binding. Hostnames are unique only
// within an owner's namespace: two owners may register the same hostname
// independently.
type Host struct {
	OwnerID        uuid.UUID
	Hostname       string
	CurrentAddress netip.Addr
	Status         Status
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
}

// UpdateFields carries the mutable subset of a Host for partial updates.
// Nil pointer fields are left unchanged; LastSeenAt always advances.
type UpdateFields struct {
	CurrentAddress *netip.Addr
	Status         *Status
	LastSeenAt     time.Time
}
