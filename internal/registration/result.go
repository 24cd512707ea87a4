package registration

import (
	"time"

	"github.com/fleetware/registrar/internal/credentials"
)

// Event is an inbound registration or heartbeat as handed over by the
// connection layer.
type Event struct {
	Hostname      string
	SourceAddress string
	ClaimedAt     time.Time
	BearerToken   string
}

// Outcome carries the fields common to every Result variant.
type Outcome struct {
	Hostname      string
	SourceAddress string
	DecidedAt     time.Time
	Latency       time.Duration
}

// Meta returns the common outcome fields. Embedding Outcome in a variant
// struct satisfies Result.
func (o Outcome) Meta() Outcome { return o }

// Result is the pipeline's public contract: a closed set of admission
// outcomes the caller branches on. Rejections are values, never errors.
type Result interface {
	Meta() Outcome
}

// AuthRequired: the event carried no bearer token.
type AuthRequired struct {
	Outcome
}

// InvalidToken: the bearer token did not resolve to a usable credential.
type InvalidToken struct {
	Outcome
	Reason credentials.Reason
}

// RateLimited: the source address exhausted its per-minute budget.
type RateLimited struct {
	Outcome
}

// ValidationError: a request field failed syntactic validation.
type ValidationError struct {
	Outcome
	Field string
}

// DuplicateIgnored: same (hostname, source address) seen within the
// suppression window; no state was touched.
type DuplicateIgnored struct {
	Outcome
}

// NewRegistration: first registration of this hostname for the owner.
type NewRegistration struct {
	Outcome
}

// HeartbeatUpdate: known host, same address, still online; only the
// last-seen timestamp advanced.
type HeartbeatUpdate struct {
	Outcome
}

// IPChange: known online host reporting from a new address.
type IPChange struct {
	Outcome
	PreviousAddress string
}

// Reconnection: host transitioned from offline back to online.
// PreviousAddress is empty when the address did not change.
type Reconnection struct {
	Outcome
	PreviousAddress string
}

// AuthorizationError: the stored host does not belong to the authenticated
// owner. Structurally impossible with scoped lookups; checked defensively.
type AuthorizationError struct {
	Outcome
}

// StorageError: the registry read or write failed; the caller may retry and
// the outcome is indeterminate rather than rejected.
type StorageError struct {
	Outcome
	Err error
}
