package registration

import (
	"go.uber.org/atomic"
)

// Stats counts admission outcomes per variant. Purely observational; the
// pipeline never branches on these values.
type Stats struct {
	AuthRequired        atomic.Int64
	InvalidTokens       atomic.Int64
	RateLimited         atomic.Int64
	ValidationErrors    atomic.Int64
	Duplicates          atomic.Int64
	NewRegistrations    atomic.Int64
	Heartbeats          atomic.Int64
	IPChanges           atomic.Int64
	Reconnections       atomic.Int64
	AuthorizationErrors atomic.Int64
	StorageErrors       atomic.Int64
}

func NewStats() *Stats {
	return &Stats{}
}

// Record increments the counter matching the result's variant. A
// reconnection that also changed address counts as an IP change as well.
func (s *Stats) Record(result Result) {
	switch r := result.(type) {
	case AuthRequired:
		s.AuthRequired.Inc()
	case InvalidToken:
		s.InvalidTokens.Inc()
	case RateLimited:
		s.RateLimited.Inc()
	case ValidationError:
		s.ValidationErrors.Inc()
	case DuplicateIgnored:
		s.Duplicates.Inc()
	case NewRegistration:
		s.NewRegistrations.Inc()
	case HeartbeatUpdate:
		s.Heartbeats.Inc()
	case IPChange:
		s.IPChanges.Inc()
	case Reconnection:
		s.Reconnections.Inc()
		if r.PreviousAddress != "" {
			s.IPChanges.Inc()
		}
	case AuthorizationError:
		s.AuthorizationErrors.Inc()
	case StorageError:
		s.StorageErrors.Inc()
	}
}

// Snapshot returns the current counter values keyed by outcome name.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"auth_required":       s.AuthRequired.Load(),
		"invalid_token":       s.InvalidTokens.Load(),
		"rate_limited":        s.RateLimited.Load(),
		"validation_error":    s.ValidationErrors.Load(),
		"duplicate_ignored":   s.Duplicates.Load(),
		"new_registration":    s.NewRegistrations.Load(),
		"heartbeat_update":    s.Heartbeats.Load(),
		"ip_change":           s.IPChanges.Load(),
		"reconnection":        s.Reconnections.Load(),
		"authorization_error": s.AuthorizationErrors.Load(),
		"storage_error":       s.StorageErrors.Load(),
	}
}
