// Package registration implements the admission pipeline that gates every
// inbound registration and heartbeat: authenticate, rate limit, validate,
// suppress duplicates, classify against prior host state, and apply the
// transition exactly once.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"

	"github.com/benbjohnson/clock"

	"github.com/fleetware/registrar/internal/credentials"
	"github.com/fleetware/registrar/internal/dedup"
	"github.com/fleetware/registrar/internal/hosts"
	"github.com/fleetware/registrar/internal/ratelimit"
)

// Pipeline orchestrates admission in a fixed stage order, each stage
// short-circuiting on rejection. It holds no state of its own beyond the
// injected components, so tests construct isolated instances freely.
type Pipeline struct {
	validator *credentials.Validator
	limiter   *ratelimit.Limiter
	dedup     *dedup.Suppressor
	registry  hosts.Registry
	stats     *Stats
	clock     clock.Clock
}

func NewPipeline(
	validator *credentials.Validator,
	limiter *ratelimit.Limiter,
	suppressor *dedup.Suppressor,
	registry hosts.Registry,
	stats *Stats,
	clk clock.Clock,
) *Pipeline {
	return &Pipeline{
		validator: validator,
		limiter:   limiter,
		dedup:     suppressor,
		registry:  registry,
		stats:     stats,
		clock:     clk,
	}
}

// Process admits or rejects a single event and returns exactly one Result.
// Retries are the caller's concern; redelivery converges to
// DuplicateIgnored or HeartbeatUpdate. Cancellation of ctx aborts the
// storage calls; admission rejections never consult storage.
func (p *Pipeline) Process(ctx context.Context, event Event) Result {
	started := p.clock.Now()

	outcome := func() Outcome {
		now := p.clock.Now()
		return Outcome{
			Hostname:      event.Hostname,
			SourceAddress: event.SourceAddress,
			DecidedAt:     now,
			Latency:       now.Sub(started),
		}
	}
	finish := func(r Result) Result {
		p.stats.Record(r)
		return r
	}

	// Stage 1: auth gate.
	if event.BearerToken == "" {
		return finish(AuthRequired{outcome()})
	}
	identity, err := p.validator.Validate(ctx, event.BearerToken, event.SourceAddress)
	if err != nil {
		if reason, rejected := credentials.RejectionReason(err); rejected {
			return finish(InvalidToken{Outcome: outcome(), Reason: reason})
		}
		// Infrastructure failure, not an authentication failure.
		return finish(StorageError{Outcome: outcome(), Err: err})
	}

	// Stage 2: per-source rate limit.
	if !p.limiter.Admit(event.SourceAddress) {
		return finish(RateLimited{outcome()})
	}

	// Stage 3: input validation.
	if !hosts.ValidHostname(event.Hostname) {
		return finish(ValidationError{Outcome: outcome(), Field: "hostname"})
	}
	sourceAddr, err := netip.ParseAddr(event.SourceAddress)
	if err != nil {
		return finish(ValidationError{Outcome: outcome(), Field: "source_address"})
	}

	// Stage 4: duplicate suppression.
	if p.dedup.IsDuplicate(event.Hostname, event.SourceAddress) {
		return finish(DuplicateIgnored{outcome()})
	}

	// Stage 5: classify against prior state and apply the transition. The
	// event is recorded with the suppressor only after the transition was
	// applied, so a failed event retried is not swallowed as a duplicate.
	result := p.apply(ctx, identity, event, sourceAddr, outcome)
	switch result.(type) {
	case NewRegistration, HeartbeatUpdate, IPChange, Reconnection:
		p.dedup.Record(event.Hostname, event.SourceAddress)
	}
	return finish(result)
}

func (p *Pipeline) apply(ctx context.Context, identity credentials.Identity, event Event, sourceAddr netip.Addr, outcome func() Outcome) Result {
	now := p.clock.Now()

	existing, err := p.registry.GetByOwnerAndHostname(ctx, identity.OwnerID, event.Hostname)
	if err != nil && !errors.Is(err, hosts.ErrHostNotFound) {
		return StorageError{Outcome: outcome(), Err: err}
	}

	if existing == nil {
		created := hosts.Host{
			OwnerID:        identity.OwnerID,
			Hostname:       event.Hostname,
			CurrentAddress: sourceAddr,
			Status:         hosts.StatusOnline,
			FirstSeenAt:    now,
			LastSeenAt:     now,
		}
		if _, err := p.registry.Create(ctx, created); err != nil {
			// A concurrent Create winning the uniqueness race surfaces
			// here; the caller retries and converges to a heartbeat.
			return StorageError{Outcome: outcome(), Err: err}
		}
		return NewRegistration{outcome()}
	}

	if existing.OwnerID != identity.OwnerID {
		slog.Warn("Host owner mismatch on scoped lookup",
			"hostname", event.Hostname,
			"owner_id", identity.OwnerID,
			"record_owner_id", existing.OwnerID)
		return AuthorizationError{outcome()}
	}

	previous := existing.CurrentAddress
	addressChanged := previous != sourceAddr

	fields := hosts.UpdateFields{LastSeenAt: now}
	var result func() Result

	switch {
	case existing.Status == hosts.StatusOffline:
		online := hosts.StatusOnline
		fields.Status = &online
		if addressChanged {
			fields.CurrentAddress = &sourceAddr
			result = func() Result {
				return Reconnection{Outcome: outcome(), PreviousAddress: previous.String()}
			}
		} else {
			result = func() Result { return Reconnection{Outcome: outcome()} }
		}
	case addressChanged:
		fields.CurrentAddress = &sourceAddr
		result = func() Result {
			return IPChange{Outcome: outcome(), PreviousAddress: previous.String()}
		}
	default:
		result = func() Result { return HeartbeatUpdate{outcome()} }
	}

	updated, err := p.registry.Update(ctx, identity.OwnerID, event.Hostname, fields)
	if err != nil {
		return StorageError{Outcome: outcome(), Err: err}
	}
	if !updated {
		// The row was read moments ago; losing it mid-flight means the
		// store is in flux. Report indeterminate and let the caller retry.
		return StorageError{Outcome: outcome(), Err: hosts.ErrHostNotFound}
	}

	return result()
}
