package credentials

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

var (
	ErrTokenNotFound = errors.New("token does not match any credential")
	ErrTokenExpired  = errors.New("credential has expired")
	ErrTokenInactive = errors.New("credential is inactive or revoked")
)

// Reason is the rejection category reported to callers, matching the
// validation sentinels above.
type Reason string

const (
	ReasonNotFound Reason = "not_found"
	ReasonExpired  Reason = "expired"
	ReasonInactive Reason = "inactive"
)

// RejectionReason maps a Validate error to its rejection category. The
// second return is false for infrastructure errors, which callers must
// report as storage failures rather than authentication failures.
func RejectionReason(err error) (Reason, bool) {
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired, true
	case errors.Is(err, ErrTokenInactive):
		return ReasonInactive, true
	default:
		return "", false
	}
}

type cacheEntry struct {
	identity   Identity
	insertedAt time.Time
}

// Validator authenticates presented bearer tokens against the Store,
// keeping a short-lived positive-result cache keyed by token digest so the
// common path avoids a full credential scan. Negative results are never
// cached: a revoked or expired credential must fail on the next miss.
type Validator struct {
	store Store
	ttl   time.Duration
	clock clock.Clock

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewValidator(store Store, cacheTTL time.Duration, clk clock.Clock) *Validator {
	return &Validator{
		store: store,
		ttl:   cacheTTL,
		clock: clk,
		cache: make(map[string]cacheEntry),
	}
}

// Validate resolves the owner identity behind a presented token. On failure
// it returns one of the token sentinels, or a wrapped store error when the
// credential scan itself failed.
func (v *Validator) Validate(ctx context.Context, token, sourceAddress string) (Identity, error) {
	digest := DigestToken(token)
	now := v.clock.Now()

	v.mu.RLock()
	entry, hit := v.cache[digest]
	v.mu.RUnlock()
	if hit && now.Sub(entry.insertedAt) < v.ttl {
		return entry.identity, nil
	}

	creds, err := v.store.ListActive(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("list active credentials: %w", err)
	}

	digestBytes := []byte(digest)
	for i := range creds {
		cred := &creds[i]
		// Constant-time comparison over the full digest; no prefix
		// short-circuit.
		if subtle.ConstantTimeCompare(digestBytes, []byte(cred.Digest)) != 1 {
			continue
		}

		if !cred.IsActive || cred.RevokedAt != nil {
			return Identity{}, ErrTokenInactive
		}
		if cred.ExpiresAt != nil && !cred.ExpiresAt.After(now) {
			return Identity{}, ErrTokenExpired
		}

		v.touchUsage(ctx, cred.ID, sourceAddress, now)

		identity := Identity{OwnerID: cred.OwnerID, CredentialID: cred.ID}
		v.mu.Lock()
		v.cache[digest] = cacheEntry{identity: identity, insertedAt: now}
		v.mu.Unlock()
		return identity, nil
	}

	return Identity{}, ErrTokenNotFound
}

// touchUsage stamps last-used telemetry. Failures are logged and swallowed:
// the fields are non-semantic and must not turn a valid token away.
func (v *Validator) touchUsage(ctx context.Context, credentialID uuid.UUID, sourceAddress string, now time.Time) {
	var addr *netip.Addr
	if sourceAddress != "" {
		parsed, err := netip.ParseAddr(sourceAddress)
		if err == nil {
			addr = &parsed
		}
	}

	if err := v.store.TouchUsage(ctx, credentialID, addr, now); err != nil {
		slog.Warn("Failed to stamp credential usage",
			"credential_id", credentialID,
			"error", err)
	}
}

// Invalidate drops the cache entry for a token, forcing the next call to
// revalidate against the store. Used by out-of-band revocation paths.
func (v *Validator) Invalidate(token string) {
	digest := DigestToken(token)
	v.mu.Lock()
	delete(v.cache, digest)
	v.mu.Unlock()
}

// InvalidateOwner drops every cached entry bound to an owner.
func (v *Validator) InvalidateOwner(ownerID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for digest, entry := range v.cache {
		if entry.identity.OwnerID == ownerID {
			delete(v.cache, digest)
		}
	}
}

// StartCleanup evicts expired cache entries on the given interval until the
// context is cancelled.
func (v *Validator) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := v.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.cleanup()
		}
	}
}

func (v *Validator) cleanup() {
	now := v.clock.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	for digest, entry := range v.cache {
		if now.Sub(entry.insertedAt) >= v.ttl {
			delete(v.cache, digest)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Evicted expired validation cache entries", "removed", removed)
	}
}
