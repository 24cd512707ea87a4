package credentials

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps a MemoryStore and counts credential scans, so tests
// can observe whether a validation was served from the cache.
type countingStore struct {
	*MemoryStore
	mu    sync.Mutex
	scans int
}

func (c *countingStore) ListActive(ctx context.Context) ([]Credential, error) {
	c.mu.Lock()
	c.scans++
	c.mu.Unlock()
	return c.MemoryStore.ListActive(ctx)
}

func (c *countingStore) scanCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scans
}

type failingStore struct{}

func (failingStore) ListActive(ctx context.Context) ([]Credential, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) TouchUsage(ctx context.Context, credentialID uuid.UUID, address *netip.Addr, now time.Time) error {
	return nil
}

func seedCredential(t *testing.T, store *MemoryStore, ownerID uuid.UUID) (string, Credential) {
	t.Helper()

	token, digest, err := GenerateToken()
	require.NoError(t, err)

	cred := Credential{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Digest:   digest,
		IsActive: true,
	}
	store.Put(cred)
	return token, cred
}

func TestValidate(t *testing.T) {
	store := NewMemoryStore()
	ownerID := uuid.New()
	token, cred := seedCredential(t, store, ownerID)

	clk := clock.NewMock()
	v := NewValidator(store, 5*time.Minute, clk)

	identity, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ownerID, identity.OwnerID)
	assert.Equal(t, cred.ID, identity.CredentialID)
}

func TestValidateStampsUsage(t *testing.T) {
	store := NewMemoryStore()
	token, cred := seedCredential(t, store, uuid.New())

	clk := clock.NewMock()
	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)

	store.mu.RLock()
	stored := store.creds[cred.ID]
	store.mu.RUnlock()

	require.NotNil(t, stored.LastUsedAt)
	assert.Equal(t, clk.Now(), *stored.LastUsedAt)
	require.NotNil(t, stored.LastUsedAddress)
	assert.Equal(t, "10.0.0.1", stored.LastUsedAddress.String())
}

func TestValidateNotFound(t *testing.T) {
	store := NewMemoryStore()
	seedCredential(t, store, uuid.New())

	v := NewValidator(store, 5*time.Minute, clock.NewMock())

	_, err := v.Validate(context.Background(), "rk_unknown", "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestValidateExpired(t *testing.T) {
	store := NewMemoryStore()
	clk := clock.NewMock()

	token, digest, err := GenerateToken()
	require.NoError(t, err)
	expiresAt := clk.Now().Add(-time.Minute)
	store.Put(Credential{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Digest:    digest,
		IsActive:  true,
		ExpiresAt: &expiresAt,
	})

	v := NewValidator(store, 5*time.Minute, clk)

	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRevokedBeforeFirstUse(t *testing.T) {
	store := NewMemoryStore()
	clk := clock.NewMock()
	token, cred := seedCredential(t, store, uuid.New())

	store.Revoke(cred.ID, clk.Now())

	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenInactive)
}

func TestValidateCachesPositiveResult(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	token, _ := seedCredential(t, store.MemoryStore, uuid.New())

	clk := clock.NewMock()
	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.scanCount())
}

func TestValidateCacheExpires(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	token, _ := seedCredential(t, store.MemoryStore, uuid.New())

	clk := clock.NewMock()
	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)

	clk.Add(5 * time.Minute)

	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.scanCount())
}

func TestValidateNeverCachesNegativeResult(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	clk := clock.NewMock()

	token, digest, err := GenerateToken()
	require.NoError(t, err)
	id := uuid.New()
	expiresAt := clk.Now().Add(-time.Minute)
	store.Put(Credential{
		ID:        id,
		OwnerID:   uuid.New(),
		Digest:    digest,
		IsActive:  true,
		ExpiresAt: &expiresAt,
	})

	v := NewValidator(store, 5*time.Minute, clk)

	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenExpired)
	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, 2, store.scanCount())

	// Renewing the credential takes effect immediately because the
	// rejection was never cached.
	renewed := clk.Now().Add(time.Hour)
	store.Put(Credential{
		ID:        id,
		OwnerID:   uuid.New(),
		Digest:    digest,
		IsActive:  true,
		ExpiresAt: &renewed,
	})
	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.NoError(t, err)
}

func TestInvalidateForcesRevalidation(t *testing.T) {
	store := NewMemoryStore()
	clk := clock.NewMock()
	token, cred := seedCredential(t, store, uuid.New())

	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)

	// Within the TTL the cache still answers; staleness is bounded by the
	// TTL unless the revocation path invalidates explicitly.
	store.Revoke(cred.ID, clk.Now())
	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.NoError(t, err)

	v.Invalidate(token)
	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenInactive)
}

func TestInvalidateOwner(t *testing.T) {
	store := NewMemoryStore()
	clk := clock.NewMock()
	ownerID := uuid.New()
	token, cred := seedCredential(t, store, ownerID)
	otherToken, _ := seedCredential(t, store, uuid.New())

	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), otherToken, "10.0.0.2")
	require.NoError(t, err)

	store.Revoke(cred.ID, clk.Now())
	v.InvalidateOwner(ownerID)

	_, err = v.Validate(context.Background(), token, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenInactive)

	// The other owner's entry is untouched.
	_, err = v.Validate(context.Background(), otherToken, "10.0.0.2")
	assert.NoError(t, err)
}

func TestValidateStoreErrorIsNotRejection(t *testing.T) {
	v := NewValidator(failingStore{}, 5*time.Minute, clock.NewMock())

	_, err := v.Validate(context.Background(), "rk_whatever", "10.0.0.1")
	require.Error(t, err)

	_, rejected := RejectionReason(err)
	assert.False(t, rejected)
}

func TestRejectionReason(t *testing.T) {
	reason, ok := RejectionReason(ErrTokenNotFound)
	assert.True(t, ok)
	assert.Equal(t, ReasonNotFound, reason)

	reason, ok = RejectionReason(ErrTokenExpired)
	assert.True(t, ok)
	assert.Equal(t, ReasonExpired, reason)

	reason, ok = RejectionReason(ErrTokenInactive)
	assert.True(t, ok)
	assert.Equal(t, ReasonInactive, reason)

	_, ok = RejectionReason(errors.New("boom"))
	assert.False(t, ok)
}

func TestCleanupEvictsExpiredEntries(t *testing.T) {
	store := NewMemoryStore()
	clk := clock.NewMock()
	token, _ := seedCredential(t, store, uuid.New())

	v := NewValidator(store, 5*time.Minute, clk)

	_, err := v.Validate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)

	clk.Add(6 * time.Minute)
	v.cleanup()

	v.mu.RLock()
	count := len(v.cache)
	v.mu.RUnlock()
	assert.Equal(t, 0, count)
}

func TestConcurrentValidate(t *testing.T) {
	store := NewMemoryStore()
	clk := clock.NewMock()
	token, _ := seedCredential(t, store, uuid.New())

	v := NewValidator(store, 5*time.Minute, clk)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Validate(context.Background(), token, "10.0.0.1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
