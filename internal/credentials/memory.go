package credentials

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and single-node setups
// where credentials are seeded from configuration.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[uuid.UUID]*Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds: make(map[uuid.UUID]*Credential),
	}
}

// Put inserts or replaces a credential.
func (m *MemoryStore) Put(cred Credential) {
	m.mu.Lock()
	c := cred
	m.creds[cred.ID] = &c
	m.mu.Unlock()
}

// Revoke marks a credential revoked at the given instant.
func (m *MemoryStore) Revoke(credentialID uuid.UUID, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creds[credentialID]
	if !ok {
		return false
	}
	c.RevokedAt = &at
	return true
}

func (m *MemoryStore) ListActive(ctx context.Context) ([]Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Credential, 0, len(m.creds))
	for _, c := range m.creds {
		result = append(result, *c)
	}
	return result, nil
}

func (m *MemoryStore) TouchUsage(ctx context.Context, credentialID uuid.UUID, address *netip.Addr, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creds[credentialID]
	if !ok {
		return nil
	}
	t := now
	c.LastUsedAt = &t
	c.LastUsedAddress = address
	return nil
}
