package hosts

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRegistry is an in-memory Registry for tests. The single mutex
// gives it the row-level update atomicity the pipeline expects from the
// real store.
type MemoryRegistry struct {
	mu    sync.RWMutex
	hosts map[string]*Host
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		hosts: make(map[string]*Host),
	}
}

func hostKey(ownerID uuid.UUID, hostname string) string {
	return ownerID.String() + "/" + hostname
}

func (m *MemoryRegistry) GetByOwnerAndHostname(ctx context.Context, ownerID uuid.UUID, hostname string) (*Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hosts[hostKey(ownerID, hostname)]
	if !ok {
		return nil, ErrHostNotFound
	}
	clone := *h
	return &clone, nil
}

func (m *MemoryRegistry) Create(ctx context.Context, host Host) (*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := hostKey(host.OwnerID, host.Hostname)
	if _, ok := m.hosts[key]; ok {
		return nil, ErrHostExists
	}

	h := host
	m.hosts[key] = &h
	clone := h
	return &clone, nil
}

func (m *MemoryRegistry) Update(ctx context.Context, ownerID uuid.UUID, hostname string, fields UpdateFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hosts[hostKey(ownerID, hostname)]
	if !ok {
		return false, nil
	}

	if fields.CurrentAddress != nil {
		h.CurrentAddress = *fields.CurrentAddress
	}
	if fields.Status != nil {
		h.Status = *fields.Status
	}
	h.LastSeenAt = fields.LastSeenAt
	return true, nil
}

// SetStatus flips a host's status directly, mimicking the external
// liveness sweep that marks silent hosts offline.
func (m *MemoryRegistry) SetStatus(ownerID uuid.UUID, hostname string, status Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hosts[hostKey(ownerID, hostname)]
	if !ok {
		return false
	}
	h.Status = status
	return true
}
