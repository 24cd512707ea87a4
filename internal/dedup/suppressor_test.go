package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateWithinWindow(t *testing.T) {
	clk := clock.NewMock()
	s := NewSuppressor(5*time.Second, clk)

	assert.False(t, s.IsDuplicate("host-1", "10.0.0.1"))

	s.Record("host-1", "10.0.0.1")
	assert.True(t, s.IsDuplicate("host-1", "10.0.0.1"))

	clk.Add(4 * time.Second)
	assert.True(t, s.IsDuplicate("host-1", "10.0.0.1"))
}

func TestNotDuplicateAfterWindow(t *testing.T) {
	clk := clock.NewMock()
	s := NewSuppressor(5*time.Second, clk)

	s.Record("host-1", "10.0.0.1")
	clk.Add(5 * time.Second)
	assert.False(t, s.IsDuplicate("host-1", "10.0.0.1"))
}

func TestKeysAreIndependent(t *testing.T) {
	clk := clock.NewMock()
	s := NewSuppressor(5*time.Second, clk)

	s.Record("host-1", "10.0.0.1")

	assert.False(t, s.IsDuplicate("host-1", "10.0.0.2"))
	assert.False(t, s.IsDuplicate("host-2", "10.0.0.1"))
}

func TestDisabledWindow(t *testing.T) {
	clk := clock.NewMock()
	s := NewSuppressor(0, clk)

	s.Record("host-1", "10.0.0.1")
	assert.False(t, s.IsDuplicate("host-1", "10.0.0.1"))

	s.mu.RLock()
	count := len(s.seen)
	s.mu.RUnlock()
	assert.Equal(t, 0, count)
}

func TestCleanupEvictsStaleEntries(t *testing.T) {
	clk := clock.NewMock()
	s := NewSuppressor(5*time.Second, clk)

	s.Record("host-1", "10.0.0.1")
	clk.Add(3 * time.Second)
	s.Record("host-2", "10.0.0.2")
	clk.Add(3 * time.Second)

	s.cleanup()

	s.mu.RLock()
	_, stale := s.seen[key("host-1", "10.0.0.1")]
	_, fresh := s.seen[key("host-2", "10.0.0.2")]
	s.mu.RUnlock()

	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestConcurrentAccess(t *testing.T) {
	clk := clock.NewMock()
	s := NewSuppressor(5*time.Second, clk)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record("host-1", "10.0.0.1")
			s.IsDuplicate("host-1", "10.0.0.1")
		}()
	}
	wg.Wait()

	assert.True(t, s.IsDuplicate("host-1", "10.0.0.1"))
}
