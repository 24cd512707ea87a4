// Package dedup collapses retransmission bursts of the same registration
// into a single state change. Suppression is a best-effort courtesy: it
// reduces redundant pipeline work but is never relied on for correctness.
package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultWindow is the suppression window applied when none is configured.
const DefaultWindow = 5 * time.Second

// Suppressor remembers the last event per (hostname, source address) pair.
// A non-positive window disables suppression entirely.
type Suppressor struct {
	window time.Duration
	clock  clock.Clock

	mu   sync.RWMutex
	seen map[string]time.Time
}

func NewSuppressor(window time.Duration, clk clock.Clock) *Suppressor {
	return &Suppressor{
		window: window,
		clock:  clk,
		seen:   make(map[string]time.Time),
	}
}

func key(hostname, sourceAddress string) string {
	return hostname + "|" + sourceAddress
}

// IsDuplicate reports whether the same (hostname, source address) pair was
// recorded within the suppression window.
func (s *Suppressor) IsDuplicate(hostname, sourceAddress string) bool {
	if s.window <= 0 {
		return false
	}

	s.mu.RLock()
	last, ok := s.seen[key(hostname, sourceAddress)]
	s.mu.RUnlock()

	return ok && s.clock.Now().Sub(last) < s.window
}

// Record marks the pair as seen now. Called only after the event was fully
// processed, so a storage failure is never mistaken for a duplicate on retry.
func (s *Suppressor) Record(hostname, sourceAddress string) {
	if s.window <= 0 {
		return
	}

	s.mu.Lock()
	s.seen[key(hostname, sourceAddress)] = s.clock.Now()
	s.mu.Unlock()
}

// StartCleanup lazily evicts stale entries on the given interval until the
// context is cancelled.
func (s *Suppressor) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Suppressor) cleanup() {
	if s.window <= 0 {
		return
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, last := range s.seen {
		if now.Sub(last) >= s.window {
			delete(s.seen, k)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Evicted stale duplicate suppression entries", "removed", removed)
	}
}
