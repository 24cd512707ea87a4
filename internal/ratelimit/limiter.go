package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultPerMinute is the admission limit applied when none is configured.
const DefaultPerMinute = 1000

const window = time.Minute

// Limiter bounds registrations per source address with a sliding 60-second
// window. Addresses are independent; there is no global cap and no fairness
// across addresses.
type Limiter struct {
	limit int
	clock clock.Clock

	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewLimiter(perMinute int, clk clock.Clock) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	return &Limiter{
		limit:   perMinute,
		clock:   clk,
		windows: make(map[string][]time.Time),
	}
}

// Admit records an admission for the address and returns true, unless the
// trailing window already holds the configured limit.
func (l *Limiter) Admit(sourceAddress string) bool {
	now := l.clock.Now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.windows[sourceAddress]

	// Timestamps are appended in order; drop the expired prefix.
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	timestamps = timestamps[i:]

	if len(timestamps) >= l.limit {
		l.windows[sourceAddress] = timestamps
		return false
	}

	l.windows[sourceAddress] = append(timestamps, now)
	return true
}

// StartCleanup compacts the window table on the given interval until the
// context is cancelled, dropping addresses with no admissions left so memory
// is bounded by the set of active senders.
func (l *Limiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := l.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	cutoff := l.clock.Now().Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for addr, timestamps := range l.windows {
		i := 0
		for i < len(timestamps) && !timestamps[i].After(cutoff) {
			i++
		}
		if i == len(timestamps) {
			delete(l.windows, addr)
			removed++
			continue
		}
		if i > 0 {
			// Reallocate so the backing array does not pin expired entries.
			kept := make([]time.Time, len(timestamps)-i)
			copy(kept, timestamps[i:])
			l.windows[addr] = kept
		}
	}
	if removed > 0 {
		slog.Debug("Compacted rate limiter windows", "removed_addresses", removed)
	}
}
