package utility

import (
	"sync"
	"time"
)

// refreshGate allows at most one remote fetch per interval.
type refreshGate struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func newRefreshGate(interval time.Duration) *refreshGate {
	return &refreshGate{interval: interval}
}

// Allow reports whether a fetch may start at now. When it returns true now
// is recorded as the last fetch, whether or not the fetch then succeeds.
func (g *refreshGate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}

// Last returns the time of the last allowed fetch.
func (g *refreshGate) Last() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
