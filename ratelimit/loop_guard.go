package ratelimit

import (
	"sync"
	"time"

	"github.com/cavendo/go-dispatch/core"
)

// WindowGuard suppresses event feedback loops with a sliding window counter
// keyed by agent and event type. State is process local; suppression does
// not survive restarts or span instances.
type WindowGuard struct {
	mu         sync.Mutex
	entries    map[string]*windowEntry
	threshold  int
	window     time.Duration
	maxEntries int
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

func NewWindowGuard(cfg core.LoopGuardConfig) *WindowGuard {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 10
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &WindowGuard{
		entries:    map[string]*windowEntry{},
		threshold:  threshold,
		window:     window,
		maxEntries: maxEntries,
	}
}

// Allow reports whether another dispatch for the agent and event type fits
// inside the window. The counter increments on every call, suppressed calls
// included, so a sustained storm stays suppressed until it actually stops.
func (g *WindowGuard) Allow(agentID, eventType string, now time.Time) bool {
	key := agentID + "\x00" + eventType

	g.mu.Lock()
	defer g.mu.Unlock()

	g.cleanup(now)

	entry, ok := g.entries[key]
	if !ok || now.Sub(entry.windowStart) >= g.window {
		g.entries[key] = &windowEntry{count: 1, windowStart: now}
		return true
	}
	entry.count++
	return entry.count <= g.threshold
}

// cleanup evicts stale entries without a background goroutine. Under the
// cap only long-dead entries go, over the cap eviction tightens until the
// map fits again.
func (g *WindowGuard) cleanup(now time.Time) {
	if len(g.entries) < g.maxEntries {
		for key, entry := range g.entries {
			if now.Sub(entry.windowStart) > g.window*4 {
				delete(g.entries, key)
			}
		}
		return
	}
	horizon := g.window
	for len(g.entries) >= g.maxEntries && horizon > 0 {
		for key, entry := range g.entries {
			if now.Sub(entry.windowStart) > horizon {
				delete(g.entries, key)
			}
		}
		horizon /= 2
	}
}

var _ core.LoopGuard = (*WindowGuard)(nil)
