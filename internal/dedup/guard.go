// Package dedup suppresses repeated pushes of the same message to the same device.
//
// MemoryGuard is a best-effort, single-process guard: the whole key set is dropped
// every window, and nothing survives a restart. RedisGuard shares the keys between
// instances with a per-key expiry.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultWindow = 5 * time.Minute

// Key identifies one push of one message to one device token.
type Key struct {
	MessageID int64
	Token     string
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%s", k.MessageID, k.Token)
}

type Guard interface {
	Seen(ctx context.Context, key Key) bool
	MarkSent(ctx context.Context, key Key)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type MemoryGuard struct {
	window time.Duration
	clock  Clock
	logger zerolog.Logger

	mu        sync.Mutex
	keys      map[string]struct{}
	nextReset time.Time
}

// NewMemoryGuard returns a guard cleared every window. A nil clock uses wall time.
func NewMemoryGuard(window time.Duration, clock Clock, logger zerolog.Logger) *MemoryGuard {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &MemoryGuard{
		window:    window,
		clock:     clock,
		logger:    logger.With().Str("component", "dedup_guard").Logger(),
		keys:      make(map[string]struct{}),
		nextReset: clock.Now().Add(window),
	}
}

func (g *MemoryGuard) Seen(_ context.Context, key Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfDueLocked()
	_, ok := g.keys[key.String()]
	return ok
}

func (g *MemoryGuard) MarkSent(_ context.Context, key Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfDueLocked()
	g.keys[key.String()] = struct{}{}
}

// Clear drops every key and restarts the window.
func (g *MemoryGuard) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearLocked()
}

func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}

// Run clears the guard on a wall-clock ticker until ctx is done.
func (g *MemoryGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Clear()
		}
	}
}

func (g *MemoryGuard) resetIfDueLocked() {
	if g.clock.Now().Before(g.nextReset) {
		return
	}
	g.clearLocked()
}

func (g *MemoryGuard) clearLocked() {
	if n := len(g.keys); n > 0 {
		g.logger.Debug().Int("keys", n).Msg("dedup window cleared")
	}
	g.keys = make(map[string]struct{})
	g.nextReset = g.clock.Now().Add(g.window)
}
