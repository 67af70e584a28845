package dedup

import (
	"strings"
	"sync"
	"time"

	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultWindow     = 60 * time.Second
	DefaultMaxEntries = 10_000
)

// Guard flags repeat deliveries of the same (event-kind, entity, discriminator)
// tuple within a time window. State is process-local and lost on restart; the
// saga's compensations are idempotent, so that is an accepted at-least-once
// trade-off.
type Guard struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	window  time.Duration
	maxSize int

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// New builds a guard. Zero-valued window/maxEntries fall back to defaults.
func New(window time.Duration, maxEntries int) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Guard{
		seen:    make(map[string]time.Time),
		window:  window,
		maxSize: maxEntries,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Start launches the background sweep. Safe to skip in tests.
func (g *Guard) Start() {
	go func() {
		tick := time.NewTicker(g.window)
		defer tick.Stop()
		for {
			select {
			case <-g.stop:
				return
			case <-tick.C:
				g.sweep()
			}
		}
	}()
}

func (g *Guard) Stop() {
	g.once.Do(func() { close(g.stop) })
}

// IsDuplicate reports whether the tuple was already seen inside the window,
// recording it when it was not. Discriminator parts may be empty.
func (g *Guard) IsDuplicate(eventKind, entityID string, discriminator ...string) bool {
	key := eventKind + ":" + entityID
	if len(discriminator) > 0 {
		key += ":" + strings.Join(discriminator, ":")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.seen[key]; ok && now.Sub(last) < g.window {
		logger.Log.Warn("dedup: duplicate delivery suppressed",
			zap.String("key", key),
			zap.Duration("age", now.Sub(last)),
		)
		metrics.DedupHitsTotal.WithLabelValues(eventKind).Inc()
		return true
	}

	g.seen[key] = now
	if len(g.seen) > g.maxSize {
		g.sweepLocked(now)
	}
	return false
}

func (g *Guard) sweep() {
	g.mu.Lock()
	g.sweepLocked(g.now())
	g.mu.Unlock()
}

func (g *Guard) sweepLocked(now time.Time) {
	for k, last := range g.seen {
		if now.Sub(last) >= g.window {
			delete(g.seen, k)
		}
	}
}

// Len reports the current entry count.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
