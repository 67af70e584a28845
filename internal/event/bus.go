package event

import (
	"context"
	"sync"

	"github.com/hmoradi/banking-saga/internal/logger"
	"go.uber.org/zap"
)

// Handler receives every published event. Handlers run concurrently with each
// other and must not assume ordering across aggregates.
type Handler func(ctx context.Context, ev Event)

// Bus is the in-process fan-out between the aggregate repository and the
// reactive subscribers (saga pipeline, read-model projector, Kafka relay).
// Publish returns once every handler goroutine has been started; it never
// waits for handlers to finish.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	wg       sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent publishes.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Publish fans ev out to every subscriber. A panicking handler is logged and
// contained; one bad subscriber cannot take down the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Error("event bus: handler panic",
						zap.String("kind", ev.Kind.String()),
						zap.String("aggregate_id", ev.AggregateID),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, ev)
		}()
	}
}

// Drain blocks until all in-flight handlers have returned. Used on shutdown
// and in tests.
func (b *Bus) Drain() {
	b.wg.Wait()
}
