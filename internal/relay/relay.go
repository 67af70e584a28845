package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Config struct {
	Brokers []string
	Topic   string
}

// Relay forwards every persisted domain event to a Kafka topic, keyed by
// aggregate id so consumers see per-aggregate order. External projectors and
// audit pipelines read from there; nothing in this service consumes it.
type Relay struct {
	w *kafka.Writer
}

func New(c Config) *Relay {
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Relay{w: w}
}

// Subscribe attaches the relay to the in-process bus. Publish failures are
// logged and dropped; the event store already holds the durable copy.
func (r *Relay) Subscribe(bus *event.Bus) {
	bus.Subscribe(func(ctx context.Context, ev event.Event) {
		body, err := json.Marshal(ev)
		if err != nil {
			logger.Log.Error("relay: marshal event", zap.String("event_id", ev.ID), zap.Error(err))
			return
		}
		msg := kafka.Message{
			Key:   []byte(ev.AggregateID),
			Value: body,
			Time:  ev.Timestamp,
		}
		if err := r.w.WriteMessages(ctx, msg); err != nil {
			logger.Log.Warn("relay: kafka write failed",
				zap.String("event_id", ev.ID),
				zap.String("kind", ev.Kind.String()),
				zap.Error(err),
			)
		}
	})
}

func (r *Relay) Close() error { return r.w.Close() }
