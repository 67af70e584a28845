package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"github.com/hmoradi/banking-saga/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrPersistence wraps any store write failure. Appends are not retried here;
// the failure propagates to the command handler, which nacks the message.
var ErrPersistence = errors.New("event store: persistence failure")

// Store is the append-only, per-aggregate-ordered domain event log.
type Store interface {
	// Append persists a payload under aggregateID with a generated id and the
	// current timestamp, and returns the stored event.
	Append(ctx context.Context, aggregateID string, p event.Payload) (event.Event, error)
	// History returns all events for aggregateID ascending by timestamp. An
	// empty history is not an error. An event whose payload fails to decode is
	// returned with an event.Unreadable payload and counted, not dropped.
	History(ctx context.Context, aggregateID string) ([]event.Event, error)
}

type mysqlStore struct {
	db *sqlx.DB
}

// NewMySQL returns a Store backed by the events table.
func NewMySQL(db *sqlx.DB) Store {
	return &mysqlStore{db: db}
}

type eventRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	AggregateID string    `db:"aggregate_id"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

func (s *mysqlStore) Append(ctx context.Context, aggregateID string, p event.Payload) (event.Event, error) {
	kind, err := event.KindOf(p)
	if err != nil {
		return event.Event{}, err
	}

	raw, err := event.EncodePayload(p)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode %s: %w", kind, err)
	}

	ev := event.Event{
		ID:          util.NewID(),
		Kind:        kind,
		AggregateID: aggregateID,
		Timestamp:   time.Now().UTC(),
		Payload:     p,
	}

	const q = `
		INSERT INTO events (id, kind, aggregate_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, q, ev.ID, string(ev.Kind), ev.AggregateID, raw, ev.Timestamp); err != nil {
		return event.Event{}, fmt.Errorf("%w: insert %s for %s: %v", ErrPersistence, kind, aggregateID, err)
	}

	metrics.EventsAppendedTotal.WithLabelValues(string(kind)).Inc()

	return ev, nil
}

func (s *mysqlStore) History(ctx context.Context, aggregateID string) ([]event.Event, error) {
	const q = `
		SELECT id, kind, aggregate_id, payload, created_at
		FROM events
		WHERE aggregate_id = ?
		ORDER BY created_at ASC, id ASC
	`
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, aggregateID); err != nil {
		return nil, fmt.Errorf("%w: history for %s: %v", ErrPersistence, aggregateID, err)
	}

	out := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		ev := event.Event{
			ID:          r.ID,
			Kind:        event.Kind(r.Kind),
			AggregateID: r.AggregateID,
			Timestamp:   r.CreatedAt,
		}

		p, err := event.DecodePayload(ev.Kind, r.Payload)
		if err != nil {
			// Keep the history readable past one bad event; the caller sees a
			// placeholder and the skip is counted.
			logger.Log.Warn("event store: undecodable payload",
				zap.String("event_id", r.ID),
				zap.String("kind", r.Kind),
				zap.String("aggregate_id", aggregateID),
				zap.Error(err),
			)
			metrics.EventsReplaySkippedTotal.Inc()
			ev.Payload = event.Unreadable{Raw: r.Payload, Cause: err.Error()}
		} else {
			ev.Payload = p
		}

		out = append(out, ev)
	}

	return out, nil
}
