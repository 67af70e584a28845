package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/eventstore"
	"github.com/hmoradi/banking-saga/internal/logger"
	"go.uber.org/zap"
)

// ErrNotFound is returned by FindByID when the aggregate has no history.
// Callers must distinguish it from a store failure.
var ErrNotFound = errors.New("aggregate: not found")

// ErrUnsaved is returned by Save when the aggregate never got an id.
var ErrUnsaved = errors.New("aggregate: missing id")

// Repository loads transactions by folding their event history and saves them
// by appending the newly produced events. Append happens durably first; only
// events that made it into the store are published to the in-process bus, so
// there is no publish/persist race to verify after the fact.
type Repository struct {
	store eventstore.Store
	bus   *event.Bus
}

func NewRepository(store eventstore.Store, bus *event.Bus) *Repository {
	return &Repository{store: store, bus: bus}
}

// FindByID replays the full history for id. Foreign or unreadable events are
// skipped with a log entry, never aborting the rest of the replay.
func (r *Repository) FindByID(ctx context.Context, id string) (*Transaction, error) {
	history, err := r.store.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	t, skipped := Replay(history)
	if skipped > 0 {
		logger.Log.Warn("aggregate: events skipped during replay",
			zap.String("transaction_id", id),
			zap.Int("skipped", skipped),
			zap.Int("total", len(history)),
		)
	}
	if t.ID == "" {
		// Nothing in the stream belonged to a transaction.
		return nil, ErrNotFound
	}
	return t, nil
}

// Save appends every uncommitted event and publishes each successfully stored
// one. A mid-sequence append failure stops the save; already-stored events
// stay published (at-least-once, the replay fold tolerates the partial tail).
func (r *Repository) Save(ctx context.Context, t *Transaction) error {
	if t.ID == "" {
		return ErrUnsaved
	}

	for _, p := range t.Uncommitted() {
		ev, err := r.store.Append(ctx, t.ID, p)
		if err != nil {
			return fmt.Errorf("save %s: %w", t.ID, err)
		}
		r.bus.Publish(ctx, ev)
	}
	t.MarkCommitted()
	return nil
}

// AppendFor stores a payload under an arbitrary aggregate id (used for the
// account balance audit events raised by the command handlers) and publishes
// it on the bus.
func (r *Repository) AppendFor(ctx context.Context, aggregateID string, p event.Payload) error {
	ev, err := r.store.Append(ctx, aggregateID, p)
	if err != nil {
		return err
	}
	r.bus.Publish(ctx, ev)
	return nil
}
