package readmodel

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrNotProjected = errors.New("readmodel: transaction not projected")

const keyPrefix = "tx:"

// TransactionView is the denormalized transaction projection kept in Redis.
// It is a convenience read model; the event store stays authoritative.
type TransactionView struct {
	ID                   string    `json:"id"`
	Status               string    `json:"status"`
	SourceAccountID      string    `json:"source_account_id"`
	DestinationAccountID string    `json:"destination_account_id"`
	Amount               int64     `json:"amount"`
	Description          string    `json:"description,omitempty"`
	Error                string    `json:"error,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Transactions projects transaction events into Redis and serves lookups.
type Transactions struct {
	rds *redis.Client
	ttl time.Duration
}

func NewTransactions(rds *redis.Client) *Transactions {
	return &Transactions{rds: rds, ttl: 7 * 24 * time.Hour}
}

// Subscribe attaches the projector to the in-process bus.
func (t *Transactions) Subscribe(bus *event.Bus) {
	bus.Subscribe(func(ctx context.Context, ev event.Event) {
		if err := t.Apply(ctx, ev); err != nil {
			logger.Log.Warn("readmodel: projection failed",
				zap.String("kind", ev.Kind.String()),
				zap.String("aggregate_id", ev.AggregateID),
				zap.Error(err),
			)
		}
	})
}

// Apply folds one event into the stored view. Non-transaction events are
// ignored.
func (t *Transactions) Apply(ctx context.Context, ev event.Event) error {
	var view TransactionView
	switch p := ev.Payload.(type) {
	case event.TransactionCreated:
		view = TransactionView{
			ID:                   p.TransactionID,
			Status:               "PENDING",
			SourceAccountID:      p.SourceAccountID,
			DestinationAccountID: p.DestinationAccountID,
			Amount:               p.Amount,
			Description:          p.Description,
		}
	case event.BalanceChecked:
		cur, err := t.Get(ctx, p.TransactionID)
		if err != nil {
			return err
		}
		view = cur
		if !p.Sufficient {
			view.Status = "FAILED"
			view.Error = "insufficient balance"
		}
	case event.BalanceReserved:
		cur, err := t.Get(ctx, p.TransactionID)
		if err != nil {
			return err
		}
		view = cur
		if p.Success {
			view.Status = "RESERVED"
		} else {
			view.Status = "FAILED"
			view.Error = p.Error
		}
	case event.TransactionProcessed:
		cur, err := t.Get(ctx, p.TransactionID)
		if err != nil {
			return err
		}
		view = cur
		if p.Success {
			view.Status = "PROCESSED"
		} else {
			view.Status = "FAILED"
			view.Error = p.Error
		}
	case event.TransactionConfirmed:
		cur, err := t.Get(ctx, p.TransactionID)
		if err != nil {
			return err
		}
		view = cur
		if p.Success {
			view.Status = "CONFIRMED"
		} else {
			view.Status = "FAILED"
			view.Error = p.Error
		}
	case event.BalanceReleased:
		cur, err := t.Get(ctx, p.TransactionID)
		if err != nil {
			return err
		}
		view = cur
		if p.Success {
			view.Status = "CANCELED"
		} else {
			view.Error = p.Error
		}
	default:
		return nil
	}

	view.UpdatedAt = ev.Timestamp

	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return t.rds.Set(ctx, keyPrefix+view.ID, raw, t.ttl).Err()
}

// Get returns the projected view for a transaction id.
func (t *Transactions) Get(ctx context.Context, id string) (TransactionView, error) {
	raw, err := t.rds.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return TransactionView{}, ErrNotProjected
	}
	if err != nil {
		return TransactionView{}, err
	}

	var view TransactionView
	if err := json.Unmarshal(raw, &view); err != nil {
		return TransactionView{}, err
	}
	return view, nil
}
