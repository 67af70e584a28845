package event

import "time"

// Kind is the routing-key style tag persisted with every domain event. The set
// is closed: the codec and the replay fold switch over it exhaustively, so an
// unmapped kind is a decode-time condition, not a runtime dispatch failure.
type Kind string

const (
	KindTransactionCreated    Kind = "transaction.created"
	KindBalanceChecked        Kind = "balance.checked"
	KindBalanceReserved       Kind = "balance.reserved"
	KindTransactionProcessed  Kind = "transaction.processed"
	KindTransactionConfirmed  Kind = "transaction.confirmed"
	KindBalanceReleased       Kind = "balance.released"
	KindStatementUpdated      Kind = "statement.updated"
	KindUserNotified          Kind = "user.notified"
	KindAccountBalanceUpdated Kind = "account.balance.updated"
)

func (k Kind) String() string { return string(k) }

func (k Kind) Valid() bool {
	switch k {
	case KindTransactionCreated, KindBalanceChecked, KindBalanceReserved,
		KindTransactionProcessed, KindTransactionConfirmed, KindBalanceReleased,
		KindStatementUpdated, KindUserNotified, KindAccountBalanceUpdated:
		return true
	}
	return false
}

// Event is one immutable entry in an aggregate's history. Events for a single
// aggregate are ordered by Timestamp; that ordering is the sole source of
// truth for aggregate state.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	AggregateID string    `json:"aggregate_id"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     Payload   `json:"payload"`
}
