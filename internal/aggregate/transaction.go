package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/model"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusProcessed Status = "PROCESSED"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCanceled
}

var (
	ErrInvalidAmount    = errors.New("transaction: amount must be positive")
	ErrIdentityMismatch = errors.New("transaction: aggregate id mismatch")
	ErrAccountMismatch  = errors.New("transaction: account does not belong to this transaction")
	ErrAlreadyConfirmed = errors.New("transaction: confirmed transaction cannot be released")
	ErrAlreadyReleased  = errors.New("transaction: balance already released")
)

// InvalidTransitionError reports a precondition violation. No event is
// produced; the aggregate state is untouched.
type InvalidTransitionError struct {
	From    Status
	Attempt string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transaction: cannot %s from %s", e.Attempt, e.From)
}

// Transaction is the in-memory projection of one withdrawal's event stream.
// Every mutation goes through a transition method that validates preconditions
// and produces exactly one event; apply folds events back without re-checking.
type Transaction struct {
	ID                   string     `json:"id"`
	SourceAccountID      string     `json:"source_account_id"`
	DestinationAccountID string     `json:"destination_account_id"`
	Amount               int64      `json:"amount"`
	Status               Status     `json:"status"`
	Description          string     `json:"description,omitempty"`
	Error                string     `json:"error,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`

	uncommitted []event.Payload
}

// NewWithdrawal creates the aggregate's first event. Rejects non-positive
// amounts before anything is recorded.
func NewWithdrawal(id, sourceAccountID, destinationAccountID string, amount int64, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	t := &Transaction{}
	t.raise(event.TransactionCreated{
		TransactionID:        id,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: destinationAccountID,
		Amount:               amount,
		Description:          description,
	})
	return t, nil
}

// Replay rebuilds a transaction by folding history in order. Events that do
// not belong to the transaction stream (or are unreadable) are skipped and
// counted in the returned skip total; replay never aborts on one bad event.
func Replay(history []event.Event) (*Transaction, int) {
	t := &Transaction{}
	skipped := 0
	for _, ev := range history {
		if !t.apply(ev.Payload, ev.Timestamp) {
			skipped++
		}
	}
	return t, skipped
}

// CheckBalance records the balance check outcome. Insufficient funds is not an
// error here; it is a first-class event that fails the transaction.
func (t *Transaction) CheckBalance(txID, accountID string, sufficient bool, balance int64) error {
	if err := t.guard(txID, "check balance", StatusPending); err != nil {
		return err
	}
	if accountID != t.SourceAccountID {
		return ErrAccountMismatch
	}
	t.raise(event.BalanceChecked{
		TransactionID: t.ID,
		AccountID:     accountID,
		Amount:        t.Amount,
		Sufficient:    sufficient,
		Balance:       balance,
	})
	return nil
}

// GuardReserve validates the reservation precondition without recording
// anything. Handlers check it before touching the account row, so a
// redelivered command fails here instead of debiting twice.
func (t *Transaction) GuardReserve(txID, accountID string) error {
	if err := t.guard(txID, "reserve balance", StatusPending); err != nil {
		return err
	}
	if accountID != t.SourceAccountID {
		return ErrAccountMismatch
	}
	return nil
}

// ReserveBalance records the reservation outcome. A successful reservation is
// only legal from PENDING; a failed one may also arrive in RESERVED.
func (t *Transaction) ReserveBalance(txID, accountID string, success bool, cause string) error {
	if !success {
		if err := t.guard(txID, "reserve balance", StatusPending, StatusReserved); err != nil {
			return err
		}
		if accountID != t.SourceAccountID {
			return ErrAccountMismatch
		}
	} else if err := t.GuardReserve(txID, accountID); err != nil {
		return err
	}
	t.raise(event.BalanceReserved{
		TransactionID: t.ID,
		AccountID:     accountID,
		Amount:        t.Amount,
		Success:       success,
		Error:         cause,
	})
	return nil
}

// GuardProcess validates the processing precondition without recording
// anything; checked by handlers before the destination credit.
func (t *Transaction) GuardProcess(txID string) error {
	return t.guard(txID, "process", StatusReserved, StatusPending)
}

// Process records the debit/credit outcome.
func (t *Transaction) Process(txID string, success bool, cause string) error {
	if err := t.GuardProcess(txID); err != nil {
		return err
	}
	t.raise(event.TransactionProcessed{
		TransactionID:        t.ID,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               t.Amount,
		Success:              success,
		Error:                cause,
	})
	return nil
}

// Confirm records the confirmation outcome.
func (t *Transaction) Confirm(txID string, success bool, cause string) error {
	if err := t.guard(txID, "confirm", StatusProcessed); err != nil {
		return err
	}
	t.raise(event.TransactionConfirmed{
		TransactionID: t.ID,
		Success:       success,
		Error:         cause,
	})
	return nil
}

// GuardRelease validates the compensation precondition. Confirmed
// transactions cannot be released; an already-canceled one must not be
// released again, so a redelivered release cannot credit the source twice.
func (t *Transaction) GuardRelease(txID string) error {
	if txID != t.ID {
		return ErrIdentityMismatch
	}
	switch t.Status {
	case StatusConfirmed:
		return ErrAlreadyConfirmed
	case StatusCanceled:
		return ErrAlreadyReleased
	}
	return nil
}

// Release records the compensation outcome. A failed release leaves the
// status unchanged and surfaces the cause on the aggregate.
func (t *Transaction) Release(txID string, success bool, cause string) error {
	if err := t.GuardRelease(txID); err != nil {
		return err
	}
	t.raise(event.BalanceReleased{
		TransactionID: t.ID,
		AccountID:     t.SourceAccountID,
		Amount:        t.Amount,
		Success:       success,
		Error:         cause,
	})
	return nil
}

// RecordStatementUpdate records a statement entry written for this transaction.
func (t *Transaction) RecordStatementUpdate(txID, accountID string, entryType model.EntryType) error {
	if err := t.guard(txID, "update statement", StatusConfirmed); err != nil {
		return err
	}
	t.raise(event.StatementUpdated{
		TransactionID: t.ID,
		AccountID:     accountID,
		Type:          entryType,
		Amount:        t.Amount,
	})
	return nil
}

// RecordNotification records a user notification outcome. Notifications are
// legal after confirmation and on the compensation paths.
func (t *Transaction) RecordNotification(txID, userID string, kind model.NotificationKind, success bool) error {
	if err := t.guard(txID, "notify user", StatusConfirmed, StatusCanceled, StatusFailed); err != nil {
		return err
	}
	t.raise(event.UserNotified{
		TransactionID: t.ID,
		UserID:        userID,
		Kind:          kind,
		Success:       success,
	})
	return nil
}

// Uncommitted returns payloads raised since load, in order.
func (t *Transaction) Uncommitted() []event.Payload {
	return t.uncommitted
}

// MarkCommitted clears the uncommitted buffer after a successful save.
func (t *Transaction) MarkCommitted() {
	t.uncommitted = nil
}

func (t *Transaction) guard(txID, attempt string, allowed ...Status) error {
	if txID != t.ID {
		return ErrIdentityMismatch
	}
	for _, s := range allowed {
		if t.Status == s {
			return nil
		}
	}
	return &InvalidTransitionError{From: t.Status, Attempt: attempt}
}

func (t *Transaction) raise(p event.Payload) {
	t.apply(p, time.Now().UTC())
	t.uncommitted = append(t.uncommitted, p)
}

// apply folds one payload into state. It must stay deterministic and total:
// replay reproduces history that already passed validation once. Returns
// false for payloads that are not part of the transaction stream.
func (t *Transaction) apply(p event.Payload, at time.Time) bool {
	switch e := p.(type) {
	case event.TransactionCreated:
		t.ID = e.TransactionID
		t.SourceAccountID = e.SourceAccountID
		t.DestinationAccountID = e.DestinationAccountID
		t.Amount = e.Amount
		t.Description = e.Description
		t.Status = StatusPending
		t.CreatedAt = at
	case event.BalanceChecked:
		if !e.Sufficient {
			t.Status = StatusFailed
			t.Error = "insufficient balance"
		}
	case event.BalanceReserved:
		if e.Success {
			t.Status = StatusReserved
		} else {
			t.Status = StatusFailed
			t.Error = e.Error
		}
	case event.TransactionProcessed:
		if e.Success {
			t.Status = StatusProcessed
			at := at
			t.ProcessedAt = &at
		} else {
			t.Status = StatusFailed
			t.Error = e.Error
		}
	case event.TransactionConfirmed:
		if e.Success {
			t.Status = StatusConfirmed
		} else {
			t.Status = StatusFailed
			t.Error = e.Error
		}
	case event.BalanceReleased:
		if e.Success {
			t.Status = StatusCanceled
		} else if e.Error != "" {
			t.Error = e.Error
		}
	case event.StatementUpdated, event.UserNotified:
		// no status change; bumps UpdatedAt below
	default:
		return false
	}
	t.UpdatedAt = at
	return true
}
