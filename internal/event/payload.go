package event

import (
	"encoding/json"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/model"
)

// Payload is the closed union of event payloads. Implementations are plain
// structs; the store serializes them as opaque JSON blobs.
type Payload interface {
	isPayload()
}

type TransactionCreated struct {
	TransactionID        string `json:"transaction_id"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	Description          string `json:"description,omitempty"`
}

type BalanceChecked struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
	Sufficient    bool   `json:"sufficient"`
	Balance       int64  `json:"balance"`
}

type BalanceReserved struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type TransactionProcessed struct {
	TransactionID        string `json:"transaction_id"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	Success              bool   `json:"success"`
	Error                string `json:"error,omitempty"`
}

type TransactionConfirmed struct {
	TransactionID string `json:"transaction_id"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type BalanceReleased struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type StatementUpdated struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Type          model.EntryType `json:"type"`
	Amount        int64           `json:"amount"`
}

type UserNotified struct {
	TransactionID string                 `json:"transaction_id"`
	UserID        string                 `json:"user_id"`
	Kind          model.NotificationKind `json:"kind"`
	Success       bool                   `json:"success"`
}

type AccountBalanceUpdated struct {
	AccountID     string `json:"account_id"`
	TransactionID string `json:"transaction_id"`
	Delta         int64  `json:"delta"`
	Balance       int64  `json:"balance"`
}

// Unreadable stands in for a payload that failed to deserialize. History reads
// keep going past it; callers see the raw blob and the decode error text.
type Unreadable struct {
	Raw   json.RawMessage `json:"raw,omitempty"`
	Cause string          `json:"cause"`
}

func (TransactionCreated) isPayload()    {}
func (BalanceChecked) isPayload()        {}
func (BalanceReserved) isPayload()       {}
func (TransactionProcessed) isPayload()  {}
func (TransactionConfirmed) isPayload()  {}
func (BalanceReleased) isPayload()       {}
func (StatementUpdated) isPayload()      {}
func (UserNotified) isPayload()          {}
func (AccountBalanceUpdated) isPayload() {}
func (Unreadable) isPayload()            {}

// KindOf returns the event kind for a payload.
func KindOf(p Payload) (Kind, error) {
	switch p.(type) {
	case TransactionCreated:
		return KindTransactionCreated, nil
	case BalanceChecked:
		return KindBalanceChecked, nil
	case BalanceReserved:
		return KindBalanceReserved, nil
	case TransactionProcessed:
		return KindTransactionProcessed, nil
	case TransactionConfirmed:
		return KindTransactionConfirmed, nil
	case BalanceReleased:
		return KindBalanceReleased, nil
	case StatementUpdated:
		return KindStatementUpdated, nil
	case UserNotified:
		return KindUserNotified, nil
	case AccountBalanceUpdated:
		return KindAccountBalanceUpdated, nil
	default:
		return "", fmt.Errorf("event: no kind for payload %T", p)
	}
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodePayload turns a stored blob back into its typed payload.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindTransactionCreated:
		return decodeAs[TransactionCreated](raw)
	case KindBalanceChecked:
		return decodeAs[BalanceChecked](raw)
	case KindBalanceReserved:
		return decodeAs[BalanceReserved](raw)
	case KindTransactionProcessed:
		return decodeAs[TransactionProcessed](raw)
	case KindTransactionConfirmed:
		return decodeAs[TransactionConfirmed](raw)
	case KindBalanceReleased:
		return decodeAs[BalanceReleased](raw)
	case KindStatementUpdated:
		return decodeAs[StatementUpdated](raw)
	case KindUserNotified:
		return decodeAs[UserNotified](raw)
	case KindAccountBalanceUpdated:
		return decodeAs[AccountBalanceUpdated](raw)
	default:
		return nil, fmt.Errorf("event: unknown kind %q", kind)
	}
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}
