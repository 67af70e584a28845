package model

import (
	"strings"
	"time"
)

type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

func (t EntryType) String() string { return string(t) }

func (t EntryType) Valid() bool {
	return t == EntryDebit || t == EntryCredit
}

// ParseEntryType normalizes input. Returns (value, true) if valid.
func ParseEntryType(s string) (EntryType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBIT":
		return EntryDebit, true
	case "CREDIT":
		return EntryCredit, true
	default:
		return EntryDebit, false
	}
}

// StatementEntry is one line on an account statement, stored in ClickHouse.
type StatementEntry struct {
	ID            string    `db:"id"`
	AccountID     string    `db:"account_id"`
	TransactionID string    `db:"transaction_id"`
	Type          EntryType `db:"type"`
	Amount        int64     `db:"amount"`
	Description   string    `db:"description"`
	CreatedAt     time.Time `db:"created_at"`
}
