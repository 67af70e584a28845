package model

type NotificationKind string

const (
	NotifyWithdrawal       NotificationKind = "withdrawal"
	NotifyDeposit          NotificationKind = "deposit"
	NotifyWithdrawalFailed NotificationKind = "withdrawal_failed"
)

func (k NotificationKind) String() string { return string(k) }

func (k NotificationKind) Valid() bool {
	return k == NotifyWithdrawal || k == NotifyDeposit || k == NotifyWithdrawalFailed
}

// Notification is what the delivery providers receive.
type Notification struct {
	UserID        string           `json:"user_id"`
	TransactionID string           `json:"transaction_id"`
	Kind          NotificationKind `json:"kind"`
	Message       string           `json:"message"`
}
