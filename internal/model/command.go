package model

import "encoding/json"

// Command names. Each maps to the broker routing key "commands.<name>" and a
// durable queue of the same name.
const (
	CommandWithdrawal         = "Withdrawal"
	CommandCheckBalance       = "CheckBalance"
	CommandReserveBalance     = "ReserveBalance"
	CommandProcessTransaction = "ProcessTransaction"
	CommandConfirmTransaction = "ConfirmTransaction"
	CommandUpdateStatement    = "UpdateStatement"
	CommandNotifyUser         = "NotifyUser"
	CommandReleaseBalance     = "ReleaseBalance"
)

// RoutingKeys maps command names to broker routing keys.
var RoutingKeys = map[string]string{
	CommandWithdrawal:         "commands.withdrawal",
	CommandCheckBalance:       "commands.check_balance",
	CommandReserveBalance:     "commands.reserve_balance",
	CommandProcessTransaction: "commands.process_transaction",
	CommandConfirmTransaction: "commands.confirm_transaction",
	CommandUpdateStatement:    "commands.update_statement",
	CommandNotifyUser:         "commands.notify_user",
	CommandReleaseBalance:     "commands.release_balance",
}

// Envelope is the broker message body shared by all saga commands.
type Envelope struct {
	CommandName string          `json:"commandName"`
	Payload     json.RawMessage `json:"payload"`
}

type WithdrawalCommand struct {
	TransactionID        string `json:"transaction_id,omitempty"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	Description          string `json:"description,omitempty"`
}

type CheckBalanceCommand struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
}

type ReserveBalanceCommand struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
}

type ProcessTransactionCommand struct {
	TransactionID        string `json:"transaction_id"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	Description          string `json:"description,omitempty"`
}

type ConfirmTransactionCommand struct {
	TransactionID string `json:"transaction_id"`
}

type UpdateStatementCommand struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Type          EntryType `json:"type"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description,omitempty"`
}

type NotifyUserCommand struct {
	TransactionID string           `json:"transaction_id"`
	UserID        string           `json:"user_id"`
	Kind          NotificationKind `json:"kind"`
	Message       string           `json:"message"`
}

type ReleaseBalanceCommand struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Amount        int64  `json:"amount"`
}

// NewEnvelope marshals a command payload into a broker envelope body.
func NewEnvelope(name string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{CommandName: name, Payload: raw})
}
