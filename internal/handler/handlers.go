package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/aggregate"
	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/hmoradi/banking-saga/internal/notifier"
	"github.com/hmoradi/banking-saga/internal/repository"
	"github.com/hmoradi/banking-saga/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var ErrBadPayload = errors.New("handler: malformed command payload")

// Handlers executes the command side of the saga. Each method corresponds to
// one command queue: it validates the payload, performs its side effect (the
// balance mutations under a FOR UPDATE row lock), applies the matching
// aggregate transition, and saves. Business failures become success=false
// events; validation, not-found and store failures are returned and end in a
// nack.
type Handlers struct {
	Accounts   repository.AccountsRepository
	Users      repository.UsersRepository
	Statements repository.StatementsRepository
	Repo       *aggregate.Repository
	Notifier   *notifier.Notifier
}

func (h *Handlers) Withdrawal(ctx context.Context, raw json.RawMessage) error {
	var cmd model.WithdrawalCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if cmd.SourceAccountID == "" || cmd.DestinationAccountID == "" {
		return fmt.Errorf("%w: missing account ids", ErrBadPayload)
	}
	if cmd.SourceAccountID == cmd.DestinationAccountID {
		return fmt.Errorf("%w: source and destination are the same account", ErrBadPayload)
	}

	// Both accounts must exist before the saga starts.
	if _, err := h.Accounts.GetByID(ctx, cmd.SourceAccountID); err != nil {
		return fmt.Errorf("source account %s: %w", cmd.SourceAccountID, err)
	}
	if _, err := h.Accounts.GetByID(ctx, cmd.DestinationAccountID); err != nil {
		return fmt.Errorf("destination account %s: %w", cmd.DestinationAccountID, err)
	}

	id := cmd.TransactionID
	if id == "" {
		id = util.NewID()
	}

	t, err := aggregate.NewWithdrawal(id, cmd.SourceAccountID, cmd.DestinationAccountID, cmd.Amount, cmd.Description)
	if err != nil {
		return err
	}
	return h.Repo.Save(ctx, t)
}

func (h *Handlers) CheckBalance(ctx context.Context, raw json.RawMessage) error {
	var cmd model.CheckBalanceCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	acct, err := h.Accounts.GetByID(ctx, cmd.AccountID)
	if err != nil {
		return fmt.Errorf("account %s: %w", cmd.AccountID, err)
	}

	sufficient := acct.Balance >= t.Amount
	if err := t.CheckBalance(cmd.TransactionID, cmd.AccountID, sufficient, acct.Balance); err != nil {
		return err
	}
	return h.Repo.Save(ctx, t)
}

func (h *Handlers) ReserveBalance(ctx context.Context, raw json.RawMessage) error {
	var cmd model.ReserveBalanceCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	// Redelivered reservations must fail here, before the debit runs again.
	if err := t.GuardReserve(cmd.TransactionID, cmd.AccountID); err != nil {
		return err
	}

	success := true
	cause := ""
	newBalance, err := h.adjustLocked(ctx, cmd.AccountID, -t.Amount, true)
	if err != nil {
		success = false
		cause = err.Error()
	}

	if err := t.ReserveBalance(cmd.TransactionID, cmd.AccountID, success, cause); err != nil {
		return err
	}
	if err := h.Repo.Save(ctx, t); err != nil {
		return err
	}

	if success {
		h.auditBalance(ctx, cmd.AccountID, t.ID, -t.Amount, newBalance)
	}
	return nil
}

func (h *Handlers) ProcessTransaction(ctx context.Context, raw json.RawMessage) error {
	var cmd model.ProcessTransactionCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	// Redelivered processing must fail here, before the credit runs again.
	if err := t.GuardProcess(cmd.TransactionID); err != nil {
		return err
	}

	// The debit already happened at reservation; this step credits the
	// destination. A store failure here is a business outcome (the saga
	// compensates), not a nack.
	success := true
	cause := ""
	newBalance, err := h.adjustLocked(ctx, t.DestinationAccountID, t.Amount, false)
	if err != nil {
		success = false
		cause = err.Error()
	}

	if err := t.Process(cmd.TransactionID, success, cause); err != nil {
		return err
	}
	if err := h.Repo.Save(ctx, t); err != nil {
		return err
	}

	if success {
		h.auditBalance(ctx, t.DestinationAccountID, t.ID, t.Amount, newBalance)
	}
	return nil
}

func (h *Handlers) ConfirmTransaction(ctx context.Context, raw json.RawMessage) error {
	var cmd model.ConfirmTransactionCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	// Confirmation has no side effect that can fail in this deployment, so
	// the outcome is always success. The pipeline's failed-confirm branch
	// stays in place for a confirm step that grows one.
	if err := t.Confirm(cmd.TransactionID, true, ""); err != nil {
		return err
	}
	return h.Repo.Save(ctx, t)
}

func (h *Handlers) UpdateStatement(ctx context.Context, raw json.RawMessage) error {
	var cmd model.UpdateStatementCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !cmd.Type.Valid() {
		return fmt.Errorf("%w: invalid entry type %q", ErrBadPayload, cmd.Type)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	entry := model.StatementEntry{
		ID:            util.NewID(),
		AccountID:     cmd.AccountID,
		TransactionID: t.ID,
		Type:          cmd.Type,
		Amount:        t.Amount,
		Description:   cmd.Description,
	}
	if err := h.Statements.Insert(ctx, entry); err != nil {
		return fmt.Errorf("statement insert: %w", err)
	}

	if err := t.RecordStatementUpdate(cmd.TransactionID, cmd.AccountID, cmd.Type); err != nil {
		return err
	}
	return h.Repo.Save(ctx, t)
}

func (h *Handlers) NotifyUser(ctx context.Context, raw json.RawMessage) error {
	var cmd model.NotifyUserCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !cmd.Kind.Valid() {
		return fmt.Errorf("%w: invalid notification kind %q", ErrBadPayload, cmd.Kind)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	if _, err := h.Users.GetByID(ctx, cmd.UserID); err != nil {
		return fmt.Errorf("user %s: %w", cmd.UserID, err)
	}

	success := true
	if err := h.Notifier.Notify(ctx, model.Notification{
		UserID:        cmd.UserID,
		TransactionID: cmd.TransactionID,
		Kind:          cmd.Kind,
		Message:       cmd.Message,
	}); err != nil {
		logger.Log.Warn("notify user failed",
			zap.String("transaction_id", cmd.TransactionID),
			zap.String("user_id", cmd.UserID),
			zap.Error(err),
		)
		success = false
	}

	if err := t.RecordNotification(cmd.TransactionID, cmd.UserID, cmd.Kind, success); err != nil {
		return err
	}
	return h.Repo.Save(ctx, t)
}

func (h *Handlers) ReleaseBalance(ctx context.Context, raw json.RawMessage) error {
	var cmd model.ReleaseBalanceCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	t, err := h.Repo.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		return err
	}

	// A redelivered release after a successful one is acked without touching
	// the balance: the compensation already happened.
	if t.Status == aggregate.StatusCanceled {
		logger.Log.Info("release already applied",
			zap.String("transaction_id", cmd.TransactionID),
			zap.String("account_id", t.SourceAccountID),
		)
		return nil
	}
	if err := t.GuardRelease(cmd.TransactionID); err != nil {
		return err
	}

	success := true
	cause := ""
	newBalance, err := h.adjustLocked(ctx, t.SourceAccountID, t.Amount, false)
	if err != nil {
		success = false
		cause = err.Error()
	}

	if err := t.Release(cmd.TransactionID, success, cause); err != nil {
		return err
	}
	if err := h.Repo.Save(ctx, t); err != nil {
		return err
	}

	if success {
		h.auditBalance(ctx, t.SourceAccountID, t.ID, t.Amount, newBalance)
	}
	return nil
}

// adjustLocked applies delta to an account balance under the row lock. With
// checkFunds, a negative delta larger than the balance fails instead of
// overdrawing. Returns the post-adjustment balance.
func (h *Handlers) adjustLocked(ctx context.Context, accountID string, delta int64, checkFunds bool) (int64, error) {
	var balance int64
	err := h.Accounts.WithLock(ctx, accountID, func(tx *sqlx.Tx, acct model.Account) error {
		if checkFunds && acct.Balance+delta < 0 {
			return fmt.Errorf("insufficient balance on %s", accountID)
		}
		if err := h.Accounts.AdjustBalance(ctx, tx, accountID, delta); err != nil {
			return fmt.Errorf("adjust account %s: %w", accountID, err)
		}
		balance = acct.Balance + delta
		return nil
	})
	return balance, err
}

// auditBalance appends the account-stream audit event. The balance change is
// already durable, so a failure here only loses the audit entry.
func (h *Handlers) auditBalance(ctx context.Context, accountID, txID string, delta, balance int64) {
	err := h.Repo.AppendFor(ctx, accountID, event.AccountBalanceUpdated{
		AccountID:     accountID,
		TransactionID: txID,
		Delta:         delta,
		Balance:       balance,
	})
	if err != nil {
		logger.Log.Warn("account audit event append failed",
			zap.String("account_id", accountID),
			zap.String("transaction_id", txID),
			zap.Error(err),
		)
	}
}
