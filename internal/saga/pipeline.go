package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/dedup"
	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/hmoradi/banking-saga/internal/util"
	"go.uber.org/zap"
)

const defaultStepTimeout = 10 * time.Second

// Pipeline is the withdrawal saga: it reacts to each domain event with the
// next command on the happy path or a compensating command on the failure
// path. Every step swallows its own error into a log entry and emits nothing
// rather than crashing the pipeline; one failing saga must not affect others.
type Pipeline struct {
	commands broker.CommandPublisher
	guard    *dedup.Guard
	cache    *Cache

	stepTimeout time.Duration
}

func NewPipeline(commands broker.CommandPublisher, guard *dedup.Guard, cache *Cache) *Pipeline {
	return &Pipeline{
		commands:    commands,
		guard:       guard,
		cache:       cache,
		stepTimeout: defaultStepTimeout,
	}
}

// Subscribe attaches the pipeline to the in-process bus.
func (p *Pipeline) Subscribe(bus *event.Bus) {
	bus.Subscribe(p.Handle)
}

// Handle routes one domain event to its saga step.
func (p *Pipeline) Handle(ctx context.Context, ev event.Event) {
	ctx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	var err error
	switch e := ev.Payload.(type) {
	case event.TransactionCreated:
		err = p.onCreated(ctx, e)
	case event.BalanceChecked:
		err = p.onBalanceChecked(ctx, e)
	case event.BalanceReserved:
		err = p.onBalanceReserved(ctx, e)
	case event.TransactionProcessed:
		err = p.onProcessed(ctx, e)
	case event.TransactionConfirmed:
		err = p.onConfirmed(ctx, e)
	case event.StatementUpdated:
		err = p.onStatementUpdated(ctx, e)
	case event.UserNotified:
		err = p.onUserNotified(ctx, e)
	case event.BalanceReleased:
		err = p.onBalanceReleased(ctx, e)
	default:
		return
	}

	if err != nil {
		logger.Log.Error("saga: step failed, no command emitted",
			zap.String("kind", ev.Kind.String()),
			zap.String("aggregate_id", ev.AggregateID),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) onCreated(ctx context.Context, e event.TransactionCreated) error {
	if p.guard.IsDuplicate(string(event.KindTransactionCreated), e.TransactionID) {
		return nil
	}

	// Seed the scratch space from the creation payload so later steps do not
	// have to re-query for it.
	p.cache.Put(e.TransactionID, TxContext{
		SourceAccountID:      e.SourceAccountID,
		DestinationAccountID: e.DestinationAccountID,
		Description:          e.Description,
	})

	return p.emit(ctx, model.CommandCheckBalance, model.CheckBalanceCommand{
		TransactionID: e.TransactionID,
		AccountID:     e.SourceAccountID,
		Amount:        e.Amount,
	})
}

func (p *Pipeline) onBalanceChecked(ctx context.Context, e event.BalanceChecked) error {
	if p.guard.IsDuplicate(string(event.KindBalanceChecked), e.TransactionID) {
		return nil
	}

	if !e.Sufficient {
		// The command handler already marked the transaction FAILED; there is
		// nothing to compensate and nothing further to do.
		logger.Log.Info("saga: insufficient balance, transaction failed",
			zap.String("transaction_id", e.TransactionID),
			zap.String("account_id", e.AccountID),
		)
		p.cache.Clear(e.TransactionID)
		return nil
	}

	return p.emit(ctx, model.CommandReserveBalance, model.ReserveBalanceCommand{
		TransactionID: e.TransactionID,
		AccountID:     e.AccountID,
		Amount:        e.Amount,
	})
}

func (p *Pipeline) onBalanceReserved(ctx context.Context, e event.BalanceReserved) error {
	if p.guard.IsDuplicate(string(event.KindBalanceReserved), e.TransactionID) {
		return nil
	}

	if !e.Success {
		// The reservation never took effect, so there is nothing to release.
		logger.Log.Warn("saga: reservation failed, saga ends",
			zap.String("transaction_id", e.TransactionID),
			zap.String("cause", e.Error),
		)
		p.cache.Clear(e.TransactionID)
		return nil
	}

	tc, err := p.cache.Get(ctx, e.TransactionID)
	if err != nil {
		return fmt.Errorf("resolve context: %w", err)
	}
	if tc.DestinationAccountID == "" {
		return fmt.Errorf("no destination account for %s", e.TransactionID)
	}

	return p.emit(ctx, model.CommandProcessTransaction, model.ProcessTransactionCommand{
		TransactionID:        e.TransactionID,
		SourceAccountID:      e.AccountID,
		DestinationAccountID: tc.DestinationAccountID,
		Amount:               e.Amount,
		Description:          tc.Description,
	})
}

func (p *Pipeline) onProcessed(ctx context.Context, e event.TransactionProcessed) error {
	if p.guard.IsDuplicate(string(event.KindTransactionProcessed), e.TransactionID) {
		return nil
	}

	if !e.Success {
		return p.emit(ctx, model.CommandReleaseBalance, model.ReleaseBalanceCommand{
			TransactionID: e.TransactionID,
			AccountID:     e.SourceAccountID,
			Amount:        e.Amount,
		})
	}

	return p.emit(ctx, model.CommandConfirmTransaction, model.ConfirmTransactionCommand{
		TransactionID: e.TransactionID,
	})
}

func (p *Pipeline) onConfirmed(ctx context.Context, e event.TransactionConfirmed) error {
	if p.guard.IsDuplicate(string(event.KindTransactionConfirmed), e.TransactionID) {
		return nil
	}

	tc, err := p.cache.Get(ctx, e.TransactionID)
	if err != nil {
		return fmt.Errorf("resolve context: %w", err)
	}

	if !e.Success {
		return p.emit(ctx, model.CommandReleaseBalance, model.ReleaseBalanceCommand{
			TransactionID: e.TransactionID,
			AccountID:     tc.SourceAccountID,
		})
	}

	return p.emit(ctx, model.CommandUpdateStatement, model.UpdateStatementCommand{
		TransactionID: e.TransactionID,
		AccountID:     tc.SourceAccountID,
		Type:          model.EntryDebit,
		Description:   tc.Description,
	})
}

func (p *Pipeline) onStatementUpdated(ctx context.Context, e event.StatementUpdated) error {
	if p.guard.IsDuplicate(string(event.KindStatementUpdated), e.TransactionID, e.Type.String()) {
		return nil
	}

	tc, err := p.cache.Get(ctx, e.TransactionID)
	if err != nil {
		return fmt.Errorf("resolve context: %w", err)
	}

	switch e.Type {
	case model.EntryDebit:
		if tc.DestinationAccountID == "" {
			return fmt.Errorf("no destination account for %s", e.TransactionID)
		}
		return p.emit(ctx, model.CommandUpdateStatement, model.UpdateStatementCommand{
			TransactionID: e.TransactionID,
			AccountID:     tc.DestinationAccountID,
			Type:          model.EntryCredit,
			Description:   tc.Description,
		})
	case model.EntryCredit:
		if tc.SourceOwnerID == "" {
			if tc, err = p.cache.Reload(ctx, e.TransactionID); err != nil {
				return fmt.Errorf("resolve owners: %w", err)
			}
		}
		return p.emit(ctx, model.CommandNotifyUser, model.NotifyUserCommand{
			TransactionID: e.TransactionID,
			UserID:        tc.SourceOwnerID,
			Kind:          model.NotifyWithdrawal,
			Message:       fmt.Sprintf("Your withdrawal of %s completed successfully.", util.FormatAmount(e.Amount)),
		})
	default:
		return fmt.Errorf("unknown statement entry type %q", e.Type)
	}
}

func (p *Pipeline) onUserNotified(ctx context.Context, e event.UserNotified) error {
	if p.guard.IsDuplicate(string(event.KindUserNotified), e.TransactionID, e.Kind.String()) {
		return nil
	}

	switch e.Kind {
	case model.NotifyWithdrawal:
		tc, err := p.cache.Get(ctx, e.TransactionID)
		if err != nil {
			return fmt.Errorf("resolve context: %w", err)
		}
		if tc.DestinationOwnerID == "" {
			if tc, err = p.cache.Reload(ctx, e.TransactionID); err != nil {
				return fmt.Errorf("resolve owners: %w", err)
			}
		}
		return p.emit(ctx, model.CommandNotifyUser, model.NotifyUserCommand{
			TransactionID: e.TransactionID,
			UserID:        tc.DestinationOwnerID,
			Kind:          model.NotifyDeposit,
			Message:       "You received a deposit.",
		})
	case model.NotifyDeposit, model.NotifyWithdrawalFailed:
		// Terminal: the saga is complete (or fully compensated).
		p.cache.Clear(e.TransactionID)
		return nil
	default:
		return fmt.Errorf("unknown notification kind %q", e.Kind)
	}
}

func (p *Pipeline) onBalanceReleased(ctx context.Context, e event.BalanceReleased) error {
	if p.guard.IsDuplicate(string(event.KindBalanceReleased), e.TransactionID) {
		return nil
	}

	if !e.Success {
		// No automatic retry: a failed release leaves the account short and
		// needs an operator.
		logger.Log.Error("saga: balance release failed, manual intervention required",
			zap.String("transaction_id", e.TransactionID),
			zap.String("account_id", e.AccountID),
			zap.String("cause", e.Error),
		)
	}

	tc, err := p.cache.Get(ctx, e.TransactionID)
	if err != nil {
		return fmt.Errorf("resolve context: %w", err)
	}
	if tc.SourceOwnerID == "" {
		if tc, err = p.cache.Reload(ctx, e.TransactionID); err != nil {
			return fmt.Errorf("resolve owners: %w", err)
		}
	}

	return p.emit(ctx, model.CommandNotifyUser, model.NotifyUserCommand{
		TransactionID: e.TransactionID,
		UserID:        tc.SourceOwnerID,
		Kind:          model.NotifyWithdrawalFailed,
		Message:       fmt.Sprintf("Your withdrawal of %s failed and any reserved funds were returned.", util.FormatAmount(e.Amount)),
	})
}

func (p *Pipeline) emit(ctx context.Context, name string, payload any) error {
	if err := p.commands.PublishCommand(ctx, name, payload); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	metrics.SagaCommandsTotal.WithLabelValues(name).Inc()
	return nil
}
