package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hmoradi/banking-saga/internal/aggregate"
	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/eventstore"
	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/hmoradi/banking-saga/internal/notifier"
	"github.com/hmoradi/banking-saga/internal/repository"
	"github.com/hmoradi/banking-saga/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	events map[string][]event.Event
	clock  time.Time
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[string][]event.Event),
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

var _ eventstore.Store = (*memStore)(nil)

func (s *memStore) Append(ctx context.Context, aggregateID string, p event.Payload) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, err := event.KindOf(p)
	if err != nil {
		return event.Event{}, err
	}
	s.clock = s.clock.Add(time.Millisecond)
	ev := event.Event{
		ID:          util.NewID(),
		Kind:        kind,
		AggregateID: aggregateID,
		Timestamp:   s.clock,
		Payload:     p,
	}
	s.events[aggregateID] = append(s.events[aggregateID], ev)
	return ev, nil
}

func (s *memStore) History(ctx context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events[aggregateID]...), nil
}

type memAccounts struct {
	accounts  map[string]model.Account
	adjustErr error
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (model.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, repository.ErrAccountNotFound
	}
	return a, nil
}

func (r *memAccounts) WithLock(ctx context.Context, id string, fn func(tx *sqlx.Tx, a model.Account) error) error {
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	return fn(nil, a)
}

func (r *memAccounts) AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error {
	if r.adjustErr != nil {
		return r.adjustErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Balance += delta
	r.accounts[id] = a
	return nil
}

func (r *memAccounts) balance(id string) int64 { return r.accounts[id].Balance }

func (r *memAccounts) Insert(ctx context.Context, a model.Account) error {
	r.accounts[a.ID] = a
	return nil
}

type memUsers struct {
	users map[string]model.User
}

func (r *memUsers) GetByID(ctx context.Context, id string) (model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *memUsers) Insert(ctx context.Context, u model.User) error {
	r.users[u.ID] = u
	return nil
}

type memStatements struct {
	entries   []model.StatementEntry
	insertErr error
}

func (r *memStatements) Insert(ctx context.Context, e model.StatementEntry) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *memStatements) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.StatementEntry, error) {
	var out []model.StatementEntry
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

type okProvider struct{ fail bool }

func (p *okProvider) Name() string  { return "test" }
func (p *okProvider) Ready() bool   { return true }
func (p *okProvider) Acquire() bool { return true }
func (p *okProvider) Deliver(ctx context.Context, n model.Notification) error {
	if p.fail {
		return errors.New("delivery refused")
	}
	return nil
}

type fixture struct {
	h          *Handlers
	store      *memStore
	accounts   *memAccounts
	statements *memStatements
	bus        *event.Bus
	provider   *okProvider
}

func newFixture() *fixture {
	store := newMemStore()
	bus := event.NewBus()
	accounts := &memAccounts{accounts: map[string]model.Account{
		"acc-src": {ID: "acc-src", OwnerID: "user-src", Balance: 10000},
		"acc-dst": {ID: "acc-dst", OwnerID: "user-dst", Balance: 0},
	}}
	users := &memUsers{users: map[string]model.User{
		"user-src": {ID: "user-src", Name: "Alice"},
		"user-dst": {ID: "user-dst", Name: "Bruno"},
	}}
	statements := &memStatements{}
	provider := &okProvider{}

	return &fixture{
		h: &Handlers{
			Accounts:   accounts,
			Users:      users,
			Statements: statements,
			Repo:       aggregate.NewRepository(store, bus),
			Notifier:   notifier.New([]notifier.Provider{provider}, 1),
		},
		store:      store,
		accounts:   accounts,
		statements: statements,
		bus:        bus,
		provider:   provider,
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// seedHistory appends payloads directly to the store, bypassing the bus.
func (f *fixture) seedHistory(t *testing.T, txID string, payloads ...event.Payload) {
	t.Helper()
	for _, p := range payloads {
		_, err := f.store.Append(context.Background(), txID, p)
		require.NoError(t, err)
	}
}

func createdPayload(txID string) event.Payload {
	return event.TransactionCreated{
		TransactionID:        txID,
		SourceAccountID:      "acc-src",
		DestinationAccountID: "acc-dst",
		Amount:               5000,
	}
}

func TestWithdrawalCreatesAggregate(t *testing.T) {
	f := newFixture()

	err := f.h.Withdrawal(context.Background(), raw(t, model.WithdrawalCommand{
		TransactionID:        "tx-1",
		SourceAccountID:      "acc-src",
		DestinationAccountID: "acc-dst",
		Amount:               5000,
	}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusPending, loaded.Status)
}

func TestWithdrawalRejectsUnknownAccount(t *testing.T) {
	f := newFixture()

	err := f.h.Withdrawal(context.Background(), raw(t, model.WithdrawalCommand{
		SourceAccountID:      "acc-missing",
		DestinationAccountID: "acc-dst",
		Amount:               5000,
	}))
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestWithdrawalRejectsMalformedPayload(t *testing.T) {
	f := newFixture()

	err := f.h.Withdrawal(context.Background(), json.RawMessage(`{"amount":`))
	assert.ErrorIs(t, err, ErrBadPayload)

	err = f.h.Withdrawal(context.Background(), raw(t, model.WithdrawalCommand{
		SourceAccountID:      "acc-src",
		DestinationAccountID: "acc-src",
		Amount:               100,
	}))
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestCheckBalanceSufficient(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1", createdPayload("tx-1"))

	err := f.h.CheckBalance(context.Background(), raw(t, model.CheckBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
		Amount:        5000,
	}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusPending, loaded.Status)
}

func TestCheckBalanceInsufficientFailsTransaction(t *testing.T) {
	f := newFixture()
	f.accounts.accounts["acc-src"] = model.Account{ID: "acc-src", OwnerID: "user-src", Balance: 100}
	f.seedHistory(t, "tx-1", createdPayload("tx-1"))

	err := f.h.CheckBalance(context.Background(), raw(t, model.CheckBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
		Amount:        5000,
	}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusFailed, loaded.Status)
}

func TestCheckBalanceUnknownTransactionNacks(t *testing.T) {
	f := newFixture()

	err := f.h.CheckBalance(context.Background(), raw(t, model.CheckBalanceCommand{
		TransactionID: "tx-missing",
		AccountID:     "acc-src",
	}))
	assert.ErrorIs(t, err, aggregate.ErrNotFound)
}

func TestReserveDebitsSource(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1", createdPayload("tx-1"))

	err := f.h.ReserveBalance(context.Background(), raw(t, model.ReserveBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
	}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusReserved, loaded.Status)
	assert.Equal(t, int64(5000), f.accounts.balance("acc-src"))

	audit, err := f.store.History(context.Background(), "acc-src")
	require.NoError(t, err)
	require.Len(t, audit, 1)
	upd := audit[0].Payload.(event.AccountBalanceUpdated)
	assert.Equal(t, int64(-5000), upd.Delta)
	assert.Equal(t, int64(5000), upd.Balance)
}

func TestReserveInsufficientFundsFailsWithoutOverdraw(t *testing.T) {
	f := newFixture()
	f.accounts.accounts["acc-src"] = model.Account{ID: "acc-src", OwnerID: "user-src", Balance: 100}
	f.seedHistory(t, "tx-1", createdPayload("tx-1"))

	err := f.h.ReserveBalance(context.Background(), raw(t, model.ReserveBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
	}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusFailed, loaded.Status)
	assert.Equal(t, int64(100), f.accounts.balance("acc-src"))
}

func TestReserveRedeliveryNacksWithoutSecondDebit(t *testing.T) {
	f := newFixture()
	f.accounts.accounts["acc-src"] = model.Account{ID: "acc-src", OwnerID: "user-src", Balance: 5000}
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
	)

	err := f.h.ReserveBalance(context.Background(), raw(t, model.ReserveBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
	}))
	var ite *aggregate.InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
	assert.Equal(t, int64(5000), f.accounts.balance("acc-src"))
}

func TestProcessCreditsDestination(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
	)

	err := f.h.ProcessTransaction(context.Background(), raw(t, model.ProcessTransactionCommand{TransactionID: "tx-1"}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusProcessed, loaded.Status)
	assert.Equal(t, int64(5000), f.accounts.balance("acc-dst"))
}

func TestProcessStoreFailureFailsTransaction(t *testing.T) {
	f := newFixture()
	f.accounts.adjustErr = errors.New("deadlock")
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
	)

	err := f.h.ProcessTransaction(context.Background(), raw(t, model.ProcessTransactionCommand{TransactionID: "tx-1"}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusFailed, loaded.Status)
	assert.Equal(t, int64(0), f.accounts.balance("acc-dst"))
}

func TestProcessRedeliveryNacksWithoutSecondCredit(t *testing.T) {
	f := newFixture()
	f.accounts.accounts["acc-dst"] = model.Account{ID: "acc-dst", OwnerID: "user-dst", Balance: 5000}
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.ProcessTransaction(context.Background(), raw(t, model.ProcessTransactionCommand{TransactionID: "tx-1"}))
	var ite *aggregate.InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
	assert.Equal(t, int64(5000), f.accounts.balance("acc-dst"))
}

func TestReleaseRestoresBalance(t *testing.T) {
	f := newFixture()
	f.accounts.accounts["acc-src"] = model.Account{ID: "acc-src", OwnerID: "user-src", Balance: 5000}
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: false, Error: "store down"},
	)

	err := f.h.ReleaseBalance(context.Background(), raw(t, model.ReleaseBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
	}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusCanceled, loaded.Status)
	assert.Equal(t, int64(10000), f.accounts.balance("acc-src"))
}

func TestReleaseRedeliveryAcksWithoutSecondCredit(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: false, Error: "store down"},
		event.BalanceReleased{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
	)
	before, err := f.store.History(context.Background(), "tx-1")
	require.NoError(t, err)

	err = f.h.ReleaseBalance(context.Background(), raw(t, model.ReleaseBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(10000), f.accounts.balance("acc-src"))
	after, err := f.store.History(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestWithdrawalScenarioMovesFunds(t *testing.T) {
	f := newFixture()
	f.accounts.accounts["acc-src"] = model.Account{ID: "acc-src", OwnerID: "user-src", Balance: 100000}
	ctx := context.Background()

	require.NoError(t, f.h.Withdrawal(ctx, raw(t, model.WithdrawalCommand{
		TransactionID:        "tx-1",
		SourceAccountID:      "acc-src",
		DestinationAccountID: "acc-dst",
		Amount:               5000,
	})))
	require.NoError(t, f.h.CheckBalance(ctx, raw(t, model.CheckBalanceCommand{TransactionID: "tx-1", AccountID: "acc-src"})))
	require.NoError(t, f.h.ReserveBalance(ctx, raw(t, model.ReserveBalanceCommand{TransactionID: "tx-1", AccountID: "acc-src"})))
	require.NoError(t, f.h.ProcessTransaction(ctx, raw(t, model.ProcessTransactionCommand{TransactionID: "tx-1"})))
	require.NoError(t, f.h.ConfirmTransaction(ctx, raw(t, model.ConfirmTransactionCommand{TransactionID: "tx-1"})))
	require.NoError(t, f.h.UpdateStatement(ctx, raw(t, model.UpdateStatementCommand{
		TransactionID: "tx-1", AccountID: "acc-src", Type: model.EntryDebit,
	})))
	require.NoError(t, f.h.UpdateStatement(ctx, raw(t, model.UpdateStatementCommand{
		TransactionID: "tx-1", AccountID: "acc-dst", Type: model.EntryCredit,
	})))
	require.NoError(t, f.h.NotifyUser(ctx, raw(t, model.NotifyUserCommand{
		TransactionID: "tx-1", UserID: "user-src", Kind: model.NotifyWithdrawal,
	})))
	require.NoError(t, f.h.NotifyUser(ctx, raw(t, model.NotifyUserCommand{
		TransactionID: "tx-1", UserID: "user-dst", Kind: model.NotifyDeposit,
	})))
	f.bus.Drain()

	assert.Equal(t, int64(95000), f.accounts.balance("acc-src"))
	assert.Equal(t, int64(5000), f.accounts.balance("acc-dst"))

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusConfirmed, loaded.Status)

	history, err := f.store.History(context.Background(), "tx-1")
	require.NoError(t, err)
	notified := 0
	for _, ev := range history {
		if n, ok := ev.Payload.(event.UserNotified); ok {
			require.True(t, n.Success)
			notified++
		}
	}
	assert.Equal(t, 2, notified)
}

func TestConfirmTransaction(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.ConfirmTransaction(context.Background(), raw(t, model.ConfirmTransactionCommand{TransactionID: "tx-1"}))
	require.NoError(t, err)
	f.bus.Drain()

	loaded, err := f.h.Repo.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusConfirmed, loaded.Status)
}

func TestConfirmFromWrongStateNacks(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1", createdPayload("tx-1"))

	err := f.h.ConfirmTransaction(context.Background(), raw(t, model.ConfirmTransactionCommand{TransactionID: "tx-1"}))
	var ite *aggregate.InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestUpdateStatementInsertsEntry(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
		event.TransactionConfirmed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.UpdateStatement(context.Background(), raw(t, model.UpdateStatementCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
		Type:          model.EntryDebit,
		Description:   "rent",
	}))
	require.NoError(t, err)
	f.bus.Drain()

	require.Len(t, f.statements.entries, 1)
	entry := f.statements.entries[0]
	assert.Equal(t, model.EntryDebit, entry.Type)
	assert.Equal(t, int64(5000), entry.Amount)
	assert.Equal(t, "tx-1", entry.TransactionID)
}

func TestUpdateStatementStoreFailureNacks(t *testing.T) {
	f := newFixture()
	f.statements.insertErr = errors.New("clickhouse down")
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
		event.TransactionConfirmed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.UpdateStatement(context.Background(), raw(t, model.UpdateStatementCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
		Type:          model.EntryDebit,
	}))
	assert.Error(t, err)
}

func TestUpdateStatementRejectsInvalidType(t *testing.T) {
	f := newFixture()

	err := f.h.UpdateStatement(context.Background(), raw(t, model.UpdateStatementCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
		Type:          model.EntryType("REFUND"),
	}))
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestNotifyUserRecordsOutcome(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
		event.TransactionConfirmed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.NotifyUser(context.Background(), raw(t, model.NotifyUserCommand{
		TransactionID: "tx-1",
		UserID:        "user-src",
		Kind:          model.NotifyWithdrawal,
		Message:       "done",
	}))
	require.NoError(t, err)
	f.bus.Drain()

	history, err := f.store.History(context.Background(), "tx-1")
	require.NoError(t, err)
	last := history[len(history)-1].Payload.(event.UserNotified)
	assert.True(t, last.Success)
}

func TestNotifyUserDeliveryFailureIsRecordedNotNacked(t *testing.T) {
	f := newFixture()
	f.provider.fail = true
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
		event.TransactionConfirmed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.NotifyUser(context.Background(), raw(t, model.NotifyUserCommand{
		TransactionID: "tx-1",
		UserID:        "user-src",
		Kind:          model.NotifyWithdrawal,
	}))
	require.NoError(t, err)
	f.bus.Drain()

	history, err := f.store.History(context.Background(), "tx-1")
	require.NoError(t, err)
	last := history[len(history)-1].Payload.(event.UserNotified)
	assert.False(t, last.Success)
}

func TestNotifyUnknownUserNacks(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
		event.TransactionConfirmed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.NotifyUser(context.Background(), raw(t, model.NotifyUserCommand{
		TransactionID: "tx-1",
		UserID:        "user-missing",
		Kind:          model.NotifyWithdrawal,
	}))
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestReleaseAfterConfirmNacks(t *testing.T) {
	f := newFixture()
	f.seedHistory(t, "tx-1",
		createdPayload("tx-1"),
		event.BalanceReserved{TransactionID: "tx-1", AccountID: "acc-src", Amount: 5000, Success: true},
		event.TransactionProcessed{TransactionID: "tx-1", Success: true},
		event.TransactionConfirmed{TransactionID: "tx-1", Success: true},
	)

	err := f.h.ReleaseBalance(context.Background(), raw(t, model.ReleaseBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
	}))
	assert.ErrorIs(t, err, aggregate.ErrAlreadyConfirmed)
}

func TestDispatchRoutesEveryCommand(t *testing.T) {
	f := newFixture()
	reg := NewRegistry(f.h)

	err := reg.Dispatch(context.Background(), "NoSuchCommand", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrBadPayload)

	err = reg.Dispatch(context.Background(), model.CommandWithdrawal, raw(t, model.WithdrawalCommand{
		SourceAccountID:      "acc-src",
		DestinationAccountID: "acc-dst",
		Amount:               100,
	}))
	assert.NoError(t, err)
}
