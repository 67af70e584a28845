package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountsRepository is the command-side account store. Balance mutations
// happen only inside WithLock, which holds the row lock on the account for
// the duration of one relational transaction.
type AccountsRepository interface {
	GetByID(ctx context.Context, id string) (model.Account, error)
	WithLock(ctx context.Context, id string, fn func(tx *sqlx.Tx, a model.Account) error) error
	AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error
	Insert(ctx context.Context, a model.Account) error
}

type accountsRepo struct {
	db *sqlx.DB
}

func NewAccountsRepository(db *sqlx.DB) AccountsRepository {
	return &accountsRepo{db: db}
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, owner_id, balance, created_at, updated_at
		FROM accounts
		WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrAccountNotFound
	}
	return a, err
}

// WithLock begins a transaction, takes the FOR UPDATE lock on the account row,
// and runs fn with the locked snapshot. Commits only when fn returns nil.
func (r *accountsRepo) WithLock(ctx context.Context, id string, fn func(tx *sqlx.Tx, a model.Account) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a, err := r.getForUpdate(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("lock account %s: %w", id, err)
	}
	if err := fn(tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *accountsRepo) getForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (model.Account, error) {
	var a model.Account
	err := tx.GetContext(ctx, &a, `
		SELECT id, owner_id, balance, created_at, updated_at
		FROM accounts
		WHERE id = ?
		FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r *accountsRepo) AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + ?, updated_at = NOW()
		WHERE id = ?
	`, delta, id)
	return err
}

func (r *accountsRepo) Insert(ctx context.Context, a model.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, balance, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)
	`, a.ID, a.OwnerID, a.Balance)
	return err
}
