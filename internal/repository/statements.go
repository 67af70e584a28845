package repository

import (
	"context"

	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/jmoiron/sqlx"
)

// StatementsRepository writes and lists account statement entries in
// ClickHouse (append-heavy, read by the reports endpoint).
type StatementsRepository interface {
	Insert(ctx context.Context, e model.StatementEntry) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.StatementEntry, error)
}

type statementsRepo struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewStatementsRepository(ch *sqlx.DB) StatementsRepository {
	return &statementsRepo{ch: ch}
}

func (r *statementsRepo) Insert(ctx context.Context, e model.StatementEntry) error {
	const q = `
		INSERT INTO banksaga.statements
		    (id, account_id, transaction_id, type, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, now64(3))
	`
	_, err := r.ch.ExecContext(ctx, q,
		e.ID, e.AccountID, e.TransactionID, e.Type.String(), e.Amount, e.Description,
	)
	return err
}

func (r *statementsRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.StatementEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT id, account_id, transaction_id, type, amount, description, created_at
		FROM banksaga.statements
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	var rows []model.StatementEntry
	if err := r.ch.SelectContext(ctx, &rows, q, accountID, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}
