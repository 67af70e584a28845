package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

type UsersRepository interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	Insert(ctx context.Context, u model.User) error
}

type usersRepo struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) UsersRepository {
	return &usersRepo{db: db}
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

func (r *usersRepo) Insert(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE name = VALUES(name), email = VALUES(email), updated_at = VALUES(updated_at)
	`, u.ID, u.Name, u.Email)
	return err
}
