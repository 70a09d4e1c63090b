package postgres

import (
	"context"
	"database/sql"
	"errors"

	"epetcare/internal/domain/accounts"
	"epetcare/internal/ports/auth"

	"github.com/jackc/pgx/v5/pgconn"
)

// código SQLSTATE de unique_violation
const uniqueViolation = "23505"

type AccountsRepo struct {
	db *sql.DB
}

func NewAccountsRepo(db *sql.DB) *AccountsRepo {
	return &AccountsRepo{db: db}
}

func (r *AccountsRepo) Create(ctx context.Context, u accounts.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, full_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, u.ID, u.Username, u.PasswordHash, string(u.Role), u.FullName, u.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return accounts.ErrUsernameTaken
	}
	return err
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (accounts.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *AccountsRepo) GetByUsername(ctx context.Context, username string) (accounts.User, error) {
	return r.getOne(ctx, `WHERE lower(username) = lower($1)`, username)
}

func (r *AccountsRepo) getOne(ctx context.Context, where string, arg string) (accounts.User, error) {
	var u accounts.User
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, full_name, created_at
		FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.FullName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.User{}, accounts.ErrNotFound
	}
	u.Role = auth.Role(role)
	return u, err
}
