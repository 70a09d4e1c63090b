package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"epetcare/internal/domain/owners"
)

type OwnersRepo struct {
	db *sql.DB
}

func NewOwnersRepo(db *sql.DB) *OwnersRepo {
	return &OwnersRepo{db: db}
}

const ownerColumns = `id, user_id, full_name, email, phone, address, created_at`

func (r *OwnersRepo) Create(ctx context.Context, o owners.Owner) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO owners (`+ownerColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, o.ID, o.UserID, o.FullName, o.Email, o.Phone, o.Address, o.CreatedAt)
	return err
}

func (r *OwnersRepo) Update(ctx context.Context, o owners.Owner) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE owners
		SET full_name = $2, email = $3, phone = $4, address = $5
		WHERE id = $1
	`, o.ID, o.FullName, o.Email, o.Phone, o.Address)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return owners.ErrNotFound
	}
	return nil
}

func (r *OwnersRepo) GetByID(ctx context.Context, id string) (owners.Owner, error) {
	var o owners.Owner
	err := r.db.QueryRowContext(ctx, `SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id).
		Scan(&o.ID, &o.UserID, &o.FullName, &o.Email, &o.Phone, &o.Address, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return owners.Owner{}, owners.ErrNotFound
	}
	return o, err
}

func (r *OwnersRepo) List(ctx context.Context, query string) ([]owners.Owner, error) {
	var q string
	if query != "" {
		q = "%" + strings.ToLower(query) + "%"
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ownerColumns+`
		FROM owners
		WHERE $1 = '' OR lower(full_name) LIKE $1 OR lower(email) LIKE $1 OR phone LIKE $1
		ORDER BY full_name ASC, id ASC
	`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]owners.Owner, 0)
	for rows.Next() {
		var o owners.Owner
		if err := rows.Scan(&o.ID, &o.UserID, &o.FullName, &o.Email, &o.Phone, &o.Address, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
