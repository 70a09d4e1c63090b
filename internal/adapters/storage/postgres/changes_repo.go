package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"epetcare/internal/domain/changes"
)

type ChangesRepo struct {
	db *sql.DB
}

func NewChangesRepo(db *sql.DB) *ChangesRepo {
	return &ChangesRepo{db: db}
}

const changeColumns = `id, change_type, model, target_id, data, client_id, created_by, created_at, status, applied_at, result_id, error`

func (r *ChangesRepo) Create(ctx context.Context, c changes.OfflineChange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO offline_changes (`+changeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		c.ID, string(c.ChangeType), string(c.Model), c.TargetID, string(c.Data), c.ClientID,
		c.CreatedBy, c.CreatedAt, string(c.Status), toNullTime(c.AppliedAt), c.ResultID, c.Error,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "offline_changes_client_idx" {
		return changes.ErrDuplicate
	}
	return err
}

func (r *ChangesRepo) Update(ctx context.Context, c changes.OfflineChange) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE offline_changes
		SET status = $2, applied_at = $3, result_id = $4, error = $5
		WHERE id = $1
	`, c.ID, string(c.Status), toNullTime(c.AppliedAt), c.ResultID, c.Error)
	return affectedOr(res, err, changes.ErrNotFound)
}

func (r *ChangesRepo) GetByID(ctx context.Context, id string) (changes.OfflineChange, error) {
	c, err := scanChange(r.db.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM offline_changes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return changes.OfflineChange{}, changes.ErrNotFound
	}
	return c, err
}

func (r *ChangesRepo) GetByClientID(ctx context.Context, createdBy, clientID string) (changes.OfflineChange, error) {
	c, err := scanChange(r.db.QueryRowContext(ctx, `
		SELECT `+changeColumns+` FROM offline_changes
		WHERE created_by = $1 AND client_id = $2 AND client_id <> ''
	`, createdBy, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return changes.OfflineChange{}, changes.ErrNotFound
	}
	return c, err
}

func (r *ChangesRepo) List(ctx context.Context, f changes.ListFilter) ([]changes.OfflineChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+changeColumns+`
		FROM offline_changes
		WHERE ($1 = '' OR created_by = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, f.CreatedBy, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]changes.OfflineChange, 0)
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChange(s scanner) (changes.OfflineChange, error) {
	var c changes.OfflineChange
	var changeType, model, status string
	var data []byte
	var applied sql.NullTime
	err := s.Scan(&c.ID, &changeType, &model, &c.TargetID, &data, &c.ClientID, &c.CreatedBy, &c.CreatedAt, &status, &applied, &c.ResultID, &c.Error)
	c.ChangeType = changes.ChangeType(changeType)
	c.Model = changes.Model(model)
	c.Status = changes.Status(status)
	c.Data = data
	c.AppliedAt = fromNullTime(applied)
	return c, err
}
