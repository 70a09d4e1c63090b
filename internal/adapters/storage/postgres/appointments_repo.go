package postgres

import (
	"context"
	"database/sql"
	"errors"

	"epetcare/internal/domain/appointments"
)

type AppointmentsRepo struct {
	db *sql.DB
}

func NewAppointmentsRepo(db *sql.DB) *AppointmentsRepo {
	return &AppointmentsRepo{db: db}
}

const appointmentColumns = `id, pet_id, vet_user_id, date_time, reason, notes, status, created_at, updated_at`

func (r *AppointmentsRepo) Create(ctx context.Context, a appointments.Appointment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.PetID, a.VetUserID, a.DateTime, a.Reason, a.Notes, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *AppointmentsRepo) Update(ctx context.Context, a appointments.Appointment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET pet_id = $2, date_time = $3, reason = $4, notes = $5, status = $6, updated_at = $7
		WHERE id = $1
	`, a.ID, a.PetID, a.DateTime, a.Reason, a.Notes, string(a.Status), a.UpdatedAt)
	return affectedOr(res, err, appointments.ErrNotFound)
}

func (r *AppointmentsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return affectedOr(res, err, appointments.ErrNotFound)
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return appointments.Appointment{}, appointments.ErrNotFound
	}
	return a, err
}

func (r *AppointmentsRepo) List(ctx context.Context, f appointments.ListFilter) ([]appointments.Appointment, error) {
	var from, to sql.NullTime
	if f.From != nil {
		from = sql.NullTime{Time: *f.From, Valid: true}
	}
	if f.To != nil {
		to = sql.NullTime{Time: *f.To, Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR pet_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR date_time >= $3)
		  AND ($4::timestamptz IS NULL OR date_time <= $4)
		ORDER BY date_time ASC
	`, f.PetID, string(f.Status), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]appointments.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(s scanner) (appointments.Appointment, error) {
	var a appointments.Appointment
	var status string
	err := s.Scan(&a.ID, &a.PetID, &a.VetUserID, &a.DateTime, &a.Reason, &a.Notes, &status, &a.CreatedAt, &a.UpdatedAt)
	a.Status = appointments.Status(status)
	return a, err
}

// affectedOr traduce "0 filas" al sentinel del dominio.
func affectedOr(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound
	}
	return nil
}
