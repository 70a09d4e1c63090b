package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"epetcare/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

const recordColumns = `id, pet_id, visit_date, condition, treatment, vet_notes`

func (r *RecordsRepo) Create(ctx context.Context, m records.MedicalRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medical_records (`+recordColumns+`) VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.PetID, m.VisitDate, m.Condition, m.Treatment, m.VetNotes)
	return err
}

func (r *RecordsRepo) Update(ctx context.Context, m records.MedicalRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medical_records
		SET pet_id = $2, visit_date = $3, condition = $4, treatment = $5, vet_notes = $6
		WHERE id = $1
	`, m.ID, m.PetID, m.VisitDate, m.Condition, m.Treatment, m.VetNotes)
	return affectedOr(res, err, records.ErrNotFound)
}

func (r *RecordsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	return affectedOr(res, err, records.ErrNotFound)
}

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.MedicalRecord, error) {
	m, err := scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM medical_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return records.MedicalRecord{}, records.ErrNotFound
	}
	return m, err
}

func (r *RecordsRepo) List(ctx context.Context, f records.RecordFilter) ([]records.MedicalRecord, error) {
	var q string
	if f.Query != "" {
		q = "%" + strings.ToLower(f.Query) + "%"
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE ($1 = '' OR pet_id = $1)
		  AND ($2 = '' OR lower(condition) LIKE $2 OR lower(treatment) LIKE $2)
		ORDER BY visit_date DESC, id ASC
	`, f.PetID, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.MedicalRecord, 0)
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRecord(s scanner) (records.MedicalRecord, error) {
	var m records.MedicalRecord
	err := s.Scan(&m.ID, &m.PetID, &m.VisitDate, &m.Condition, &m.Treatment, &m.VetNotes)
	m.VisitDate = m.VisitDate.UTC()
	return m, err
}

type PrescriptionsRepo struct {
	db *sql.DB
}

func NewPrescriptionsRepo(db *sql.DB) *PrescriptionsRepo {
	return &PrescriptionsRepo{db: db}
}

const prescriptionColumns = `id, pet_id, medication_name, dosage, instructions, date_prescribed, duration_days, is_active`

func (r *PrescriptionsRepo) Create(ctx context.Context, p records.Prescription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prescriptions (`+prescriptionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.PetID, p.MedicationName, p.Dosage, p.Instructions, p.DatePrescribed, toNullInt(p.DurationDays), p.IsActive)
	return err
}

func (r *PrescriptionsRepo) Update(ctx context.Context, p records.Prescription) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE prescriptions
		SET pet_id = $2, medication_name = $3, dosage = $4, instructions = $5,
		    date_prescribed = $6, duration_days = $7, is_active = $8
		WHERE id = $1
	`, p.ID, p.PetID, p.MedicationName, p.Dosage, p.Instructions, p.DatePrescribed, toNullInt(p.DurationDays), p.IsActive)
	return affectedOr(res, err, records.ErrNotFound)
}

func (r *PrescriptionsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	return affectedOr(res, err, records.ErrNotFound)
}

func (r *PrescriptionsRepo) GetByID(ctx context.Context, id string) (records.Prescription, error) {
	p, err := scanPrescription(r.db.QueryRowContext(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return records.Prescription{}, records.ErrNotFound
	}
	return p, err
}

func (r *PrescriptionsRepo) List(ctx context.Context, f records.PrescriptionFilter) ([]records.Prescription, error) {
	var active sql.NullBool
	if f.Active != nil {
		active = sql.NullBool{Bool: *f.Active, Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE ($1 = '' OR pet_id = $1)
		  AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY date_prescribed DESC, id ASC
	`, f.PetID, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.Prescription, 0)
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPrescription(s scanner) (records.Prescription, error) {
	var p records.Prescription
	var days sql.NullInt64
	err := s.Scan(&p.ID, &p.PetID, &p.MedicationName, &p.Dosage, &p.Instructions, &p.DatePrescribed, &days, &p.IsActive)
	p.DatePrescribed = p.DatePrescribed.UTC()
	p.DurationDays = fromNullInt(days)
	return p, err
}
