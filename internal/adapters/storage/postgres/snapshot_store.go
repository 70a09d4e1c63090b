package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"epetcare/internal/snapshot"
)

// SnapshotStore exporta/reemplaza las tablas clínicas como un snapshot.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Kind() string { return "postgres" }

// Export lee todas las tablas dentro de una transacción read-only
// REPEATABLE READ para obtener una vista consistente.
func (s *SnapshotStore) Export(ctx context.Context) (snapshot.Data, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return snapshot.Data{}, err
	}
	defer tx.Rollback()

	d := snapshot.Data{Version: snapshot.Version}

	if err := queryEach(ctx, tx, `SELECT `+ownerColumns+` FROM owners`, func(s scanner) error {
		var o snapshot.Owner
		if err := s.Scan(&o.ID, &o.UserID, &o.FullName, &o.Email, &o.Phone, &o.Address, &o.CreatedAt); err != nil {
			return err
		}
		d.Owners = append(d.Owners, o)
		return nil
	}); err != nil {
		return snapshot.Data{}, fmt.Errorf("owners: %w", err)
	}

	if err := queryEach(ctx, tx, `SELECT `+petColumns+` FROM pets`, func(s scanner) error {
		p, err := scanPet(s)
		if err != nil {
			return err
		}
		d.Pets = append(d.Pets, snapshot.Pet{
			ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Species: string(p.Species),
			Breed: p.Breed, Sex: string(p.Sex), BirthDate: p.BirthDate, WeightKg: p.WeightKg,
			Notes: p.Notes, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		})
		return nil
	}); err != nil {
		return snapshot.Data{}, fmt.Errorf("pets: %w", err)
	}

	if err := queryEach(ctx, tx, `SELECT `+appointmentColumns+` FROM appointments`, func(s scanner) error {
		a, err := scanAppointment(s)
		if err != nil {
			return err
		}
		d.Appointments = append(d.Appointments, snapshot.Appointment{
			ID: a.ID, PetID: a.PetID, VetUserID: a.VetUserID, DateTime: a.DateTime,
			Reason: a.Reason, Notes: a.Notes, Status: string(a.Status),
			CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
		})
		return nil
	}); err != nil {
		return snapshot.Data{}, fmt.Errorf("appointments: %w", err)
	}

	if err := queryEach(ctx, tx, `SELECT `+recordColumns+` FROM medical_records`, func(s scanner) error {
		m, err := scanRecord(s)
		if err != nil {
			return err
		}
		d.MedicalRecords = append(d.MedicalRecords, snapshot.MedicalRecord{
			ID: m.ID, PetID: m.PetID, VisitDate: m.VisitDate,
			Condition: m.Condition, Treatment: m.Treatment, VetNotes: m.VetNotes,
		})
		return nil
	}); err != nil {
		return snapshot.Data{}, fmt.Errorf("medical_records: %w", err)
	}

	if err := queryEach(ctx, tx, `SELECT `+prescriptionColumns+` FROM prescriptions`, func(s scanner) error {
		p, err := scanPrescription(s)
		if err != nil {
			return err
		}
		d.Prescriptions = append(d.Prescriptions, snapshot.Prescription{
			ID: p.ID, PetID: p.PetID, MedicationName: p.MedicationName, Dosage: p.Dosage,
			Instructions: p.Instructions, DatePrescribed: p.DatePrescribed,
			DurationDays: p.DurationDays, IsActive: p.IsActive,
		})
		return nil
	}); err != nil {
		return snapshot.Data{}, fmt.Errorf("prescriptions: %w", err)
	}

	d.Normalize()
	return d, nil
}

// Replace borra e inserta todo en una sola transacción: o queda el
// snapshot nuevo completo o queda el estado anterior.
func (s *SnapshotStore) Replace(ctx context.Context, d snapshot.Data) error {
	if err := d.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// hijos primero
	for _, table := range []string{"prescriptions", "medical_records", "appointments", "pets", "owners"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, o := range d.Owners {
		if _, err := tx.ExecContext(ctx, `INSERT INTO owners (`+ownerColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, o.UserID, o.FullName, o.Email, o.Phone, o.Address, o.CreatedAt); err != nil {
			return fmt.Errorf("owner %s: %w", o.ID, err)
		}
	}
	for _, p := range d.Pets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO pets (`+petColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			p.ID, p.OwnerID, p.Name, p.Species, p.Breed, p.Sex, toNullTime(p.BirthDate), toNullFloat(p.WeightKg),
			p.Notes, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("pet %s: %w", p.ID, err)
		}
	}
	for _, a := range d.Appointments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO appointments (`+appointmentColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			a.ID, a.PetID, a.VetUserID, a.DateTime, a.Reason, a.Notes, a.Status, a.CreatedAt, a.UpdatedAt); err != nil {
			return fmt.Errorf("appointment %s: %w", a.ID, err)
		}
	}
	for _, m := range d.MedicalRecords {
		if _, err := tx.ExecContext(ctx, `INSERT INTO medical_records (`+recordColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
			m.ID, m.PetID, m.VisitDate, m.Condition, m.Treatment, m.VetNotes); err != nil {
			return fmt.Errorf("medical record %s: %w", m.ID, err)
		}
	}
	for _, p := range d.Prescriptions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO prescriptions (`+prescriptionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			p.ID, p.PetID, p.MedicationName, p.Dosage, p.Instructions, p.DatePrescribed, toNullInt(p.DurationDays), p.IsActive); err != nil {
			return fmt.Errorf("prescription %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

func queryEach(ctx context.Context, tx *sql.Tx, query string, fn func(scanner) error) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
