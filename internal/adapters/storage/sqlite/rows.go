package sqlite

import (
	"database/sql"
	"time"

	"epetcare/internal/snapshot"
)

type ownerRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	FullName  string `db:"full_name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
	Address   string `db:"address"`
	CreatedAt string `db:"created_at"`
}

type petRow struct {
	ID        string          `db:"id"`
	OwnerID   string          `db:"owner_id"`
	Name      string          `db:"name"`
	Species   string          `db:"species"`
	Breed     string          `db:"breed"`
	Sex       string          `db:"sex"`
	BirthDate sql.NullString  `db:"birth_date"`
	WeightKg  sql.NullFloat64 `db:"weight_kg"`
	Notes     string          `db:"notes"`
	CreatedAt string          `db:"created_at"`
	UpdatedAt string          `db:"updated_at"`
}

type appointmentRow struct {
	ID        string `db:"id"`
	PetID     string `db:"pet_id"`
	VetUserID string `db:"vet_user_id"`
	DateTime  string `db:"date_time"`
	Reason    string `db:"reason"`
	Notes     string `db:"notes"`
	Status    string `db:"status"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type recordRow struct {
	ID        string `db:"id"`
	PetID     string `db:"pet_id"`
	VisitDate string `db:"visit_date"`
	Condition string `db:"condition"`
	Treatment string `db:"treatment"`
	VetNotes  string `db:"vet_notes"`
}

type prescriptionRow struct {
	ID             string        `db:"id"`
	PetID          string        `db:"pet_id"`
	MedicationName string        `db:"medication_name"`
	Dosage         string        `db:"dosage"`
	Instructions   string        `db:"instructions"`
	DatePrescribed string        `db:"date_prescribed"`
	DurationDays   sql.NullInt64 `db:"duration_days"`
	IsActive       bool          `db:"is_active"`
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func toOwnerRow(o snapshot.Owner) ownerRow {
	return ownerRow{o.ID, o.UserID, o.FullName, o.Email, o.Phone, o.Address, fmtTime(o.CreatedAt)}
}

func (r ownerRow) snapshot() snapshot.Owner {
	return snapshot.Owner{
		ID: r.ID, UserID: r.UserID, FullName: r.FullName, Email: r.Email,
		Phone: r.Phone, Address: r.Address, CreatedAt: parseTime(r.CreatedAt),
	}
}

func toPetRow(p snapshot.Pet) petRow {
	r := petRow{
		ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Species: p.Species, Breed: p.Breed, Sex: p.Sex,
		Notes: p.Notes, CreatedAt: fmtTime(p.CreatedAt), UpdatedAt: fmtTime(p.UpdatedAt),
	}
	if p.BirthDate != nil {
		r.BirthDate = sql.NullString{String: fmtTime(*p.BirthDate), Valid: true}
	}
	if p.WeightKg != nil {
		r.WeightKg = sql.NullFloat64{Float64: *p.WeightKg, Valid: true}
	}
	return r
}

func (r petRow) snapshot() snapshot.Pet {
	p := snapshot.Pet{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Species: r.Species, Breed: r.Breed, Sex: r.Sex,
		Notes: r.Notes, CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
	if r.BirthDate.Valid {
		t := parseTime(r.BirthDate.String)
		p.BirthDate = &t
	}
	if r.WeightKg.Valid {
		w := r.WeightKg.Float64
		p.WeightKg = &w
	}
	return p
}

func toAppointmentRow(a snapshot.Appointment) appointmentRow {
	return appointmentRow{
		a.ID, a.PetID, a.VetUserID, fmtTime(a.DateTime), a.Reason, a.Notes, a.Status,
		fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt),
	}
}

func (r appointmentRow) snapshot() snapshot.Appointment {
	return snapshot.Appointment{
		ID: r.ID, PetID: r.PetID, VetUserID: r.VetUserID, DateTime: parseTime(r.DateTime),
		Reason: r.Reason, Notes: r.Notes, Status: r.Status,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

func toRecordRow(m snapshot.MedicalRecord) recordRow {
	return recordRow{m.ID, m.PetID, fmtTime(m.VisitDate), m.Condition, m.Treatment, m.VetNotes}
}

func (r recordRow) snapshot() snapshot.MedicalRecord {
	return snapshot.MedicalRecord{
		ID: r.ID, PetID: r.PetID, VisitDate: parseTime(r.VisitDate),
		Condition: r.Condition, Treatment: r.Treatment, VetNotes: r.VetNotes,
	}
}

func toPrescriptionRow(p snapshot.Prescription) prescriptionRow {
	r := prescriptionRow{
		ID: p.ID, PetID: p.PetID, MedicationName: p.MedicationName, Dosage: p.Dosage,
		Instructions: p.Instructions, DatePrescribed: fmtTime(p.DatePrescribed), IsActive: p.IsActive,
	}
	if p.DurationDays != nil {
		r.DurationDays = sql.NullInt64{Int64: int64(*p.DurationDays), Valid: true}
	}
	return r
}

func (r prescriptionRow) snapshot() snapshot.Prescription {
	p := snapshot.Prescription{
		ID: r.ID, PetID: r.PetID, MedicationName: r.MedicationName, Dosage: r.Dosage,
		Instructions: r.Instructions, DatePrescribed: parseTime(r.DatePrescribed), IsActive: r.IsActive,
	}
	if r.DurationDays.Valid {
		d := int(r.DurationDays.Int64)
		p.DurationDays = &d
	}
	return p
}
