package records

import "time"

// MedicalRecord es una entrada de historia clínica (una visita).
type MedicalRecord struct {
	ID        string
	PetID     string
	VisitDate time.Time // fecha, sin hora
	Condition string
	Treatment string
	VetNotes  string
}

type Prescription struct {
	ID             string
	PetID          string
	MedicationName string
	Dosage         string
	Instructions   string
	DatePrescribed time.Time
	DurationDays   *int
	IsActive       bool
}
