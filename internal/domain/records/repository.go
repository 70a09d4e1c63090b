package records

import "context"

type RecordRepository interface {
	Create(ctx context.Context, m MedicalRecord) error
	Update(ctx context.Context, m MedicalRecord) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (MedicalRecord, error)
	// List ordena por visit_date desc.
	List(ctx context.Context, filter RecordFilter) ([]MedicalRecord, error)
}

type RecordFilter struct {
	PetID string
	Query string // condition / treatment
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p Prescription) error
	Update(ctx context.Context, p Prescription) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Prescription, error)
	// List ordena por date_prescribed desc.
	List(ctx context.Context, filter PrescriptionFilter) ([]Prescription, error)
}

type PrescriptionFilter struct {
	PetID  string
	Active *bool
}
