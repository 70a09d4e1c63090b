package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("record not found")
	ErrPetUnknown   = errors.New("pet does not exist")
)

type PetChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service agrupa historia clínica y recetas: ambas cuelgan de la mascota
// y se consultan juntas desde el portal.
type Service struct {
	records       RecordRepository
	prescriptions PrescriptionRepository
	pets          PetChecker
	now           func() time.Time
}

func NewService(records RecordRepository, prescriptions PrescriptionRepository, pets PetChecker) *Service {
	return &Service{
		records:       records,
		prescriptions: prescriptions,
		pets:          pets,
		now:           time.Now,
	}
}

// -------------------------
// Medical records
// -------------------------

type RecordInput struct {
	PetID     string
	VisitDate time.Time // zero = hoy
	Condition string
	Treatment string
	VetNotes  string
}

type RecordPatch struct {
	PetID     *string
	VisitDate *time.Time
	Condition *string
	Treatment *string
	VetNotes  *string
}

func (s *Service) CreateRecord(ctx context.Context, in RecordInput) (MedicalRecord, error) {
	visit := in.VisitDate
	if visit.IsZero() {
		visit = s.now()
	}

	m := MedicalRecord{
		ID:        uuid.NewString(),
		PetID:     strings.TrimSpace(in.PetID),
		VisitDate: truncateDay(visit),
		Condition: strings.TrimSpace(in.Condition),
		Treatment: strings.TrimSpace(in.Treatment),
		VetNotes:  strings.TrimSpace(in.VetNotes),
	}
	if m.PetID == "" || m.Condition == "" || m.Treatment == "" {
		return MedicalRecord{}, ErrInvalidInput
	}
	if err := s.checkPet(ctx, m.PetID); err != nil {
		return MedicalRecord{}, err
	}

	if err := s.records.Create(ctx, m); err != nil {
		return MedicalRecord{}, err
	}
	return m, nil
}

func (s *Service) UpdateRecord(ctx context.Context, id string, in RecordPatch) (MedicalRecord, error) {
	m, err := s.GetRecord(ctx, id)
	if err != nil {
		return MedicalRecord{}, err
	}

	if in.PetID != nil {
		m.PetID = strings.TrimSpace(*in.PetID)
		if err := s.checkPet(ctx, m.PetID); err != nil {
			return MedicalRecord{}, err
		}
	}
	if in.VisitDate != nil {
		m.VisitDate = truncateDay(*in.VisitDate)
	}
	if in.Condition != nil {
		m.Condition = strings.TrimSpace(*in.Condition)
	}
	if in.Treatment != nil {
		m.Treatment = strings.TrimSpace(*in.Treatment)
	}
	if in.VetNotes != nil {
		m.VetNotes = strings.TrimSpace(*in.VetNotes)
	}
	if m.PetID == "" || m.Condition == "" || m.Treatment == "" {
		return MedicalRecord{}, ErrInvalidInput
	}

	if err := s.records.Update(ctx, m); err != nil {
		return MedicalRecord{}, err
	}
	return m, nil
}

func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return s.records.Delete(ctx, strings.TrimSpace(id))
}

func (s *Service) GetRecord(ctx context.Context, id string) (MedicalRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MedicalRecord{}, ErrNotFound
	}
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, filter RecordFilter) ([]MedicalRecord, error) {
	filter.PetID = strings.TrimSpace(filter.PetID)
	filter.Query = strings.TrimSpace(filter.Query)
	return s.records.List(ctx, filter)
}

// -------------------------
// Prescriptions
// -------------------------

type PrescriptionInput struct {
	PetID          string
	MedicationName string
	Dosage         string
	Instructions   string
	DatePrescribed time.Time // zero = hoy
	DurationDays   *int
	IsActive       *bool // nil = true
}

type PrescriptionPatch struct {
	PetID          *string
	MedicationName *string
	Dosage         *string
	Instructions   *string
	DatePrescribed *time.Time
	DurationDays   *int
	IsActive       *bool
}

func (s *Service) CreatePrescription(ctx context.Context, in PrescriptionInput) (Prescription, error) {
	date := in.DatePrescribed
	if date.IsZero() {
		date = s.now()
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	p := Prescription{
		ID:             uuid.NewString(),
		PetID:          strings.TrimSpace(in.PetID),
		MedicationName: strings.TrimSpace(in.MedicationName),
		Dosage:         strings.TrimSpace(in.Dosage),
		Instructions:   strings.TrimSpace(in.Instructions),
		DatePrescribed: truncateDay(date),
		DurationDays:   in.DurationDays,
		IsActive:       active,
	}
	if err := validatePrescription(p); err != nil {
		return Prescription{}, err
	}
	if err := s.checkPet(ctx, p.PetID); err != nil {
		return Prescription{}, err
	}

	if err := s.prescriptions.Create(ctx, p); err != nil {
		return Prescription{}, err
	}
	return p, nil
}

func (s *Service) UpdatePrescription(ctx context.Context, id string, in PrescriptionPatch) (Prescription, error) {
	p, err := s.GetPrescription(ctx, id)
	if err != nil {
		return Prescription{}, err
	}

	if in.PetID != nil {
		p.PetID = strings.TrimSpace(*in.PetID)
		if err := s.checkPet(ctx, p.PetID); err != nil {
			return Prescription{}, err
		}
	}
	if in.MedicationName != nil {
		p.MedicationName = strings.TrimSpace(*in.MedicationName)
	}
	if in.Dosage != nil {
		p.Dosage = strings.TrimSpace(*in.Dosage)
	}
	if in.Instructions != nil {
		p.Instructions = strings.TrimSpace(*in.Instructions)
	}
	if in.DatePrescribed != nil {
		p.DatePrescribed = truncateDay(*in.DatePrescribed)
	}
	if in.DurationDays != nil {
		p.DurationDays = in.DurationDays
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := validatePrescription(p); err != nil {
		return Prescription{}, err
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return Prescription{}, err
	}
	return p, nil
}

func (s *Service) DeletePrescription(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return s.prescriptions.Delete(ctx, strings.TrimSpace(id))
}

func (s *Service) GetPrescription(ctx context.Context, id string) (Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Prescription{}, ErrNotFound
	}
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, filter PrescriptionFilter) ([]Prescription, error) {
	filter.PetID = strings.TrimSpace(filter.PetID)
	return s.prescriptions.List(ctx, filter)
}

func (s *Service) checkPet(ctx context.Context, petID string) error {
	ok, err := s.pets.Exists(ctx, petID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPetUnknown
	}
	return nil
}

func validatePrescription(p Prescription) error {
	if p.PetID == "" || p.MedicationName == "" || p.Dosage == "" {
		return ErrInvalidInput
	}
	if p.DurationDays != nil && *p.DurationDays <= 0 {
		return ErrInvalidInput
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
