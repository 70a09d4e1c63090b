package records

import (
	"context"
	"encoding/json"
	"fmt"
)

type recordPayload struct {
	PetID     *string `json:"pet_id"`
	VisitDate *Date   `json:"visit_date"`
	Condition *string `json:"condition"`
	Treatment *string `json:"treatment"`
	VetNotes  *string `json:"vet_notes"`
}

type prescriptionPayload struct {
	PetID          *string `json:"pet_id"`
	MedicationName *string `json:"medication_name"`
	Dosage         *string `json:"dosage"`
	Instructions   *string `json:"instructions"`
	DatePrescribed *Date   `json:"date_prescribed"`
	DurationDays   *int    `json:"duration_days"`
	IsActive       *bool   `json:"is_active"`
}

func (p recordPayload) patch() RecordPatch {
	return RecordPatch{
		PetID:     p.PetID,
		VisitDate: p.VisitDate.ptr(),
		Condition: p.Condition,
		Treatment: p.Treatment,
		VetNotes:  p.VetNotes,
	}
}

func (p recordPayload) input() RecordInput {
	in := RecordInput{
		PetID:     deref(p.PetID),
		Condition: deref(p.Condition),
		Treatment: deref(p.Treatment),
		VetNotes:  deref(p.VetNotes),
	}
	if p.VisitDate != nil {
		in.VisitDate = p.VisitDate.Time
	}
	return in
}

func (p prescriptionPayload) patch() PrescriptionPatch {
	return PrescriptionPatch{
		PetID:          p.PetID,
		MedicationName: p.MedicationName,
		Dosage:         p.Dosage,
		Instructions:   p.Instructions,
		DatePrescribed: p.DatePrescribed.ptr(),
		DurationDays:   p.DurationDays,
		IsActive:       p.IsActive,
	}
}

func (p prescriptionPayload) input() PrescriptionInput {
	in := PrescriptionInput{
		PetID:          deref(p.PetID),
		MedicationName: deref(p.MedicationName),
		Dosage:         deref(p.Dosage),
		Instructions:   deref(p.Instructions),
		DurationDays:   p.DurationDays,
		IsActive:       p.IsActive,
	}
	if p.DatePrescribed != nil {
		in.DatePrescribed = p.DatePrescribed.Time
	}
	return in
}

// ApplyRecordChange aplica un cambio offline sobre medical_record.
func (s *Service) ApplyRecordChange(ctx context.Context, actorID, op, targetID string, data json.RawMessage) (string, error) {
	var p recordPayload
	if err := decodePayload(op, data, &p); err != nil {
		return "", err
	}

	switch op {
	case "create":
		m, err := s.CreateRecord(ctx, p.input())
		if err != nil {
			return "", err
		}
		return m.ID, nil
	case "update":
		m, err := s.UpdateRecord(ctx, targetID, p.patch())
		if err != nil {
			return "", err
		}
		return m.ID, nil
	case "delete":
		if err := s.DeleteRecord(ctx, targetID); err != nil {
			return "", err
		}
		return targetID, nil
	}
	return "", fmt.Errorf("%w: unknown change type %q", ErrInvalidInput, op)
}

// ApplyPrescriptionChange aplica un cambio offline sobre prescription.
func (s *Service) ApplyPrescriptionChange(ctx context.Context, actorID, op, targetID string, data json.RawMessage) (string, error) {
	var p prescriptionPayload
	if err := decodePayload(op, data, &p); err != nil {
		return "", err
	}

	switch op {
	case "create":
		rx, err := s.CreatePrescription(ctx, p.input())
		if err != nil {
			return "", err
		}
		return rx.ID, nil
	case "update":
		rx, err := s.UpdatePrescription(ctx, targetID, p.patch())
		if err != nil {
			return "", err
		}
		return rx.ID, nil
	case "delete":
		if err := s.DeletePrescription(ctx, targetID); err != nil {
			return "", err
		}
		return targetID, nil
	}
	return "", fmt.Errorf("%w: unknown change type %q", ErrInvalidInput, op)
}

func decodePayload(op string, data json.RawMessage, v any) error {
	if op == "delete" || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
