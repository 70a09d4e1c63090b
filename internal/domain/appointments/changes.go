package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// changePayload es el "data" de un cambio offline. Campos ausentes = no tocar.
type changePayload struct {
	PetID    *string    `json:"pet_id"`
	DateTime *time.Time `json:"date_time"`
	Reason   *string    `json:"reason"`
	Notes    *string    `json:"notes"`
	Status   *Status    `json:"status"`
}

// ApplyChange aplica un cambio registrado offline por el cliente de escritorio.
// Devuelve el id del turno afectado.
func (s *Service) ApplyChange(ctx context.Context, actorID, op, targetID string, data json.RawMessage) (string, error) {
	var p changePayload
	if op != "delete" && len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	switch op {
	case "create":
		in := CreateInput{}
		if p.PetID != nil {
			in.PetID = *p.PetID
		}
		if p.DateTime != nil {
			in.DateTime = *p.DateTime
		}
		if p.Reason != nil {
			in.Reason = *p.Reason
		}
		if p.Notes != nil {
			in.Notes = *p.Notes
		}
		if p.Status != nil {
			in.Status = *p.Status
		}
		a, err := s.Create(ctx, actorID, in)
		if err != nil {
			return "", err
		}
		return a.ID, nil

	case "update":
		a, err := s.Update(ctx, targetID, UpdateInput{
			PetID:    p.PetID,
			DateTime: p.DateTime,
			Reason:   p.Reason,
			Notes:    p.Notes,
			Status:   p.Status,
		})
		if err != nil {
			return "", err
		}
		return a.ID, nil

	case "delete":
		if err := s.Delete(ctx, targetID); err != nil {
			return "", err
		}
		return targetID, nil
	}

	return "", fmt.Errorf("%w: unknown change type %q", ErrInvalidInput, op)
}
