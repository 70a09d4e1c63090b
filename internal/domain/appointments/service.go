package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("appointment not found")
	ErrPetUnknown   = errors.New("pet does not exist")
)

type PetChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Notifier avisa al veterinario cuando se agenda un turno.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string) error
}

type Service struct {
	repo     Repository
	pets     PetChecker
	notifier Notifier
	now      func() time.Time
}

// NewService acepta notifier nil (sin avisos).
func NewService(repo Repository, pets PetChecker, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		pets:     pets,
		notifier: notifier,
		now:      time.Now,
	}
}

type CreateInput struct {
	PetID    string
	DateTime time.Time
	Reason   string
	Notes    string
	Status   Status
}

type UpdateInput struct {
	PetID    *string
	DateTime *time.Time
	Reason   *string
	Notes    *string
	Status   *Status
}

func (s *Service) Create(ctx context.Context, vetUserID string, in CreateInput) (Appointment, error) {
	status := in.Status
	if status == "" {
		status = StatusScheduled
	}

	now := s.now().UTC()
	a := Appointment{
		ID:        uuid.NewString(),
		PetID:     strings.TrimSpace(in.PetID),
		VetUserID: strings.TrimSpace(vetUserID),
		DateTime:  in.DateTime.UTC(),
		Reason:    strings.TrimSpace(in.Reason),
		Notes:     strings.TrimSpace(in.Notes),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(a); err != nil {
		return Appointment{}, err
	}
	if err := s.checkPet(ctx, a.PetID); err != nil {
		return Appointment{}, err
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Appointment{}, err
	}

	// best-effort: un fallo al notificar no revierte el turno
	if s.notifier != nil && a.VetUserID != "" {
		_ = s.notifier.Notify(ctx, a.VetUserID, "New appointment",
			fmt.Sprintf("%s on %s", a.Reason, a.DateTime.Format("2006-01-02 15:04")))
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Appointment, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}

	if in.PetID != nil {
		a.PetID = strings.TrimSpace(*in.PetID)
		if err := s.checkPet(ctx, a.PetID); err != nil {
			return Appointment{}, err
		}
	}
	if in.DateTime != nil {
		a.DateTime = in.DateTime.UTC()
	}
	if in.Reason != nil {
		a.Reason = strings.TrimSpace(*in.Reason)
	}
	if in.Notes != nil {
		a.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if err := validate(a); err != nil {
		return Appointment{}, err
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, a); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidInput
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, filter)
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

func validate(a Appointment) error {
	if a.PetID == "" || a.Reason == "" || a.DateTime.IsZero() {
		return ErrInvalidInput
	}
	if !a.Status.Valid() {
		return ErrInvalidInput
	}
	return nil
}
