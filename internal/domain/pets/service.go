package pets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("pet not found")
	ErrOwnerUnknown = errors.New("owner does not exist")
)

// OwnerChecker evita importar el módulo owners (solo necesitamos existencia).
type OwnerChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo   Repository
	owners OwnerChecker
	now    func() time.Time
}

func NewService(repo Repository, owners OwnerChecker) *Service {
	return &Service{
		repo:   repo,
		owners: owners,
		now:    time.Now,
	}
}

type CreateInput struct {
	OwnerID   string
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	WeightKg  *float64
	Notes     string
}

// PatchBirthDate distingue "no enviado" de "enviado null" (limpiar).
type PatchBirthDate struct {
	Present bool
	Value   *time.Time
}

type UpdateProfileInput struct {
	OwnerID   *string
	Name      *string
	Species   *string
	Breed     *string
	Sex       *string
	BirthDate PatchBirthDate
	WeightKg  *float64
	Notes     *string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Pet, error) {
	sex := strings.ToLower(strings.TrimSpace(in.Sex))
	if sex == "" {
		sex = string(SexUnknown)
	}

	now := s.now().UTC()
	p := Pet{
		ID:        uuid.NewString(),
		OwnerID:   strings.TrimSpace(in.OwnerID),
		Name:      strings.TrimSpace(in.Name),
		Species:   Species(strings.ToLower(strings.TrimSpace(in.Species))),
		Breed:     strings.TrimSpace(in.Breed),
		Sex:       Sex(sex),
		BirthDate: in.BirthDate,
		WeightKg:  in.WeightKg,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(p, now); err != nil {
		return Pet{}, err
	}
	if err := s.checkOwner(ctx, p.OwnerID); err != nil {
		return Pet{}, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

// UpdateProfile aplica un PATCH: nil = no tocar.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (Pet, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Pet{}, err
	}

	if in.OwnerID != nil {
		p.OwnerID = strings.TrimSpace(*in.OwnerID)
		if err := s.checkOwner(ctx, p.OwnerID); err != nil {
			return Pet{}, err
		}
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Species != nil {
		p.Species = Species(strings.ToLower(strings.TrimSpace(*in.Species)))
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Sex != nil {
		p.Sex = Sex(strings.ToLower(strings.TrimSpace(*in.Sex)))
	}
	if in.BirthDate.Present {
		p.BirthDate = in.BirthDate.Value
	}
	if in.WeightKg != nil {
		p.WeightKg = in.WeightKg
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}

	now := s.now().UTC()
	if err := validate(p, now); err != nil {
		return Pet{}, err
	}
	p.UpdatedAt = now

	if err := s.repo.Update(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Pet{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Pet, error) {
	filter.OwnerID = strings.TrimSpace(filter.OwnerID)
	filter.Query = strings.TrimSpace(filter.Query)
	return s.repo.List(ctx, filter)
}

// Exists lo usan appointments y records para validar pet_id.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) checkOwner(ctx context.Context, ownerID string) error {
	ok, err := s.owners.Exists(ctx, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOwnerUnknown
	}
	return nil
}

func validate(p Pet, now time.Time) error {
	if p.OwnerID == "" || p.Name == "" {
		return ErrInvalidInput
	}
	if !p.Species.Valid() || !p.Sex.Valid() {
		return ErrInvalidInput
	}
	if p.WeightKg != nil && *p.WeightKg < 0 {
		return ErrInvalidInput
	}
	// fecha de nacimiento futura no tiene sentido
	if p.BirthDate != nil && p.BirthDate.After(now) {
		return ErrInvalidInput
	}
	return nil
}
