package owners

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("owner not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	UserID   string
	FullName string
	Email    string
	Phone    string
	Address  string
}

type UpdateInput struct {
	FullName *string
	Email    *string
	Phone    *string
	Address  *string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Owner, error) {
	o := Owner{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(in.UserID),
		FullName:  strings.TrimSpace(in.FullName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: s.now().UTC(),
	}
	if err := validate(o); err != nil {
		return Owner{}, err
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return Owner{}, err
	}
	return o, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Owner, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return Owner{}, err
	}

	if in.FullName != nil {
		o.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		o.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		o.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		o.Address = strings.TrimSpace(*in.Address)
	}
	if err := validate(o); err != nil {
		return Owner{}, err
	}

	if err := s.repo.Update(ctx, o); err != nil {
		return Owner{}, err
	}
	return o, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Owner, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Owner{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, query string) ([]Owner, error) {
	return s.repo.List(ctx, strings.TrimSpace(query))
}

// Exists lo usan otros módulos para validar referencias.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func validate(o Owner) error {
	if o.FullName == "" {
		return ErrInvalidInput
	}
	if o.Email != "" && !strings.Contains(o.Email, "@") {
		return ErrInvalidInput
	}
	return nil
}
