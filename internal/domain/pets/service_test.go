package pets

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	byID map[string]Pet
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Pet{}}
}

func (r *testRepo) Create(ctx context.Context, p Pet) error {
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Update(ctx context.Context, p Pet) error {
	if _, ok := r.byID[p.ID]; !ok {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Pet, error) {
	p, ok := r.byID[id]
	if !ok {
		return Pet{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) List(ctx context.Context, f ListFilter) ([]Pet, error) {
	out := make([]Pet, 0)
	for _, p := range r.byID {
		if f.OwnerID == "" || p.OwnerID == f.OwnerID {
			out = append(out, p)
		}
	}
	return out, nil
}

type ownersStub map[string]bool

func (o ownersStub) Exists(ctx context.Context, id string) (bool, error) {
	return o[id], nil
}

func newTestService() *Service {
	s := NewService(newTestRepo(), ownersStub{"o1": true, "o2": true})
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	p, err := s.Create(ctx, CreateInput{OwnerID: "o1", Name: " Milo ", Species: "Dog"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Sex != SexUnknown || p.Species != SpeciesDog || p.Name != "Milo" {
		t.Fatalf("unexpected pet: %+v", p)
	}

	if _, err := s.Create(ctx, CreateInput{OwnerID: "o1", Name: "X", Species: "dragon"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for species, got %v", err)
	}

	neg := -1.0
	if _, err := s.Create(ctx, CreateInput{OwnerID: "o1", Name: "X", Species: "cat", WeightKg: &neg}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for weight, got %v", err)
	}

	if _, err := s.Create(ctx, CreateInput{OwnerID: "nobody", Name: "X", Species: "cat"}); !errors.Is(err, ErrOwnerUnknown) {
		t.Fatalf("expected ErrOwnerUnknown, got %v", err)
	}
}

func TestUpdateProfile_BirthDatePresence(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	bd := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	p, err := s.Create(ctx, CreateInput{OwnerID: "o1", Name: "Luna", Species: "cat", BirthDate: &bd})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Luna II"
	p, err = s.UpdateProfile(ctx, p.ID, UpdateProfileInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.BirthDate == nil {
		t.Fatalf("birth_date cleared without being sent")
	}

	p, err = s.UpdateProfile(ctx, p.ID, UpdateProfileInput{BirthDate: PatchBirthDate{Present: true}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.BirthDate != nil {
		t.Fatalf("birth_date should be cleared")
	}

	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.UpdateProfile(ctx, p.ID, UpdateProfileInput{BirthDate: PatchBirthDate{Present: true, Value: &future}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for future birth_date, got %v", err)
	}

	ghost := "o9"
	if _, err := s.UpdateProfile(ctx, p.ID, UpdateProfileInput{OwnerID: &ghost}); !errors.Is(err, ErrOwnerUnknown) {
		t.Fatalf("expected ErrOwnerUnknown, got %v", err)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	s := newTestService()
	if _, err := s.UpdateProfile(context.Background(), "missing", UpdateProfileInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
