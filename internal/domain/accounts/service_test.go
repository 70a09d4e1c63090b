package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"epetcare/internal/ports/auth"

	"golang.org/x/crypto/bcrypt"
)

type testRepo struct {
	byID map[string]User
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]User{}}
}

func (r *testRepo) Create(ctx context.Context, u User) error {
	r.byID[u.ID] = u
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (User, error) {
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *testRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	for _, u := range r.byID {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(ctx context.Context, c auth.Claims) (string, error) {
	return "tok-" + c.UserID + "-" + string(c.Role), nil
}

func newTestService() *Service {
	s := NewService(newTestRepo(), fakeIssuer{})
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	u, err := s.Register(ctx, RegisterInput{Username: " DrSmith ", Password: "secret-123", FullName: "Dr. Smith"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != auth.RoleVet {
		t.Fatalf("expected default role vet, got %q", u.Role)
	}
	if u.PasswordHash == "secret-123" {
		t.Fatalf("password stored in clear")
	}

	token, got, err := s.Login(ctx, "drsmith", "secret-123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != u.ID || token != "tok-"+u.ID+"-vet" {
		t.Fatalf("unexpected login result: %q %+v", token, got)
	}
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	cases := []RegisterInput{
		{Username: "", Password: "secret-123"},
		{Username: "a", Password: "short"},
		{Username: "a", Password: "secret-123", Role: auth.RoleAdmin},
	}
	for _, in := range cases {
		if _, err := s.Register(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}

	if _, err := s.Register(ctx, RegisterInput{Username: "ana", Password: "secret-123", Role: auth.RoleOwner}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register(ctx, RegisterInput{Username: "ANA", Password: "secret-123"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	if _, err := s.Register(ctx, RegisterInput{Username: "vet", Password: "secret-123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := s.Login(ctx, "vet", "nope-nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := s.Login(ctx, "ghost", "secret-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
