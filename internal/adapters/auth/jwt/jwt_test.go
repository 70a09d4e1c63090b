package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	"epetcare/internal/ports/auth"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour)

	tok, err := svc.Issue(context.Background(), auth.Claims{UserID: "u1", Username: "drsmith", Role: auth.RoleVet})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c, err := svc.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.UserID != "u1" || c.Username != "drsmith" || !c.IsVet() {
		t.Fatalf("unexpected claims: %#v", c)
	}
}

func TestVerify_RejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewService("secret", time.Minute)
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	tok, err := svc.Issue(context.Background(), auth.Claims{UserID: "u1", Role: auth.RoleVet})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := svc.Verify(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	other := NewService("other-secret", time.Hour)
	foreign, _ := other.Issue(context.Background(), auth.Claims{UserID: "u2"})
	if _, err := NewService("secret", time.Hour).Verify(context.Background(), foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}
}

func TestService_NotConfigured(t *testing.T) {
	svc := NewService("", time.Hour)
	if _, err := svc.Issue(context.Background(), auth.Claims{UserID: "u1"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
