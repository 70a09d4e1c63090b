package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"epetcare/internal/platform/logger"
	"epetcare/internal/ports/auth"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if token == "good" {
		return auth.Claims{UserID: "u1", Role: auth.RoleVet}, nil
	}
	return auth.Claims{}, errors.New("bad token")
}

func claimsEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := GetClaims(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(c.UserID + ":" + string(c.Role)))
	})
}

func TestAuthContext_TokenSchemes(t *testing.T) {
	h := AuthContext(stubVerifier{}, false)(claimsEcho())

	for _, header := range []string{"Bearer good", "Token good", "token  good"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		h.ServeHTTP(rec, req)
		if rec.Body.String() != "u1:vet" {
			t.Fatalf("header %q: expected claims, got %q", header, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected no claims for bad token, got %d", rec.Code)
	}
}

func TestAuthContext_DebugHeadersOnlyWhenAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "owner-1")
	req.Header.Set("X-Debug-Role", "owner")

	rec := httptest.NewRecorder()
	AuthContext(nil, true)(claimsEcho()).ServeHTTP(rec, req)
	if rec.Body.String() != "owner-1:owner" {
		t.Fatalf("expected debug claims, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	AuthContext(nil, false)(claimsEcho()).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("debug headers must be ignored when not allowed, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(auth.RoleVet)(claimsEcho())

	cases := []struct {
		name   string
		claims *auth.Claims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"owner", &auth.Claims{UserID: "o", Role: auth.RoleOwner}, http.StatusForbidden},
		{"vet", &auth.Claims{UserID: "v", Role: auth.RoleVet}, http.StatusOK},
		{"admin", &auth.Claims{UserID: "a", Role: auth.RoleAdmin}, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.claims != nil {
			req = req.WithContext(WithClaims(req.Context(), *tc.claims))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestRecover_Returns500(t *testing.T) {
	h := Recover(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
