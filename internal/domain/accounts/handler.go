package accounts

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"epetcare/internal/middleware"
	"epetcare/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// RegisterTokenRoutes monta los endpoints de obtención de token.
// Los clientes de escritorio prueban varias rutas, por eso hay dos formas
// de respuesta: {"token"} y {"access"}.
func RegisterTokenRoutes(r chi.Router, svc *Service) {
	r.Post("/api-token-auth/", tokenHandler(svc, "token"))
	r.Post("/api/token/", tokenHandler(svc, "access"))
}

// RegisterRoutes monta /accounts dentro del grupo /api.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/accounts", func(ar chi.Router) {
		ar.Post("/register", registerHandler(svc))
		ar.Get("/me", meHandler(svc))
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

func tokenHandler(svc *Service, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := readCredentials(r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		token, _, err := svc.Login(r.Context(), creds.Username, creds.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{field: token})
	}
}

// readCredentials acepta JSON o form-urlencoded.
func readCredentials(r *http.Request) (credentials, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var c credentials
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			return credentials{}, err
		}
		return c, nil
	}

	if err := r.ParseForm(); err != nil {
		return credentials{}, err
	}
	return credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}, nil
}

func registerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		u, err := svc.Register(r.Context(), RegisterInput{
			Username: req.Username,
			Password: req.Password,
			Role:     auth.Role(strings.ToLower(strings.TrimSpace(req.Role))),
			FullName: req.FullName,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "username required, password min 8 chars, role vet|owner", http.StatusBadRequest)
			case errors.Is(err, ErrUsernameTaken):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

func meHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		u, err := svc.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// usuario de debug sin cuenta persistida
				writeJSON(w, http.StatusOK, userResponse{ID: claims.UserID, Username: claims.Username, Role: claims.Role})
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
