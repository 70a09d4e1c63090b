package changes

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"epetcare/internal/middleware"

	"github.com/go-chi/chi/v5"
)

const maxChangesPerRequest = 1000

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/sync/offline-changes", func(cr chi.Router) {
		cr.Post("/", submitHandler(svc))
		cr.Get("/", listHandler(svc))
	})
}

type changeRequest struct {
	Type  string          `json:"type"`
	Model string          `json:"model"`
	ID    json.RawMessage `json:"id"` // string o número
	Data  json.RawMessage `json:"data"`

	// ClientID: clave de idempotencia del cliente (opcional).
	ClientID string `json:"client_id"`
}

type submitRequest struct {
	Changes []changeRequest `json:"changes"`
}

type resultResponse struct {
	Status   string `json:"status"`
	ChangeID string `json:"change_id"`
	ID       string `json:"id,omitempty"`
	Message  string `json:"message,omitempty"`
}

type submitResponse struct {
	Status    string           `json:"status"`
	Results   []resultResponse `json:"results"`
	Timestamp time.Time        `json:"timestamp"`
}

type changeResponse struct {
	ID        string          `json:"id"`
	Type      ChangeType      `json:"type"`
	Model     Model           `json:"model"`
	TargetID  string          `json:"target_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	ClientID  string          `json:"client_id,omitempty"`
	Status    Status          `json:"status"`
	ResultID  string          `json:"result_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	AppliedAt *time.Time      `json:"applied_at,omitempty"`
}

func submitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if len(req.Changes) > maxChangesPerRequest {
			http.Error(w, "too many changes in one request", http.StatusRequestEntityTooLarge)
			return
		}

		in := make([]Input, 0, len(req.Changes))
		for _, c := range req.Changes {
			in = append(in, Input{
				Type:     ChangeType(c.Type),
				Model:    Model(c.Model),
				TargetID: rawID(c.ID),
				Data:     c.Data,
				ClientID: c.ClientID,
			})
		}

		results, err := svc.Submit(r.Context(), claims.UserID, in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out := submitResponse{Status: "success", Results: make([]resultResponse, 0, len(results)), Timestamp: time.Now().UTC()}
		for _, res := range results {
			out.Results = append(out.Results, resultResponse(res))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		items, err := svc.List(r.Context(), ListFilter{
			CreatedBy: claims.UserID,
			Status:    Status(q.Get("status")),
			Limit:     limit,
		})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]changeResponse, 0, len(items))
		for _, c := range items {
			out = append(out, changeResponse{
				ID:        c.ID,
				Type:      c.ChangeType,
				Model:     c.Model,
				TargetID:  c.TargetID,
				Data:      c.Data,
				ClientID:  c.ClientID,
				Status:    c.Status,
				ResultID:  c.ResultID,
				Error:     c.Error,
				CreatedAt: c.CreatedAt,
				AppliedAt: c.AppliedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// rawID normaliza "id" que puede venir como string, número o null.
func rawID(b json.RawMessage) string {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		return str
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
