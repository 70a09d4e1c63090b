package dbsync

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"epetcare/internal/snapshot"

	"github.com/go-chi/chi/v5"
)

const (
	HeaderChecksum = "X-Snapshot-Checksum"
	HeaderVersion  = "X-Snapshot-Version"

	uploadField   = "database"
	maxUploadSize = 64 << 20
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/database/sync/", infoHandler(svc))
	r.Get("/database/download/", downloadHandler(svc))
	r.Post("/database/upload/", uploadHandler(svc))
}

type infoResponse struct {
	Timestamp     time.Time      `json:"timestamp"`
	LastSync      *time.Time     `json:"last_sync"`
	DBType        string         `json:"db_type"`
	SyncMethod    string         `json:"sync_method"`
	SchemaVersion int            `json:"schema_version"`
	Tables        []string       `json:"tables"`
	Counts        map[string]int `json:"counts"`
	Checksum      string         `json:"checksum"`
}

type uploadResponse struct {
	Status     string         `json:"status"`
	Checksum   string         `json:"checksum"`
	Counts     map[string]int `json:"counts"`
	BackupPath string         `json:"backup_path,omitempty"`
}

func infoHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, infoResponse(info))
	}
}

func downloadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, sum, err := svc.Snapshot(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Disposition", `attachment; filename="epetcare-snapshot.json.gz"`)
		w.Header().Set(HeaderChecksum, sum)
		w.Header().Set(HeaderVersion, strconv.Itoa(d.Version))
		w.WriteHeader(http.StatusOK)

		// headers ya enviados: un error acá solo corta la respuesta
		_ = snapshot.Encode(w, d)
	}
}

func uploadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		body, closeFn, err := uploadBody(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer closeFn()

		res, err := svc.Upload(r.Context(), body, r.Header.Get(HeaderChecksum))
		if err != nil {
			switch {
			case errors.Is(err, snapshot.ErrInvalid):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrChecksumMismatch):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{
			Status:     "success",
			Checksum:   res.Checksum,
			Counts:     res.Counts,
			BackupPath: res.BackupPath,
		})
	}
}

// uploadBody devuelve el campo multipart "database" o el body crudo.
func uploadBody(r *http.Request) (io.Reader, func(), error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil, errors.New(`multipart field "database" missing`)
		}
		if err != nil {
			return nil, nil, err
		}
		if part.FormName() == uploadField {
			return part, func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
