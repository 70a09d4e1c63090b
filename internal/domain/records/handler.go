package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/medical-records", func(mr chi.Router) {
		mr.Get("/", listRecordsHandler(svc))
		mr.Post("/", createRecordHandler(svc))
		mr.Get("/{recordID}", getRecordHandler(svc))
		mr.Patch("/{recordID}", updateRecordHandler(svc))
		mr.Put("/{recordID}", updateRecordHandler(svc))
		mr.Delete("/{recordID}", deleteRecordHandler(svc))
	})

	r.Route("/prescriptions", func(pr chi.Router) {
		pr.Get("/", listPrescriptionsHandler(svc))
		pr.Post("/", createPrescriptionHandler(svc))
		pr.Get("/{prescriptionID}", getPrescriptionHandler(svc))
		pr.Patch("/{prescriptionID}", updatePrescriptionHandler(svc))
		pr.Put("/{prescriptionID}", updatePrescriptionHandler(svc))
		pr.Delete("/{prescriptionID}", deletePrescriptionHandler(svc))
	})
}

type recordResponse struct {
	ID        string `json:"id"`
	PetID     string `json:"pet_id"`
	VisitDate Date   `json:"visit_date"`
	Condition string `json:"condition"`
	Treatment string `json:"treatment"`
	VetNotes  string `json:"vet_notes"`
}

type prescriptionResponse struct {
	ID             string `json:"id"`
	PetID          string `json:"pet_id"`
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
	DatePrescribed Date   `json:"date_prescribed"`
	DurationDays   *int   `json:"duration_days,omitempty"`
	IsActive       bool   `json:"is_active"`
}

func listRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := svc.ListRecords(r.Context(), RecordFilter{PetID: q.Get("pet_id"), Query: q.Get("q")})
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]recordResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toRecordResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		m, err := svc.CreateRecord(r.Context(), req.input())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRecordResponse(m))
	}
}

func getRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.GetRecord(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(m))
	}
}

func updateRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordPayload
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		m, err := svc.UpdateRecord(r.Context(), chi.URLParam(r, "recordID"), req.patch())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(m))
	}
}

func deleteRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteRecord(r.Context(), chi.URLParam(r, "recordID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listPrescriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := PrescriptionFilter{PetID: q.Get("pet_id")}
		if v := q.Get("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "active must be true|false", http.StatusBadRequest)
				return
			}
			filter.Active = &b
		}

		items, err := svc.ListPrescriptions(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]prescriptionResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPrescriptionResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prescriptionPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		p, err := svc.CreatePrescription(r.Context(), req.input())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPrescriptionResponse(p))
	}
}

func getPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.GetPrescription(r.Context(), chi.URLParam(r, "prescriptionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

func updatePrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prescriptionPayload
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		p, err := svc.UpdatePrescription(r.Context(), chi.URLParam(r, "prescriptionID"), req.patch())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

func deletePrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeletePrescription(r.Context(), chi.URLParam(r, "prescriptionID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPetUnknown):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRecordResponse(m MedicalRecord) recordResponse {
	return recordResponse{
		ID:        m.ID,
		PetID:     m.PetID,
		VisitDate: Date{m.VisitDate},
		Condition: m.Condition,
		Treatment: m.Treatment,
		VetNotes:  m.VetNotes,
	}
}

func toPrescriptionResponse(p Prescription) prescriptionResponse {
	return prescriptionResponse{
		ID:             p.ID,
		PetID:          p.PetID,
		MedicationName: p.MedicationName,
		Dosage:         p.Dosage,
		Instructions:   p.Instructions,
		DatePrescribed: Date{p.DatePrescribed},
		DurationDays:   p.DurationDays,
		IsActive:       p.IsActive,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
