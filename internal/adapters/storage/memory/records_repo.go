package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"epetcare/internal/domain/records"
)

type recordRepo struct {
	mu   sync.RWMutex
	byID map[string]records.MedicalRecord
}

func NewRecordRepo() records.RecordRepository {
	return newRecordRepo()
}

func newRecordRepo() *recordRepo {
	return &recordRepo{byID: make(map[string]records.MedicalRecord)}
}

func (r *recordRepo) Create(ctx context.Context, m records.MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *recordRepo) Update(ctx context.Context, m records.MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; !exists {
		return records.ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *recordRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return records.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, id string) (records.MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return records.MedicalRecord{}, records.ErrNotFound
	}
	return m, nil
}

func (r *recordRepo) List(ctx context.Context, f records.RecordFilter) ([]records.MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(f.Query)
	out := make([]records.MedicalRecord, 0)
	for _, m := range r.byID {
		if f.PetID != "" && m.PetID != f.PetID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Condition), q) && !strings.Contains(strings.ToLower(m.Treatment), q) {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].VisitDate.After(out[j].VisitDate)
	})
	return out, nil
}

type prescriptionRepo struct {
	mu   sync.RWMutex
	byID map[string]records.Prescription
}

func NewPrescriptionRepo() records.PrescriptionRepository {
	return newPrescriptionRepo()
}

func newPrescriptionRepo() *prescriptionRepo {
	return &prescriptionRepo{byID: make(map[string]records.Prescription)}
}

func (r *prescriptionRepo) Create(ctx context.Context, p records.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("prescription id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("prescription already exists")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *prescriptionRepo) Update(ctx context.Context, p records.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return records.ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *prescriptionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return records.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *prescriptionRepo) GetByID(ctx context.Context, id string) (records.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return records.Prescription{}, records.ErrNotFound
	}
	return p, nil
}

func (r *prescriptionRepo) List(ctx context.Context, f records.PrescriptionFilter) ([]records.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]records.Prescription, 0)
	for _, p := range r.byID {
		if f.PetID != "" && p.PetID != f.PetID {
			continue
		}
		if f.Active != nil && p.IsActive != *f.Active {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DatePrescribed.After(out[j].DatePrescribed)
	})
	return out, nil
}
