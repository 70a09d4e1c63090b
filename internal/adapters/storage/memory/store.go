package memory

import (
	"context"

	"epetcare/internal/domain/appointments"
	"epetcare/internal/domain/owners"
	"epetcare/internal/domain/pets"
	"epetcare/internal/domain/records"
	"epetcare/internal/snapshot"
)

// Store agrupa los repos clínicos para exportarlos/reemplazarlos como snapshot.
// Cuentas, notificaciones y cambios offline no viajan en el snapshot.
type Store struct {
	owners        *ownerRepo
	pets          *petRepo
	appointments  *appointmentRepo
	records       *recordRepo
	prescriptions *prescriptionRepo
}

func NewStore() *Store {
	return &Store{
		owners:        newOwnerRepo(),
		pets:          newPetRepo(),
		appointments:  newAppointmentRepo(),
		records:       newRecordRepo(),
		prescriptions: newPrescriptionRepo(),
	}
}

func (s *Store) Owners() owners.Repository                     { return s.owners }
func (s *Store) Pets() pets.Repository                         { return s.pets }
func (s *Store) Appointments() appointments.Repository         { return s.appointments }
func (s *Store) Records() records.RecordRepository             { return s.records }
func (s *Store) Prescriptions() records.PrescriptionRepository { return s.prescriptions }
func (s *Store) Kind() string                                  { return "memory" }

// lock toma todos los locks siempre en el mismo orden.
func (s *Store) lock() func() {
	s.owners.mu.Lock()
	s.pets.mu.Lock()
	s.appointments.mu.Lock()
	s.records.mu.Lock()
	s.prescriptions.mu.Lock()
	return func() {
		s.prescriptions.mu.Unlock()
		s.records.mu.Unlock()
		s.appointments.mu.Unlock()
		s.pets.mu.Unlock()
		s.owners.mu.Unlock()
	}
}

func (s *Store) rlock() func() {
	s.owners.mu.RLock()
	s.pets.mu.RLock()
	s.appointments.mu.RLock()
	s.records.mu.RLock()
	s.prescriptions.mu.RLock()
	return func() {
		s.prescriptions.mu.RUnlock()
		s.records.mu.RUnlock()
		s.appointments.mu.RUnlock()
		s.pets.mu.RUnlock()
		s.owners.mu.RUnlock()
	}
}

func (s *Store) Export(ctx context.Context) (snapshot.Data, error) {
	unlock := s.rlock()
	defer unlock()

	d := snapshot.Data{Version: snapshot.Version}
	for _, o := range s.owners.byID {
		d.Owners = append(d.Owners, snapshot.Owner{
			ID: o.ID, UserID: o.UserID, FullName: o.FullName, Email: o.Email,
			Phone: o.Phone, Address: o.Address, CreatedAt: o.CreatedAt,
		})
	}
	for _, p := range s.pets.byID {
		d.Pets = append(d.Pets, snapshot.Pet{
			ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Species: string(p.Species),
			Breed: p.Breed, Sex: string(p.Sex), BirthDate: p.BirthDate, WeightKg: p.WeightKg,
			Notes: p.Notes, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		})
	}
	for _, a := range s.appointments.byID {
		d.Appointments = append(d.Appointments, snapshot.Appointment{
			ID: a.ID, PetID: a.PetID, VetUserID: a.VetUserID, DateTime: a.DateTime,
			Reason: a.Reason, Notes: a.Notes, Status: string(a.Status),
			CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
		})
	}
	for _, m := range s.records.byID {
		d.MedicalRecords = append(d.MedicalRecords, snapshot.MedicalRecord{
			ID: m.ID, PetID: m.PetID, VisitDate: m.VisitDate,
			Condition: m.Condition, Treatment: m.Treatment, VetNotes: m.VetNotes,
		})
	}
	for _, p := range s.prescriptions.byID {
		d.Prescriptions = append(d.Prescriptions, snapshot.Prescription{
			ID: p.ID, PetID: p.PetID, MedicationName: p.MedicationName, Dosage: p.Dosage,
			Instructions: p.Instructions, DatePrescribed: p.DatePrescribed,
			DurationDays: p.DurationDays, IsActive: p.IsActive,
		})
	}

	d.Normalize()
	return d, nil
}

// Replace arma los mapas nuevos fuera del lock y los intercambia de una vez.
func (s *Store) Replace(ctx context.Context, d snapshot.Data) error {
	if err := d.Validate(); err != nil {
		return err
	}

	ow := make(map[string]owners.Owner, len(d.Owners))
	for _, o := range d.Owners {
		ow[o.ID] = owners.Owner{
			ID: o.ID, UserID: o.UserID, FullName: o.FullName, Email: o.Email,
			Phone: o.Phone, Address: o.Address, CreatedAt: o.CreatedAt,
		}
	}
	pt := make(map[string]pets.Pet, len(d.Pets))
	for _, p := range d.Pets {
		pt[p.ID] = pets.Pet{
			ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Species: pets.Species(p.Species),
			Breed: p.Breed, Sex: pets.Sex(p.Sex), BirthDate: p.BirthDate, WeightKg: p.WeightKg,
			Notes: p.Notes, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		}
	}
	ap := make(map[string]appointments.Appointment, len(d.Appointments))
	for _, a := range d.Appointments {
		ap[a.ID] = appointments.Appointment{
			ID: a.ID, PetID: a.PetID, VetUserID: a.VetUserID, DateTime: a.DateTime,
			Reason: a.Reason, Notes: a.Notes, Status: appointments.Status(a.Status),
			CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
		}
	}
	mr := make(map[string]records.MedicalRecord, len(d.MedicalRecords))
	for _, m := range d.MedicalRecords {
		mr[m.ID] = records.MedicalRecord{
			ID: m.ID, PetID: m.PetID, VisitDate: m.VisitDate,
			Condition: m.Condition, Treatment: m.Treatment, VetNotes: m.VetNotes,
		}
	}
	rx := make(map[string]records.Prescription, len(d.Prescriptions))
	for _, p := range d.Prescriptions {
		rx[p.ID] = records.Prescription{
			ID: p.ID, PetID: p.PetID, MedicationName: p.MedicationName, Dosage: p.Dosage,
			Instructions: p.Instructions, DatePrescribed: p.DatePrescribed,
			DurationDays: p.DurationDays, IsActive: p.IsActive,
		}
	}

	unlock := s.lock()
	defer unlock()

	s.owners.byID = ow
	s.pets.byID = pt
	s.appointments.byID = ap
	s.records.byID = mr
	s.prescriptions.byID = rx
	return nil
}
