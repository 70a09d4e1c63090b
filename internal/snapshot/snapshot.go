// Package snapshot define el formato que viaja entre el servidor y el
// cliente de sync: todas las tablas clínicas en un documento JSON
// comprimido con gzip, con checksum y validación de integridad.
package snapshot

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Version del esquema del snapshot. Se incrementa ante cambios incompatibles.
const Version = 1

// MaxDecodedSize limita el JSON descomprimido (protege contra gzip bombs).
const MaxDecodedSize = 256 << 20

var ErrInvalid = errors.New("invalid snapshot")

// Tables en orden de dependencia (padres primero).
var Tables = []string{"owners", "pets", "appointments", "medical_records", "prescriptions"}

type Owner struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type Pet struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Species   string     `json:"species"`
	Breed     string     `json:"breed"`
	Sex       string     `json:"sex"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	WeightKg  *float64   `json:"weight_kg,omitempty"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Appointment struct {
	ID        string    `json:"id"`
	PetID     string    `json:"pet_id"`
	VetUserID string    `json:"vet_user_id,omitempty"`
	DateTime  time.Time `json:"date_time"`
	Reason    string    `json:"reason"`
	Notes     string    `json:"notes"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MedicalRecord struct {
	ID        string    `json:"id"`
	PetID     string    `json:"pet_id"`
	VisitDate time.Time `json:"visit_date"`
	Condition string    `json:"condition"`
	Treatment string    `json:"treatment"`
	VetNotes  string    `json:"vet_notes"`
}

type Prescription struct {
	ID             string    `json:"id"`
	PetID          string    `json:"pet_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	Instructions   string    `json:"instructions"`
	DatePrescribed time.Time `json:"date_prescribed"`
	DurationDays   *int      `json:"duration_days,omitempty"`
	IsActive       bool      `json:"is_active"`
}

// Data es el contenido completo de un snapshot.
type Data struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Owners         []Owner         `json:"owners"`
	Pets           []Pet           `json:"pets"`
	Appointments   []Appointment   `json:"appointments"`
	MedicalRecords []MedicalRecord `json:"medical_records"`
	Prescriptions  []Prescription  `json:"prescriptions"`
}

// tables es la parte que entra al checksum (sin metadata).
type tables struct {
	Owners         []Owner         `json:"owners"`
	Pets           []Pet           `json:"pets"`
	Appointments   []Appointment   `json:"appointments"`
	MedicalRecords []MedicalRecord `json:"medical_records"`
	Prescriptions  []Prescription  `json:"prescriptions"`
}

// Normalize ordena las tablas por id y pasa los tiempos a UTC.
// Dos snapshots con el mismo contenido quedan idénticos byte a byte.
func (d *Data) Normalize() {
	d.Owners = slices.Clone(d.Owners)
	d.Pets = slices.Clone(d.Pets)
	d.Appointments = slices.Clone(d.Appointments)
	d.MedicalRecords = slices.Clone(d.MedicalRecords)
	d.Prescriptions = slices.Clone(d.Prescriptions)

	for i := range d.Owners {
		d.Owners[i].CreatedAt = d.Owners[i].CreatedAt.UTC()
	}
	for i := range d.Pets {
		p := &d.Pets[i]
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		if p.BirthDate != nil {
			bd := p.BirthDate.UTC()
			p.BirthDate = &bd
		}
	}
	for i := range d.Appointments {
		a := &d.Appointments[i]
		a.DateTime = a.DateTime.UTC()
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = a.UpdatedAt.UTC()
	}
	for i := range d.MedicalRecords {
		d.MedicalRecords[i].VisitDate = d.MedicalRecords[i].VisitDate.UTC()
	}
	for i := range d.Prescriptions {
		d.Prescriptions[i].DatePrescribed = d.Prescriptions[i].DatePrescribed.UTC()
	}

	slices.SortFunc(d.Owners, func(a, b Owner) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(d.Pets, func(a, b Pet) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(d.Appointments, func(a, b Appointment) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(d.MedicalRecords, func(a, b MedicalRecord) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(d.Prescriptions, func(a, b Prescription) int { return cmp.Compare(a.ID, b.ID) })
}

// Checksum es SHA-256 (hex) sobre el JSON canónico de las tablas.
// No depende del orden de entrada ni de CreatedAt del snapshot.
func (d Data) Checksum() string {
	c := d
	c.Normalize()

	b, _ := json.Marshal(tables{
		Owners:         nonNil(c.Owners),
		Pets:           nonNil(c.Pets),
		Appointments:   nonNil(c.Appointments),
		MedicalRecords: nonNil(c.MedicalRecords),
		Prescriptions:  nonNil(c.Prescriptions),
	})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Counts devuelve filas por tabla.
func (d Data) Counts() map[string]int {
	return map[string]int{
		"owners":          len(d.Owners),
		"pets":            len(d.Pets),
		"appointments":    len(d.Appointments),
		"medical_records": len(d.MedicalRecords),
		"prescriptions":   len(d.Prescriptions),
	}
}

// Validate chequea versión, ids únicos y que todas las FKs resuelvan.
func (d Data) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("%w: unsupported version %d (want %d)", ErrInvalid, d.Version, Version)
	}

	owners := map[string]struct{}{}
	for _, o := range d.Owners {
		if o.ID == "" {
			return fmt.Errorf("%w: owner without id", ErrInvalid)
		}
		if _, dup := owners[o.ID]; dup {
			return fmt.Errorf("%w: duplicate owner id %s", ErrInvalid, o.ID)
		}
		owners[o.ID] = struct{}{}
	}

	pets := map[string]struct{}{}
	for _, p := range d.Pets {
		if p.ID == "" {
			return fmt.Errorf("%w: pet without id", ErrInvalid)
		}
		if _, dup := pets[p.ID]; dup {
			return fmt.Errorf("%w: duplicate pet id %s", ErrInvalid, p.ID)
		}
		if _, ok := owners[p.OwnerID]; !ok {
			return fmt.Errorf("%w: pet %s references unknown owner %s", ErrInvalid, p.ID, p.OwnerID)
		}
		pets[p.ID] = struct{}{}
	}

	if err := checkPetRefs("appointment", d.Appointments, pets, func(a Appointment) (string, string) { return a.ID, a.PetID }); err != nil {
		return err
	}
	if err := checkPetRefs("medical record", d.MedicalRecords, pets, func(m MedicalRecord) (string, string) { return m.ID, m.PetID }); err != nil {
		return err
	}
	return checkPetRefs("prescription", d.Prescriptions, pets, func(p Prescription) (string, string) { return p.ID, p.PetID })
}

func checkPetRefs[T any](kind string, items []T, pets map[string]struct{}, key func(T) (string, string)) error {
	seen := map[string]struct{}{}
	for _, it := range items {
		id, petID := key(it)
		if id == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalid, kind)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate %s id %s", ErrInvalid, kind, id)
		}
		seen[id] = struct{}{}
		if _, ok := pets[petID]; !ok {
			return fmt.Errorf("%w: %s %s references unknown pet %s", ErrInvalid, kind, id, petID)
		}
	}
	return nil
}

// Encode escribe d como JSON comprimido con gzip.
func Encode(w io.Writer, d Data) error {
	d.Normalize()

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(d); err != nil {
		_ = zw.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("snapshot: gzip close: %w", err)
	}
	return nil
}

// Decode lee un snapshot gzip. No valida; eso es Validate().
func Decode(r io.Reader) (Data, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return Data{}, fmt.Errorf("%w: not gzip: %v", ErrInvalid, err)
	}
	defer zr.Close()

	var d Data
	dec := json.NewDecoder(io.LimitReader(zr, MaxDecodedSize))
	if err := dec.Decode(&d); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return d, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
