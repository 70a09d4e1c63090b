package snapshot

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sample() Data {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return Data{
		Version:   Version,
		CreatedAt: now,
		Owners:    []Owner{{ID: "o2", FullName: "Ana"}, {ID: "o1", FullName: "Luis"}},
		Pets: []Pet{
			{ID: "p1", OwnerID: "o1", Name: "Milo", Species: "dog", Sex: "male", CreatedAt: now, UpdatedAt: now},
			{ID: "p2", OwnerID: "o2", Name: "Luna", Species: "cat", Sex: "female", CreatedAt: now, UpdatedAt: now},
		},
		Appointments:   []Appointment{{ID: "a1", PetID: "p1", DateTime: now, Reason: "checkup", Status: "scheduled"}},
		MedicalRecords: []MedicalRecord{{ID: "m1", PetID: "p2", VisitDate: now, Condition: "otitis"}},
		Prescriptions:  []Prescription{{ID: "rx1", PetID: "p2", MedicationName: "Otomax", Dosage: "3 drops", DatePrescribed: now, IsActive: true}},
	}
}

func TestChecksum_IgnoresOrderAndCreatedAt(t *testing.T) {
	a := sample()
	b := sample()
	b.Owners[0], b.Owners[1] = b.Owners[1], b.Owners[0]
	b.CreatedAt = b.CreatedAt.Add(time.Hour)

	require.Equal(t, a.Checksum(), b.Checksum())

	b.Pets[0].Name = "Milo II"
	require.NotEqual(t, a.Checksum(), b.Checksum())
}

func TestChecksum_DoesNotReorderCaller(t *testing.T) {
	d := sample()
	_ = d.Checksum()
	require.Equal(t, "o2", d.Owners[0].ID)
}

func TestEncodeDecode_PreservesChecksum(t *testing.T) {
	d := sample()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, d))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	require.Equal(t, d.Checksum(), got.Checksum())
	require.Equal(t, 2, got.Counts()["pets"])
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a snapshot")))
	require.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate_DetectsBrokenReferences(t *testing.T) {
	d := sample()
	d.Appointments = append(d.Appointments, Appointment{ID: "a2", PetID: "ghost"})
	require.ErrorIs(t, d.Validate(), ErrInvalid)

	d = sample()
	d.Pets[0].OwnerID = "nobody"
	require.ErrorIs(t, d.Validate(), ErrInvalid)

	d = sample()
	d.Owners = append(d.Owners, Owner{ID: "o1"})
	require.ErrorIs(t, d.Validate(), ErrInvalid)

	d = sample()
	d.Version = 99
	require.ErrorIs(t, d.Validate(), ErrInvalid)
}
