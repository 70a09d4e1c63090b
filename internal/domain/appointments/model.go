package appointments

import "time"

// Status del turno.
// @Enum scheduled, completed, cancelled
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Appointment struct {
	ID        string
	PetID     string
	VetUserID string // quien lo agendó

	DateTime time.Time
	Reason   string
	Notes    string
	Status   Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
