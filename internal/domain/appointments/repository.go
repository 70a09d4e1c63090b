package appointments

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a Appointment) error
	Update(ctx context.Context, a Appointment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	// List ordena por date_time asc.
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
}

type ListFilter struct {
	PetID  string
	Status Status
	From   *time.Time
	To     *time.Time
}
