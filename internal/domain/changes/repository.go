package changes

import "context"

type Repository interface {
	// Create devuelve ErrDuplicate si ya existe un cambio con el mismo
	// (CreatedBy, ClientID) y ClientID no es vacío.
	Create(ctx context.Context, c OfflineChange) error
	Update(ctx context.Context, c OfflineChange) error
	GetByID(ctx context.Context, id string) (OfflineChange, error)
	GetByClientID(ctx context.Context, createdBy, clientID string) (OfflineChange, error)
	// List devuelve más recientes primero.
	List(ctx context.Context, filter ListFilter) ([]OfflineChange, error)
}

type ListFilter struct {
	CreatedBy string
	Status    Status
	Limit     int
}
