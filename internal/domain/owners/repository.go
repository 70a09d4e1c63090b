package owners

import "context"

type Repository interface {
	Create(ctx context.Context, o Owner) error
	Update(ctx context.Context, o Owner) error
	GetByID(ctx context.Context, id string) (Owner, error)
	// List filtra por nombre, email o teléfono cuando query no es vacío.
	List(ctx context.Context, query string) ([]Owner, error)
}
