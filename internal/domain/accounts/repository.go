package accounts

import "context"

type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	// GetByUsername compara sin distinguir mayúsculas.
	GetByUsername(ctx context.Context, username string) (User, error)
}
