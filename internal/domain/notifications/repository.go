package notifications

import "context"

type Repository interface {
	Create(ctx context.Context, n Notification) error
	// ListByUser devuelve más recientes primero.
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	// MarkRead devuelve ErrNotFound si no existe o pertenece a otro usuario.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}
