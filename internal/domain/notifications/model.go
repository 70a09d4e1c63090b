package notifications

import "time"

// Notification es un aviso dirigido a un veterinario.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
