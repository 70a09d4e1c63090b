package owners

import "time"

// Owner es el tutor responsable de una o más mascotas.
type Owner struct {
	ID     string
	UserID string // cuenta asociada, opcional

	FullName string
	Email    string
	Phone    string
	Address  string

	CreatedAt time.Time
}
