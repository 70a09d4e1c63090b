package accounts

import (
	"time"

	"epetcare/internal/ports/auth"
)

// User es una cuenta que puede autenticarse contra la API.
type User struct {
	ID           string
	Username     string // único, case-insensitive
	PasswordHash string
	Role         auth.Role
	FullName     string
	CreatedAt    time.Time
}

func (u User) Claims() auth.Claims {
	return auth.Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}
