package auth

// Role del usuario autenticado.
type Role string

const (
	RoleVet   Role = "vet"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID   string
	Username string
	Role     Role
}

// IsVet indica acceso al Vet Portal (admin incluido).
func (c Claims) IsVet() bool {
	return c.Role == RoleVet || c.Role == RoleAdmin
}
