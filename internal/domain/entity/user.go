package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin     = "admin"
	RoleComprador = "comprador"
	RoleAprobador = "aprobador"
	RoleBodeguero = "bodeguero"
)

// Estados de User.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// User es el actor de las operaciones (comprador, aprobador, receptor).
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt; vacío para usuarios sin acceso a la API
	Name         string
	Role         string // admin, comprador, aprobador, bodeguero
	Status       string // active, inactive, suspended
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidRole indica si role es uno de los roles conocidos.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleComprador, RoleAprobador, RoleBodeguero:
		return true
	}
	return false
}

// IsActive indica si el usuario puede operar.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
