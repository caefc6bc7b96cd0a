package repository

import (
	"context"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// UserRepository puerto de lectura de usuarios (actores de las operaciones).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// UserAccountRepository alta y búsqueda de cuentas para autenticación.
// (nil, nil) si el email no existe; ErrDuplicate si ya está registrado.
type UserAccountRepository interface {
	UserRepository
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
}
