package repository

import (
	"context"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// SupplierRepository puerto de lectura de proveedores.
type SupplierRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Supplier, error)
}

// SupplierCatalogRepository agrega el alta de proveedores.
type SupplierCatalogRepository interface {
	SupplierRepository
	Create(ctx context.Context, s *entity.Supplier) error
}
