package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// Stock y costo solo se ajustan desde el kardex.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetForUpdate bloquea la fila del producto (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	UpdateStock(ctx context.Context, productID string, stock int64, cost decimal.Decimal) error
	ListBelowMinimum(ctx context.Context, limit int) ([]*entity.Product, error)
	Summary(ctx context.Context) (ProductSummary, error)
}

// ProductSummary existencias agregadas del catálogo.
type ProductSummary struct {
	Products     int
	Active       int
	Units        int64           // unidades en stock de productos activos
	Value        decimal.Decimal // Σ stock × costo de productos activos
	BelowMinimum int             // activos con stock bajo el mínimo
	OutOfStock   int             // activos con stock cero
}

// ProductCatalogRepository agrega el alta de productos. ErrDuplicate si el SKU existe.
type ProductCatalogRepository interface {
	ProductRepository
	Create(ctx context.Context, p *entity.Product) error
}
