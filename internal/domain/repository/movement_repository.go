package repository

import (
	"context"
	"time"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// MovementCriteria búsqueda del kardex entre productos. Los campos vacíos no filtran.
type MovementCriteria struct {
	ProductID string
	Type      entity.MovementType
	UserID    string
	Reference string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// MovementTypeStats cantidad de movimientos y unidades movidas de un tipo.
type MovementTypeStats struct {
	Count int
	Units int64
}

// MovementRepository es el kardex: solo inserción y consulta.
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id string) (*entity.StockMovement, error)
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error)
	ListByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error)
	// Totals suma cantidades de entradas y salidas del producto en el rango (nil = sin límite).
	Totals(ctx context.Context, productID string, from, to *time.Time) (inbound, outbound int64, err error)
	// Search devuelve la página pedida, más recientes primero, y el total sin paginar.
	Search(ctx context.Context, c MovementCriteria) ([]*entity.StockMovement, int, error)
	// Count cuenta los movimientos que cumplen c; ignora Limit y Offset.
	Count(ctx context.Context, c MovementCriteria) (int, error)
	StatsByType(ctx context.Context, from, to *time.Time) (map[entity.MovementType]MovementTypeStats, error)
}
