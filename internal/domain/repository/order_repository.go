package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// OrderFilter criterios de búsqueda de órdenes. Los campos vacíos no filtran.
type OrderFilter struct {
	SupplierID string
	BuyerID    string
	State      entity.OrderState
	Number     string
	From       *time.Time // fecha de orden desde
	To         *time.Time
	Limit      int
	Offset     int
}

// OrderStateStats agrupa cantidad y monto de órdenes en un estado.
type OrderStateStats struct {
	Count int
	Total decimal.Decimal
}

// DeliveryStats cumplimiento de entregas de las órdenes emitidas en un período.
type DeliveryStats struct {
	Orders    int // emitidas en el período
	Delivered int // con fecha de entrega real
	OnTime    int // entregadas en o antes de la fecha estimada
	// LeadTimeDays suma de días entre fecha de orden y entrega real de las entregadas.
	LeadTimeDays decimal.Decimal
}

// OrderRepository define el puerto de persistencia de órdenes de compra con sus líneas.
// GetByID, GetByNumber y GetForUpdate devuelven (nil, nil) si no existe.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetByNumber(ctx context.Context, number string) (*entity.Order, error)
	// GetForUpdate bloquea la orden hasta el fin de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	// Update persiste cabecera y líneas si order.Version coincide con la versión
	// almacenada; en caso contrario devuelve domain.ErrConcurrentModification.
	// Incrementa order.Version.
	Update(ctx context.Context, order *entity.Order) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter OrderFilter) ([]*entity.Order, int, error)
	// ListDue lista órdenes en los estados dados con fecha de entrega estimada en [from, to].
	ListDue(ctx context.Context, states []entity.OrderState, from, to time.Time) ([]*entity.Order, error)
	StatsByState(ctx context.Context, from, to time.Time) (map[entity.OrderState]OrderStateStats, error)
	DeliveryStats(ctx context.Context, from, to time.Time) (DeliveryStats, error)
}
