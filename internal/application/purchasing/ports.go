package purchasing

import (
	"context"
	"time"

	appinventory "github.com/jhoicas/compras-api/internal/application/inventory"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// StockRecorder registra las entradas de compra en la transacción de la recepción.
// Si retorna error, el caller debe hacer rollback.
type StockRecorder interface {
	RegisterPurchaseInTx(ctx context.Context, uow repository.UnitOfWork, p appinventory.PurchaseReceipt) (*entity.StockMovement, error)
}

// OrderDocument datos para la representación impresa de la orden que se envía al proveedor.
type OrderDocument struct {
	Order        *entity.Order
	Supplier     *entity.Supplier
	Buyer        *entity.User
	ProductNames map[string]string // productID -> nombre
	ProductSKUs  map[string]string
	IssuedAt     time.Time
}

// OrderDocumentRenderer genera el PDF de la orden.
type OrderDocumentRenderer interface {
	RenderOrder(ctx context.Context, doc OrderDocument) ([]byte, error)
}
