package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/application/outbox"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/inventory"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// MovementInput datos de un movimiento del kardex.
type MovementInput struct {
	ProductID string
	Type      entity.MovementType
	Quantity  int64
	UserID    string
	Reference string
	OrderID   string
	Reason    string
	Notes     string
	UnitCost  *decimal.Decimal
}

// MovementRecorder registra movimientos del kardex con bloqueo de la fila del producto
// (SELECT FOR UPDATE) y actualiza el stock en la misma transacción.
type MovementRecorder struct {
	txRunner repository.TxRunner
	guard    inventory.StockGuard
	now      func() time.Time
	log      zerolog.Logger
}

// NewMovementRecorder construye el registrador. now puede ser nil (usa time.Now).
func NewMovementRecorder(txRunner repository.TxRunner, log zerolog.Logger, now func() time.Time) *MovementRecorder {
	if now == nil {
		now = time.Now
	}
	return &MovementRecorder{
		txRunner: txRunner,
		now:      now,
		log:      log.With().Str("component", "kardex").Logger(),
	}
}

// Register abre su propia transacción y registra el movimiento.
func (r *MovementRecorder) Register(ctx context.Context, in MovementInput) (*entity.StockMovement, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var mov *entity.StockMovement
	err := r.txRunner.Run(ctx, func(uow repository.UnitOfWork) error {
		var err error
		mov, err = r.RegisterInTx(ctx, uow, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mov, nil
}

// RegisterInTx registra el movimiento dentro de la transacción del caller.
// Nunca modifica movimientos existentes: solo agrega una fila y ajusta el stock.
func (r *MovementRecorder) RegisterInTx(ctx context.Context, uow repository.UnitOfWork, in MovementInput) (*entity.StockMovement, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	product, err := uow.Products().GetForUpdate(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("bloquear producto: %w", err)
	}
	if product == nil {
		return nil, domain.NewNotFoundError("producto", in.ProductID)
	}

	before := product.Stock
	after := in.Type.Apply(before, in.Quantity)
	if err := r.guard.Validate(product.ID, before, after, in.Quantity); err != nil {
		return nil, err
	}

	now := r.now()
	mov := &entity.StockMovement{
		ID:                uuid.New().String(),
		ProductID:         product.ID,
		Type:              in.Type,
		Quantity:          in.Quantity,
		StockBefore:       before,
		StockAfter:        after,
		UserID:            in.UserID,
		Date:              now,
		ExternalReference: in.Reference,
		OrderID:           in.OrderID,
		Reason:            in.Reason,
		Notes:             in.Notes,
	}
	cost := product.Cost
	if in.UnitCost != nil {
		unit := *in.UnitCost
		total := unit.Mul(decimal.NewFromInt(in.Quantity))
		mov.UnitCost = &unit
		mov.TotalCost = &total
		if in.Type.IsInbound() {
			cost = inventory.CostCalculator(before, product.Cost, in.Quantity, unit)
		}
	}

	if err := uow.Movements().Create(ctx, mov); err != nil {
		return nil, fmt.Errorf("guardar movimiento: %w", err)
	}
	if err := uow.Products().UpdateStock(ctx, product.ID, after, cost); err != nil {
		return nil, fmt.Errorf("actualizar stock: %w", err)
	}
	if err := outbox.Record(ctx, uow.Outbox(), outbox.AggregateProduct, product.ID, entity.EventMovementRecorded, movementEvent{
		MovementID:  mov.ID,
		ProductID:   product.ID,
		Type:        string(mov.Type),
		Quantity:    mov.Quantity,
		StockBefore: before,
		StockAfter:  after,
		OrderID:     mov.OrderID,
	}, now); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("product_id", product.ID).
		Str("type", string(in.Type)).
		Int64("quantity", in.Quantity).
		Int64("stock_before", before).
		Int64("stock_after", after).
		Msg("movimiento registrado")
	return mov, nil
}

// PurchaseReceipt datos de la entrada generada por la recepción de una orden.
type PurchaseReceipt struct {
	ProductID string
	Quantity  int64
	UnitCost  decimal.Decimal
	OrderID   string
	UserID    string
}

// RegisterPurchaseInTx registra una COMPRA con referencia COMPRA-<orderID> al costo de la línea.
func (r *MovementRecorder) RegisterPurchaseInTx(ctx context.Context, uow repository.UnitOfWork, p PurchaseReceipt) (*entity.StockMovement, error) {
	unitCost := p.UnitCost
	return r.RegisterInTx(ctx, uow, MovementInput{
		ProductID: p.ProductID,
		Type:      entity.MovementTypeCompra,
		Quantity:  p.Quantity,
		UserID:    p.UserID,
		Reference: "COMPRA-" + p.OrderID,
		OrderID:   p.OrderID,
		Reason:    "Compra a proveedor",
		UnitCost:  &unitCost,
	})
}

// RegisterAdjustment registra un ajuste: el signo de delta elige AJUSTE_POSITIVO o AJUSTE_NEGATIVO.
func (r *MovementRecorder) RegisterAdjustment(ctx context.Context, productID string, delta int64, userID, reason, notes string) (*entity.StockMovement, error) {
	if delta == 0 {
		return nil, domain.NewValidationError("delta", "el ajuste no puede ser cero")
	}
	in := MovementInput{
		ProductID: productID,
		Type:      entity.MovementTypeAjustePositivo,
		Quantity:  delta,
		UserID:    userID,
		Reference: "AJUSTE",
		Reason:    reason,
		Notes:     notes,
	}
	if delta < 0 {
		in.Type = entity.MovementTypeAjusteNegativo
		in.Quantity = -delta
	}
	return r.Register(ctx, in)
}

// RegisterSale registra una VENTA con referencia VENTA-<saleID>.
func (r *MovementRecorder) RegisterSale(ctx context.Context, productID string, qty int64, saleID, userID string) (*entity.StockMovement, error) {
	return r.Register(ctx, MovementInput{
		ProductID: productID,
		Type:      entity.MovementTypeVenta,
		Quantity:  qty,
		UserID:    userID,
		Reference: "VENTA-" + saleID,
		Reason:    "Venta",
	})
}

// RegisterInboundReturn registra una DEVOLUCION_ENTRADA (mercadería que vuelve al inventario).
func (r *MovementRecorder) RegisterInboundReturn(ctx context.Context, productID string, qty int64, reference, userID, reason string) (*entity.StockMovement, error) {
	return r.Register(ctx, MovementInput{
		ProductID: productID,
		Type:      entity.MovementTypeDevolucionEntrada,
		Quantity:  qty,
		UserID:    userID,
		Reference: reference,
		Reason:    reason,
	})
}

type movementEvent struct {
	MovementID  string `json:"movement_id"`
	ProductID   string `json:"product_id"`
	Type        string `json:"type"`
	Quantity    int64  `json:"quantity"`
	StockBefore int64  `json:"stock_before"`
	StockAfter  int64  `json:"stock_after"`
	OrderID     string `json:"order_id,omitempty"`
}

func validateInput(in MovementInput) error {
	if in.ProductID == "" {
		return domain.NewValidationError("producto_id", "es obligatorio")
	}
	if !in.Type.IsValid() {
		return domain.NewValidationError("tipo", "tipo de movimiento desconocido: %s", in.Type)
	}
	if in.Quantity <= 0 {
		return domain.NewValidationError("cantidad", "debe ser mayor a cero")
	}
	if in.UserID == "" {
		return domain.NewValidationError("usuario_id", "es obligatorio")
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return domain.NewValidationError("costo_unitario", "no puede ser negativo")
	}
	return nil
}
