package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/inventory"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// LedgerQueries consultas de solo lectura sobre el kardex y el stock.
type LedgerQueries struct {
	txRunner    repository.TxRunner
	productRepo repository.ProductRepository
	movRepo     repository.MovementRepository
}

// NewLedgerQueries construye las consultas del kardex.
func NewLedgerQueries(txRunner repository.TxRunner, productRepo repository.ProductRepository, movRepo repository.MovementRepository) *LedgerQueries {
	return &LedgerQueries{txRunner: txRunner, productRepo: productRepo, movRepo: movRepo}
}

// ProductMovements historial del producto, más recientes primero.
func (q *LedgerQueries) ProductMovements(ctx context.Context, productID string, f dto.MovementFilter) ([]dto.MovementResponse, error) {
	if _, err := q.product(ctx, productID); err != nil {
		return nil, err
	}
	f.DefaultPage()
	list, err := q.movRepo.ListByProduct(ctx, productID, f.From, f.To, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, dto.ToMovementResponse(m))
	}
	return out, nil
}

// LastMovements los n movimientos más recientes del producto.
func (q *LedgerQueries) LastMovements(ctx context.Context, productID string, n int) ([]dto.MovementResponse, error) {
	return q.ProductMovements(ctx, productID, dto.MovementFilter{PageRequest: dto.PageRequest{Limit: n}})
}

// Movement devuelve un movimiento por ID.
func (q *LedgerQueries) Movement(ctx context.Context, id string) (*dto.MovementResponse, error) {
	m, err := q.movRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.NewNotFoundError("movimiento", id)
	}
	out := dto.ToMovementResponse(m)
	return &out, nil
}

// MovementsByReference movimientos con una referencia externa (ej. COMPRA-<orderID>).
func (q *LedgerQueries) MovementsByReference(ctx context.Context, reference string) ([]dto.MovementResponse, error) {
	list, err := q.movRepo.ListByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, dto.ToMovementResponse(m))
	}
	return out, nil
}

// CurrentStock stock actual del producto.
func (q *LedgerQueries) CurrentStock(ctx context.Context, productID string) (*dto.StockResponse, error) {
	p, err := q.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &dto.StockResponse{ProductID: p.ID, SKU: p.SKU, Stock: p.Stock, MinStock: p.MinStock, Cost: p.Cost}, nil
}

// Totals suma entradas y salidas del producto en el rango (nil = sin límite).
func (q *LedgerQueries) Totals(ctx context.Context, productID string, from, to *time.Time) (*dto.MovementTotalsResponse, error) {
	if _, err := q.product(ctx, productID); err != nil {
		return nil, err
	}
	in, out, err := q.movRepo.Totals(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}
	return &dto.MovementTotalsResponse{ProductID: productID, Inbound: in, Outbound: out}, nil
}

// Reconcile verifica stock == inicial + Σentradas − Σsalidas.
// Bloquea el producto para leer stock y kardex en el mismo instante.
func (q *LedgerQueries) Reconcile(ctx context.Context, productID string) (*inventory.Reconciliation, error) {
	var rec inventory.Reconciliation
	err := q.txRunner.Run(ctx, func(uow repository.UnitOfWork) error {
		p, err := uow.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.NewNotFoundError("producto", productID)
		}
		in, out, err := uow.Movements().Totals(ctx, productID, nil, nil)
		if err != nil {
			return fmt.Errorf("totales del kardex: %w", err)
		}
		rec = inventory.Reconcile(p, in, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SearchMovements busca en el kardex de todos los productos por tipo, producto,
// usuario, referencia y fechas. Más recientes primero.
func (q *LedgerQueries) SearchMovements(ctx context.Context, in dto.MovementSearchRequest) (*dto.MovementListResponse, error) {
	in.DefaultPage()
	c, err := movementCriteria(in)
	if err != nil {
		return nil, err
	}
	list, total, err := q.movRepo.Search(ctx, c)
	if err != nil {
		return nil, err
	}
	out := &dto.MovementListResponse{
		Items: make([]dto.MovementResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset, Total: total},
	}
	for _, m := range list {
		out.Items = append(out.Items, dto.ToMovementResponse(m))
	}
	return out, nil
}

// CountMovements cuenta los movimientos que cumplen la búsqueda; sin criterios cuenta todo el kardex.
func (q *LedgerQueries) CountMovements(ctx context.Context, in dto.MovementSearchRequest) (int, error) {
	c, err := movementCriteria(in)
	if err != nil {
		return 0, err
	}
	return q.movRepo.Count(ctx, c)
}

// Statistics existencias del catálogo y movimientos por tipo en [from, to] (nil = sin límite).
func (q *LedgerQueries) Statistics(ctx context.Context, from, to *time.Time) (*dto.InventoryStatsResponse, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, domain.NewValidationError("hasta", "debe ser posterior a desde")
	}
	sum, err := q.productRepo.Summary(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := q.movRepo.StatsByType(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := &dto.InventoryStatsResponse{
		From:             from,
		To:               to,
		TotalProducts:    sum.Products,
		ActiveProducts:   sum.Active,
		InactiveProducts: sum.Products - sum.Active,
		TotalUnits:       sum.Units,
		InventoryValue:   purchasing.Round2(sum.Value),
		BelowMinimum:     sum.BelowMinimum,
		OutOfStock:       sum.OutOfStock,
		MovementsByType:  make(map[string]dto.MovementTypeStatsResponse, len(byType)),
	}
	for typ, st := range byType {
		out.MovementsByType[string(typ)] = dto.MovementTypeStatsResponse{Count: st.Count, Units: st.Units}
		out.TotalMovements += st.Count
		if typ.IsInbound() {
			out.InboundUnits += st.Units
		} else {
			out.OutboundUnits += st.Units
		}
	}
	return out, nil
}

// CheckAvailable indica si hay al menos qty unidades disponibles.
func (q *LedgerQueries) CheckAvailable(ctx context.Context, productID string, qty int64) (bool, error) {
	p, err := q.product(ctx, productID)
	if err != nil {
		return false, err
	}
	return p.Stock >= qty, nil
}

func movementCriteria(in dto.MovementSearchRequest) (repository.MovementCriteria, error) {
	typ := entity.MovementType(in.Type)
	if typ != "" && !typ.IsValid() {
		return repository.MovementCriteria{}, domain.NewValidationError("tipo", "tipo de movimiento desconocido: %s", in.Type)
	}
	if in.From != nil && in.To != nil && in.To.Before(*in.From) {
		return repository.MovementCriteria{}, domain.NewValidationError("hasta", "debe ser posterior a desde")
	}
	return repository.MovementCriteria{
		ProductID: in.ProductID,
		Type:      typ,
		UserID:    in.UserID,
		Reference: in.Reference,
		From:      in.From,
		To:        in.To,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}, nil
}

func (q *LedgerQueries) product(ctx context.Context, id string) (*entity.Product, error) {
	p, err := q.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NewNotFoundError("producto", id)
	}
	return p, nil
}
