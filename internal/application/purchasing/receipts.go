package purchasing

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/compras-api/internal/application/dto"
	appinventory "github.com/jhoicas/compras-api/internal/application/inventory"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

type receipt struct {
	line *entity.OrderLine
	qty  int64
}

// ReceiveAll recibe todo lo pendiente de cada línea, registra una COMPRA por línea
// y cierra la orden (RECIBIDA_COMPLETA -> COMPLETADA).
func (m *OrderManager) ReceiveAll(ctx context.Context, id, receiverID string) (*dto.OrderResponse, error) {
	if _, err := m.activeUser(ctx, receiverID, "receptor_id"); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, "recibir_completa", func(uow repository.UnitOfWork, o *entity.Order) ([]string, error) {
		if _, err := purchasing.Next(o.State, purchasing.ActionReceive); err != nil {
			return nil, err
		}
		var receipts []receipt
		for i := range o.Lines {
			if pending := o.Lines[i].Pending(); pending > 0 {
				receipts = append(receipts, receipt{line: &o.Lines[i], qty: pending})
			}
		}
		return m.applyReceipts(ctx, uow, o, receiverID, receipts)
	})
}

// ReceivePartial recibe las cantidades indicadas por línea (lineID -> cantidad).
// Cantidades <= 0 se ignoran; superar lo ordenado falla sin registrar nada.
func (m *OrderManager) ReceivePartial(ctx context.Context, id, receiverID string, quantities map[string]int64) (*dto.OrderResponse, error) {
	if _, err := m.activeUser(ctx, receiverID, "receptor_id"); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, "recibir_parcial", func(uow repository.UnitOfWork, o *entity.Order) ([]string, error) {
		if _, err := purchasing.Next(o.State, purchasing.ActionReceive); err != nil {
			return nil, err
		}
		var receipts []receipt
		for lineID, qty := range quantities {
			line, ok := o.Line(lineID)
			if !ok {
				return nil, domain.NewNotFoundError("línea de orden", lineID)
			}
			if qty > 0 {
				receipts = append(receipts, receipt{line: line, qty: qty})
			}
		}
		if len(receipts) == 0 {
			return nil, domain.NewValidationError("cantidades", "debe indicar al menos una cantidad mayor a cero")
		}
		sort.Slice(receipts, func(i, j int) bool { return receipts[i].line.LineNumber < receipts[j].line.LineNumber })
		return m.applyReceipts(ctx, uow, o, receiverID, receipts)
	})
}

// applyReceipts bloquea los productos, actualiza lo recibido por línea, registra las
// entradas en el kardex y decide el nuevo estado.
func (m *OrderManager) applyReceipts(ctx context.Context, uow repository.UnitOfWork, o *entity.Order, receiverID string, receipts []receipt) ([]string, error) {
	productIDs := make([]string, 0, len(receipts))
	for _, r := range receipts {
		productIDs = append(productIDs, r.line.ProductID)
	}
	if err := lockProducts(ctx, uow, productIDs); err != nil {
		return nil, err
	}
	for _, r := range receipts {
		if err := m.lines.RegisterReceipt(r.line, r.qty); err != nil {
			return nil, err
		}
		_, err := m.recorder.RegisterPurchaseInTx(ctx, uow, appinventory.PurchaseReceipt{
			ProductID: r.line.ProductID,
			Quantity:  r.qty,
			UnitCost:  r.line.UnitPrice,
			OrderID:   o.ID,
			UserID:    receiverID,
		})
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", r.line.LineNumber, err)
		}
	}

	now := m.now()
	if o.ReceiverID == "" {
		o.ReceiverID = receiverID
	}
	if o.ReceivedAt == nil {
		o.ReceivedAt = &now
	}
	if !purchasing.AllReceived(o) {
		o.State = entity.OrderStateRecibidaParcial
		return []string{entity.EventOrderPartiallyReceived}, nil
	}

	o.State = entity.OrderStateRecibidaCompleta
	o.ActualDeliveryDate = &now
	if err := complete(o); err != nil {
		return nil, err
	}
	return []string{entity.EventOrderFullyReceived, entity.EventOrderCompleted}, nil
}
