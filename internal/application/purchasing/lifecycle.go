package purchasing

import (
	"context"
	"strings"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// Approve pasa la orden de BORRADOR a PENDIENTE. Requiere al menos una línea y un aprobador activo.
func (m *OrderManager) Approve(ctx context.Context, id, approverID string) (*dto.OrderResponse, error) {
	if _, err := m.activeUser(ctx, approverID, "aprobador_id"); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, "aprobar", func(_ repository.UnitOfWork, o *entity.Order) ([]string, error) {
		next, err := purchasing.Next(o.State, purchasing.ActionApprove)
		if err != nil {
			return nil, err
		}
		if len(o.Lines) == 0 {
			return nil, domain.NewValidationError("lineas", "no se puede aprobar una orden sin líneas")
		}
		now := m.now()
		o.ApproverID = approverID
		o.ApprovedAt = &now
		o.State = next
		return []string{entity.EventOrderApproved}, nil
	})
}

// Send pasa la orden de PENDIENTE a ENVIADA.
func (m *OrderManager) Send(ctx context.Context, id string) (*dto.OrderResponse, error) {
	return m.transition(ctx, id, purchasing.ActionSend, entity.EventOrderSent)
}

// Confirm registra la confirmación del proveedor: ENVIADA -> CONFIRMADA.
func (m *OrderManager) Confirm(ctx context.Context, id string) (*dto.OrderResponse, error) {
	return m.transition(ctx, id, purchasing.ActionConfirm, entity.EventOrderConfirmed)
}

// MarkInTransit indica que la mercadería fue despachada: ENVIADA o CONFIRMADA -> EN_TRANSITO.
func (m *OrderManager) MarkInTransit(ctx context.Context, id string) (*dto.OrderResponse, error) {
	return m.transition(ctx, id, purchasing.ActionInTransit, entity.EventOrderInTransit)
}

// Cancel cancela la orden con un motivo obligatorio. Los movimientos de stock ya
// registrados por recepciones parciales se mantienen.
func (m *OrderManager) Cancel(ctx context.Context, id, reason string) (*dto.OrderResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("motivo", "el motivo de cancelación es obligatorio")
	}
	return m.mutate(ctx, id, "cancelar", func(_ repository.UnitOfWork, o *entity.Order) ([]string, error) {
		next, err := purchasing.Next(o.State, purchasing.ActionCancel)
		if err != nil {
			return nil, err
		}
		now := m.now()
		o.State = next
		o.CancelReason = reason
		o.CanceledAt = &now
		return []string{entity.EventOrderCanceled}, nil
	})
}

// Complete cierra una orden RECIBIDA_COMPLETA con todas sus líneas recibidas.
func (m *OrderManager) Complete(ctx context.Context, id string) (*dto.OrderResponse, error) {
	return m.mutate(ctx, id, "completar", func(_ repository.UnitOfWork, o *entity.Order) ([]string, error) {
		if err := complete(o); err != nil {
			return nil, err
		}
		return []string{entity.EventOrderCompleted}, nil
	})
}

func complete(o *entity.Order) error {
	next, err := purchasing.Next(o.State, purchasing.ActionComplete)
	if err != nil {
		return err
	}
	if !purchasing.AllReceived(o) {
		return domain.NewInvalidTransitionError(string(o.State), string(purchasing.ActionComplete))
	}
	o.State = next
	return nil
}

func (m *OrderManager) transition(ctx context.Context, id string, action purchasing.Action, event string) (*dto.OrderResponse, error) {
	return m.mutate(ctx, id, string(action), func(_ repository.UnitOfWork, o *entity.Order) ([]string, error) {
		next, err := purchasing.Next(o.State, action)
		if err != nil {
			return nil, err
		}
		o.State = next
		return []string{event}, nil
	})
}
