package purchasing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// estados con entrega pendiente de mercadería.
var awaitingDelivery = []entity.OrderState{
	entity.OrderStateEnviada,
	entity.OrderStateConfirmada,
	entity.OrderStateEnTransito,
	entity.OrderStateRecibidaParcial,
}

// Get devuelve la orden con sus líneas.
func (m *OrderManager) Get(ctx context.Context, id string) (*dto.OrderResponse, error) {
	o, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return response(o), nil
}

// GetByNumber busca por número OC-YYYYMMDD-NNNNNN.
func (m *OrderManager) GetByNumber(ctx context.Context, number string) (*dto.OrderResponse, error) {
	o, err := m.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.NewNotFoundError("orden", number)
	}
	return response(o), nil
}

// Search filtra por proveedor, comprador, estado, número y rango de fechas.
func (m *OrderManager) Search(ctx context.Context, in dto.OrderSearchRequest) (*dto.OrderListResponse, error) {
	in.DefaultPage()
	state := entity.OrderState(in.State)
	if state != "" && !state.IsValid() {
		return nil, domain.NewValidationError("estado", "estado desconocido: %s", in.State)
	}
	list, total, err := m.orderRepo.Search(ctx, repository.OrderFilter{
		SupplierID: in.SupplierID,
		BuyerID:    in.BuyerID,
		State:      state,
		Number:     in.Number,
		From:       in.From,
		To:         in.To,
		Limit:      in.Limit,
		Offset:     in.Offset,
	})
	if err != nil {
		return nil, err
	}
	return listResponse(list, in.Limit, in.Offset, total), nil
}

// DueSoon órdenes aún sin recibir por completo con entrega estimada en los próximos días.
func (m *OrderManager) DueSoon(ctx context.Context, days int) ([]dto.OrderResponse, error) {
	if days <= 0 {
		days = m.cfg.DueSoonDays
	}
	now := m.now()
	list, err := m.orderRepo.ListDue(ctx, awaitingDelivery, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	return listResponse(list, len(list), 0, len(list)).Items, nil
}

// Overdue órdenes aún sin recibir por completo con entrega estimada vencida.
func (m *OrderManager) Overdue(ctx context.Context) ([]dto.OrderResponse, error) {
	list, err := m.orderRepo.ListDue(ctx, awaitingDelivery, time.Time{}, m.now())
	if err != nil {
		return nil, err
	}
	return listResponse(list, len(list), 0, len(list)).Items, nil
}

// Stats cantidad y monto por estado de las órdenes emitidas en [from, to], más el
// cumplimiento de entregas. El monto total excluye las canceladas.
// OnTimeRate se calcula sobre todas las emitidas del período.
func (m *OrderManager) Stats(ctx context.Context, from, to time.Time) (*dto.OrderStatsResponse, error) {
	if to.Before(from) {
		return nil, domain.NewValidationError("hasta", "debe ser posterior a desde")
	}
	byState, err := m.orderRepo.StatsByState(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := &dto.OrderStatsResponse{
		From:          from,
		To:            to,
		CountByState:  make(map[string]int, len(entity.OrderStates)),
		AmountByState: make(map[string]decimal.Decimal, len(entity.OrderStates)),
		TotalAmount:   decimal.Zero,
	}
	for _, st := range entity.OrderStates {
		s := byState[st]
		out.CountByState[string(st)] = s.Count
		out.AmountByState[string(st)] = s.Total
		out.TotalOrders += s.Count
		if st != entity.OrderStateCancelada {
			out.TotalAmount = out.TotalAmount.Add(s.Total)
		}
	}

	delivery, err := m.orderRepo.DeliveryStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out.DeliveredOrders = delivery.Delivered
	out.OnTimeOrders = delivery.OnTime
	out.AverageDeliveryDays = decimal.Zero
	out.OnTimeRate = decimal.Zero
	if delivery.Delivered > 0 {
		out.AverageDeliveryDays = purchasing.Round2(delivery.LeadTimeDays.Div(decimal.NewFromInt(int64(delivery.Delivered))))
	}
	if delivery.Orders > 0 {
		out.OnTimeRate = purchasing.Round2(decimal.NewFromInt(int64(delivery.OnTime) * 100).Div(decimal.NewFromInt(int64(delivery.Orders))))
	}
	return out, nil
}

// IsModifiable indica si la orden acepta cambios de cabecera y líneas.
func (m *OrderManager) IsModifiable(ctx context.Context, id string) (bool, error) {
	return m.check(ctx, id, func(o *entity.Order) bool { return purchasing.IsModifiable(o.State) })
}

// IsReceivable indica si la orden acepta recepciones.
func (m *OrderManager) IsReceivable(ctx context.Context, id string) (bool, error) {
	return m.check(ctx, id, func(o *entity.Order) bool { return purchasing.IsReceivable(o.State) })
}

// IsCancelable indica si la orden puede cancelarse.
func (m *OrderManager) IsCancelable(ctx context.Context, id string) (bool, error) {
	return m.check(ctx, id, func(o *entity.Order) bool { return purchasing.IsCancelable(o.State) })
}

// AllLinesReceived indica si todas las líneas están recibidas por completo.
func (m *OrderManager) AllLinesReceived(ctx context.Context, id string) (bool, error) {
	return m.check(ctx, id, purchasing.AllReceived)
}

func (m *OrderManager) check(ctx context.Context, id string, pred func(*entity.Order) bool) (bool, error) {
	o, err := m.find(ctx, id)
	if err != nil {
		return false, err
	}
	return pred(o), nil
}

func (m *OrderManager) find(ctx context.Context, id string) (*entity.Order, error) {
	o, err := m.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.NewNotFoundError("orden", id)
	}
	return o, nil
}

func listResponse(list []*entity.Order, limit, offset, total int) *dto.OrderListResponse {
	items := make([]dto.OrderResponse, 0, len(list))
	for _, o := range list {
		items = append(items, dto.ToOrderResponse(o))
	}
	return &dto.OrderListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset, Total: total},
	}
}
