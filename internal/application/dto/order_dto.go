package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
)

// CreateOrderRequest body para POST /api/orders.
// TaxRate vacío toma la tasa por defecto configurada.
type CreateOrderRequest struct {
	SupplierID            string             `json:"supplier_id" validate:"required"`
	EstimatedDeliveryDate *time.Time         `json:"estimated_delivery_date,omitempty"`
	TaxRate               *decimal.Decimal   `json:"tax_rate,omitempty"`
	Discount              *decimal.Decimal   `json:"discount,omitempty"`
	Notes                 string             `json:"notes,omitempty"`
	PaymentTerms          string             `json:"payment_terms,omitempty"`
	PaymentMethod         string             `json:"payment_method,omitempty"`
	DeliveryAddress       string             `json:"delivery_address,omitempty"`
	SupplierReference     string             `json:"supplier_reference,omitempty"`
	Lines                 []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// OrderLineRequest línea en creación o edición de orden.
type OrderLineRequest struct {
	ProductID       string          `json:"product_id" validate:"required"`
	Quantity        int64           `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Notes           string          `json:"notes,omitempty"`
	SupplierCode    string          `json:"supplier_code,omitempty"`
	SupplierName    string          `json:"supplier_name,omitempty"`
}

// UpdateOrderRequest body para PUT /api/orders/:id. Solo se aplican los campos presentes;
// si Lines viene, reemplaza todas las líneas.
type UpdateOrderRequest struct {
	EstimatedDeliveryDate *time.Time          `json:"estimated_delivery_date,omitempty"`
	TaxRate               *decimal.Decimal    `json:"tax_rate,omitempty"`
	Discount              *decimal.Decimal    `json:"discount,omitempty"`
	Notes                 *string             `json:"notes,omitempty"`
	PaymentTerms          *string             `json:"payment_terms,omitempty"`
	PaymentMethod         *string             `json:"payment_method,omitempty"`
	DeliveryAddress       *string             `json:"delivery_address,omitempty"`
	SupplierReference     *string             `json:"supplier_reference,omitempty"`
	Lines                 *[]OrderLineRequest `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// UpdateLineRequest body para PUT /api/orders/:id/lines/:lineId.
type UpdateLineRequest struct {
	Quantity        int64           `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// ReceivePartialRequest body para POST /api/orders/:id/receive-partial: lineID -> cantidad.
type ReceivePartialRequest struct {
	Quantities map[string]int64 `json:"quantities" validate:"required,min=1"`
}

// CancelOrderRequest body para POST /api/orders/:id/cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// OrderSearchRequest query de GET /api/orders.
type OrderSearchRequest struct {
	SupplierID string     `query:"supplier_id"`
	BuyerID    string     `query:"buyer_id"`
	State      string     `query:"state"`
	Number     string     `query:"number"`
	From       *time.Time `query:"from"`
	To         *time.Time `query:"to"`
	PageRequest
}

// OrderLineResponse línea en respuestas.
type OrderLineResponse struct {
	ID               string          `json:"id"`
	LineNumber       int             `json:"line_number"`
	ProductID        string          `json:"product_id"`
	Quantity         int64           `json:"quantity"`
	ReceivedQuantity int64           `json:"received_quantity"`
	PendingQuantity  int64           `json:"pending_quantity"`
	ReceivedPercent  decimal.Decimal `json:"received_percent"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Notes            string          `json:"notes,omitempty"`
	SupplierCode     string          `json:"supplier_code,omitempty"`
	SupplierName     string          `json:"supplier_name,omitempty"`
}

// OrderResponse orden de compra con líneas.
type OrderResponse struct {
	ID                    string              `json:"id"`
	Number                string              `json:"number"`
	SupplierID            string              `json:"supplier_id"`
	State                 string              `json:"state"`
	OrderDate             time.Time           `json:"order_date"`
	EstimatedDeliveryDate *time.Time          `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time          `json:"actual_delivery_date,omitempty"`
	BuyerID               string              `json:"buyer_id"`
	ApproverID            string              `json:"approver_id,omitempty"`
	ApprovedAt            *time.Time          `json:"approved_at,omitempty"`
	ReceiverID            string              `json:"receiver_id,omitempty"`
	ReceivedAt            *time.Time          `json:"received_at,omitempty"`
	Subtotal              decimal.Decimal     `json:"subtotal"`
	TaxRate               decimal.Decimal     `json:"tax_rate"`
	TaxAmount             decimal.Decimal     `json:"tax_amount"`
	Discount              decimal.Decimal     `json:"discount"`
	Total                 decimal.Decimal     `json:"total"`
	CancelReason          string              `json:"cancel_reason,omitempty"`
	CanceledAt            *time.Time          `json:"canceled_at,omitempty"`
	Notes                 string              `json:"notes,omitempty"`
	PaymentTerms          string              `json:"payment_terms,omitempty"`
	PaymentMethod         string              `json:"payment_method,omitempty"`
	DeliveryAddress       string              `json:"delivery_address,omitempty"`
	SupplierReference     string              `json:"supplier_reference,omitempty"`
	Version               int64               `json:"version"`
	Lines                 []OrderLineResponse `json:"lines"`
}

// OrderListResponse página de órdenes.
type OrderListResponse struct {
	Items []OrderResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// OrderStatsResponse estadísticas de órdenes en un período.
type OrderStatsResponse struct {
	From          time.Time                  `json:"from"`
	To            time.Time                  `json:"to"`
	CountByState  map[string]int             `json:"count_by_state"`
	AmountByState map[string]decimal.Decimal `json:"amount_by_state"`
	TotalOrders   int                        `json:"total_orders"`
	TotalAmount   decimal.Decimal            `json:"total_amount"` // excluye canceladas

	DeliveredOrders     int             `json:"delivered_orders"`
	OnTimeOrders        int             `json:"on_time_orders"`
	AverageDeliveryDays decimal.Decimal `json:"average_delivery_days"` // orden → entrega real
	OnTimeRate          decimal.Decimal `json:"on_time_rate"`          // % de las emitidas entregadas a tiempo
}

// ToOrderResponse mapea la orden con sus líneas.
func ToOrderResponse(o *entity.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineResponse{
			ID:               l.ID,
			LineNumber:       l.LineNumber,
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			ReceivedQuantity: l.ReceivedQuantity,
			PendingQuantity:  l.Pending(),
			ReceivedPercent:  purchasing.ReceivedPercent(l),
			UnitPrice:        l.UnitPrice,
			DiscountPercent:  l.DiscountPercent,
			DiscountAmount:   l.DiscountAmount,
			Subtotal:         l.Subtotal,
			Notes:            l.Notes,
			SupplierCode:     l.SupplierCode,
			SupplierName:     l.SupplierName,
		})
	}
	return OrderResponse{
		ID:                    o.ID,
		Number:                o.Number,
		SupplierID:            o.SupplierID,
		State:                 string(o.State),
		OrderDate:             o.OrderDate,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		ActualDeliveryDate:    o.ActualDeliveryDate,
		BuyerID:               o.BuyerID,
		ApproverID:            o.ApproverID,
		ApprovedAt:            o.ApprovedAt,
		ReceiverID:            o.ReceiverID,
		ReceivedAt:            o.ReceivedAt,
		Subtotal:              o.Subtotal,
		TaxRate:               o.TaxRate,
		TaxAmount:             o.TaxAmount,
		Discount:              o.Discount,
		Total:                 o.Total,
		CancelReason:          o.CancelReason,
		CanceledAt:            o.CanceledAt,
		Notes:                 o.Notes,
		PaymentTerms:          o.PaymentTerms,
		PaymentMethod:         o.PaymentMethod,
		DeliveryAddress:       o.DeliveryAddress,
		SupplierReference:     o.SupplierReference,
		Version:               o.Version,
		Lines:                 lines,
	}
}
