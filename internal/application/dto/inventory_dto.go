package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// RegisterMovementRequest body para POST /api/inventory/movements.
type RegisterMovementRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Type      string           `json:"type" validate:"required"`
	Quantity  int64            `json:"quantity" validate:"gt=0"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	Reference string           `json:"reference,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// AdjustmentRequest body para POST /api/inventory/adjustments.
// Delta positivo genera AJUSTE_POSITIVO, negativo AJUSTE_NEGATIVO.
type AdjustmentRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Delta     int64  `json:"delta" validate:"ne=0"`
	Reason    string `json:"reason" validate:"required"`
	Notes     string `json:"notes,omitempty"`
}

// MovementFilter query para GET /api/inventory/products/:id/movements.
type MovementFilter struct {
	From *time.Time `query:"from"`
	To   *time.Time `query:"to"`
	PageRequest
}

// MovementSearchRequest query para GET /api/inventory/movements y /movements/count.
type MovementSearchRequest struct {
	ProductID string     `query:"product_id"`
	Type      string     `query:"type"`
	UserID    string     `query:"user_id"`
	Reference string     `query:"reference"`
	From      *time.Time `query:"from"`
	To        *time.Time `query:"to"`
	PageRequest
}

// MovementListResponse página del kardex.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// MovementCountResponse cantidad de movimientos que cumplen la búsqueda.
type MovementCountResponse struct {
	Total int `json:"total"`
}

// MovementTypeStatsResponse movimientos y unidades de un tipo.
type MovementTypeStatsResponse struct {
	Count int   `json:"count"`
	Units int64 `json:"units"`
}

// InventoryStatsResponse indicadores del inventario; los de movimientos se limitan al período.
type InventoryStatsResponse struct {
	From             *time.Time                           `json:"from,omitempty"`
	To               *time.Time                           `json:"to,omitempty"`
	TotalProducts    int                                  `json:"total_products"`
	ActiveProducts   int                                  `json:"active_products"`
	InactiveProducts int                                  `json:"inactive_products"`
	TotalUnits       int64                                `json:"total_units"`
	InventoryValue   decimal.Decimal                      `json:"inventory_value"`
	BelowMinimum     int                                  `json:"below_minimum"`
	OutOfStock       int                                  `json:"out_of_stock"`
	TotalMovements   int                                  `json:"total_movements"`
	InboundUnits     int64                                `json:"inbound_units"`
	OutboundUnits    int64                                `json:"outbound_units"`
	MovementsByType  map[string]MovementTypeStatsResponse `json:"movements_by_type"`
}

// MovementResponse fila del kardex.
type MovementResponse struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"product_id"`
	Type        string           `json:"type"`
	Inbound     bool             `json:"inbound"`
	Quantity    int64            `json:"quantity"`
	StockBefore int64            `json:"stock_before"`
	StockAfter  int64            `json:"stock_after"`
	UserID      string           `json:"user_id"`
	Date        time.Time        `json:"date"`
	Reference   string           `json:"reference,omitempty"`
	OrderID     string           `json:"order_id,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	TotalCost   *decimal.Decimal `json:"total_cost,omitempty"`
}

// StockResponse stock actual de un producto.
type StockResponse struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Stock     int64           `json:"stock"`
	MinStock  int64           `json:"min_stock"`
	Cost      decimal.Decimal `json:"cost"`
}

// MovementTotalsResponse totales de entradas y salidas en un rango.
type MovementTotalsResponse struct {
	ProductID string `json:"product_id"`
	Inbound   int64  `json:"inbound"`
	Outbound  int64  `json:"outbound"`
}

// ReplenishmentSuggestionDTO sugerencia de reposición para un SKU bajo su stock mínimo.
type ReplenishmentSuggestionDTO struct {
	ProductID          string          `json:"product_id"`
	SKU                string          `json:"sku"`
	ProductName        string          `json:"product_name"`
	CurrentStock       int64           `json:"current_stock"`
	MinStock           int64           `json:"min_stock"`
	IdealStock         int64           `json:"ideal_stock"`         // MinStock * 1.5, hacia arriba
	SuggestedOrderQty  int64           `json:"suggested_order_qty"` // IdealStock - CurrentStock
	UnitCost           decimal.Decimal `json:"unit_cost"`
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"`
	Priority           int             `json:"priority"` // 1 = más urgente
}

// ToMovementResponse mapea una fila del kardex.
func ToMovementResponse(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:          m.ID,
		ProductID:   m.ProductID,
		Type:        string(m.Type),
		Inbound:     m.Type.IsInbound(),
		Quantity:    m.Quantity,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		UserID:      m.UserID,
		Date:        m.Date,
		Reference:   m.ExternalReference,
		OrderID:     m.OrderID,
		Reason:      m.Reason,
		Notes:       m.Notes,
		UnitCost:    m.UnitCost,
		TotalCost:   m.TotalCost,
	}
}
