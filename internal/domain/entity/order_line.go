package entity

import "github.com/shopspring/decimal"

// OrderLine es una línea de la orden. Solo conoce el ID de su orden.
// 0 <= ReceivedQuantity <= Quantity.
type OrderLine struct {
	ID               string
	OrderID          string
	ProductID        string
	LineNumber       int
	Quantity         int64
	UnitPrice        decimal.Decimal
	DiscountPercent  decimal.Decimal
	DiscountAmount   decimal.Decimal
	Subtotal         decimal.Decimal
	ReceivedQuantity int64
	Notes            string
	SupplierCode     string // código del producto en el catálogo del proveedor
	SupplierName     string
}

// Pending es la cantidad aún no recibida.
func (l OrderLine) Pending() int64 {
	return l.Quantity - l.ReceivedQuantity
}

// IsComplete indica si la línea ya se recibió por completo.
func (l OrderLine) IsComplete() bool {
	return l.ReceivedQuantity >= l.Quantity
}
