package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType es el tipo de movimiento del kardex.
type MovementType string

const (
	MovementTypeCompra               MovementType = "COMPRA"
	MovementTypeDevolucionEntrada    MovementType = "DEVOLUCION_ENTRADA"
	MovementTypeVenta                MovementType = "VENTA"
	MovementTypeDevolucionSalida     MovementType = "DEVOLUCION_SALIDA"
	MovementTypeAjustePositivo       MovementType = "AJUSTE_POSITIVO"
	MovementTypeAjusteNegativo       MovementType = "AJUSTE_NEGATIVO"
	MovementTypeTransferenciaEntrada MovementType = "TRANSFERENCIA_ENTRADA"
	MovementTypeTransferenciaSalida  MovementType = "TRANSFERENCIA_SALIDA"
	MovementTypeInventarioInicial    MovementType = "INVENTARIO_INICIAL"
)

// movementInbound indica la dirección de cada tipo: true suma, false resta.
var movementInbound = map[MovementType]bool{
	MovementTypeCompra:               true,
	MovementTypeDevolucionEntrada:    true,
	MovementTypeVenta:                false,
	MovementTypeDevolucionSalida:     false,
	MovementTypeAjustePositivo:       true,
	MovementTypeAjusteNegativo:       false,
	MovementTypeTransferenciaEntrada: true,
	MovementTypeTransferenciaSalida:  false,
	MovementTypeInventarioInicial:    true,
}

// IsValid indica si el tipo es conocido.
func (t MovementType) IsValid() bool {
	_, ok := movementInbound[t]
	return ok
}

// IsInbound es true para entradas (suman stock).
func (t MovementType) IsInbound() bool {
	return movementInbound[t]
}

// Apply devuelve el stock resultante de aplicar qty unidades sobre before.
func (t MovementType) Apply(before, qty int64) int64 {
	if t.IsInbound() {
		return before + qty
	}
	return before - qty
}

// StockMovement es una fila inmutable del kardex. Cantidad siempre positiva;
// la dirección la da el tipo.
type StockMovement struct {
	ID                string
	ProductID         string
	Type              MovementType
	Quantity          int64
	StockBefore       int64
	StockAfter        int64
	UserID            string
	Date              time.Time
	ExternalReference string // ej. COMPRA-<orderID>
	OrderID           string
	Reason            string
	Notes             string
	UnitCost          *decimal.Decimal
	TotalCost         *decimal.Decimal
}
