package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product es un SKU del catálogo. Stock solo cambia a través del kardex.
// Cost es promedio ponderado calculado desde las entradas con costo.
type Product struct {
	ID           string
	SKU          string
	Name         string
	Price        decimal.Decimal // precio de venta
	Cost         decimal.Decimal
	Stock        int64
	InitialStock int64 // stock al inicio del kardex
	MinStock     int64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BelowMinimum indica si el stock está por debajo del mínimo configurado.
func (p *Product) BelowMinimum() bool {
	return p.Stock < p.MinStock
}
