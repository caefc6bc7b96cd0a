package entity

import "time"

// Supplier es un proveedor. Solo se consulta desde compras.
type Supplier struct {
	ID        string
	Name      string
	TaxID     string // RUT/NIT
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}
