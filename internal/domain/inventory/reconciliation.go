package inventory

import "github.com/jhoicas/compras-api/internal/domain/entity"

// Reconciliation compara el stock del producto contra lo que reconstruye el kardex.
type Reconciliation struct {
	ProductID    string `json:"product_id"`
	InitialStock int64  `json:"initial_stock"`
	Inbound      int64  `json:"inbound"`
	Outbound     int64  `json:"outbound"`
	Expected     int64  `json:"expected"`
	Actual       int64  `json:"actual"`
	Balanced     bool   `json:"balanced"`
}

// Reconcile arma la conciliación a partir de los totales de entradas y salidas.
// stock == inicial + Σentradas − Σsalidas.
func Reconcile(p *entity.Product, inbound, outbound int64) Reconciliation {
	expected := p.InitialStock + inbound - outbound
	return Reconciliation{
		ProductID:    p.ID,
		InitialStock: p.InitialStock,
		Inbound:      inbound,
		Outbound:     outbound,
		Expected:     expected,
		Actual:       p.Stock,
		Balanced:     expected == p.Stock,
	}
}

// Replay recorre movimientos en orden y verifica el encadenamiento
// stockAnterior/stockNuevo de cada fila. Devuelve el stock final reconstruido
// y el índice de la primera fila inconsistente (-1 si todo cuadra).
func Replay(initial int64, movements []entity.StockMovement) (int64, int) {
	stock := initial
	for i, m := range movements {
		if m.StockBefore != stock || m.Type.Apply(m.StockBefore, m.Quantity) != m.StockAfter || m.StockAfter < 0 {
			return stock, i
		}
		stock = m.StockAfter
	}
	return stock, -1
}
