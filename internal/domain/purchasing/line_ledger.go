package purchasing

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// NewLine son los datos de una línea nueva.
type NewLine struct {
	ProductID       string
	Quantity        int64
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	Notes           string
	SupplierCode    string
	SupplierName    string
}

// LineChange son los valores editables de una línea existente.
type LineChange struct {
	Quantity        int64
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// LineLedger administra las líneas de una orden y sus cantidades recibidas.
type LineLedger struct {
	newID func() string
}

// NewLineLedger construye el ledger de líneas; newID genera los IDs de línea.
func NewLineLedger(newID func() string) *LineLedger {
	return &LineLedger{newID: newID}
}

// AddLine agrega una línea a una orden modificable y recalcula totales.
func (l *LineLedger) AddLine(o *entity.Order, in NewLine) (*entity.OrderLine, error) {
	if !IsModifiable(o.State) {
		return nil, domain.NewInvalidTransitionError(string(o.State), string(ActionEditLines))
	}
	if in.ProductID == "" {
		return nil, domain.NewValidationError("producto_id", "es obligatorio")
	}
	if err := validateLineValues(in.Quantity, in.UnitPrice, in.DiscountPercent); err != nil {
		return nil, err
	}
	line := entity.OrderLine{
		ID:              l.newID(),
		OrderID:         o.ID,
		ProductID:       in.ProductID,
		LineNumber:      nextLineNumber(o),
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		DiscountPercent: in.DiscountPercent,
		Notes:           in.Notes,
		SupplierCode:    in.SupplierCode,
		SupplierName:    in.SupplierName,
	}
	ApplyLineAmounts(&line)
	o.Lines = append(o.Lines, line)
	RecalculateTotals(o)
	return &o.Lines[len(o.Lines)-1], nil
}

// UpdateLine reemplaza cantidad, precio y descuento de una línea.
func (l *LineLedger) UpdateLine(o *entity.Order, lineID string, ch LineChange) (*entity.OrderLine, error) {
	if !IsModifiable(o.State) {
		return nil, domain.NewInvalidTransitionError(string(o.State), string(ActionEditLines))
	}
	line, ok := o.Line(lineID)
	if !ok {
		return nil, domain.NewNotFoundError("línea de orden", lineID)
	}
	if err := validateLineValues(ch.Quantity, ch.UnitPrice, ch.DiscountPercent); err != nil {
		return nil, err
	}
	if ch.Quantity < line.ReceivedQuantity {
		return nil, domain.NewValidationError("cantidad", "no puede ser menor a la cantidad ya recibida (%d)", line.ReceivedQuantity)
	}
	line.Quantity = ch.Quantity
	line.UnitPrice = ch.UnitPrice
	line.DiscountPercent = ch.DiscountPercent
	RecalculateTotals(o)
	return line, nil
}

// RemoveLine quita una línea de una orden modificable.
func (l *LineLedger) RemoveLine(o *entity.Order, lineID string) error {
	if !IsModifiable(o.State) {
		return domain.NewInvalidTransitionError(string(o.State), string(ActionEditLines))
	}
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			o.Lines = append(o.Lines[:i], o.Lines[i+1:]...)
			RecalculateTotals(o)
			return nil
		}
	}
	return domain.NewNotFoundError("línea de orden", lineID)
}

// RegisterReceipt suma qty a lo recibido; nunca permite superar lo ordenado.
func (l *LineLedger) RegisterReceipt(line *entity.OrderLine, qty int64) error {
	if qty <= 0 {
		return domain.NewValidationError("cantidad_recibida", "debe ser mayor a cero")
	}
	if line.ReceivedQuantity+qty > line.Quantity {
		return domain.NewValidationError("cantidad_recibida",
			"excede la cantidad ordenada: ordenado %d, recibido %d, intento %d",
			line.Quantity, line.ReceivedQuantity, qty)
	}
	line.ReceivedQuantity += qty
	return nil
}

// AllReceived indica si todas las líneas están completas.
func AllReceived(o *entity.Order) bool {
	for _, line := range o.Lines {
		if !line.IsComplete() {
			return false
		}
	}
	return true
}

// ReceivedPercent es el porcentaje recibido de una línea, con 2 decimales.
func ReceivedPercent(line entity.OrderLine) decimal.Decimal {
	if line.Quantity == 0 {
		return decimal.Zero
	}
	return Round2(decimal.NewFromInt(line.ReceivedQuantity).Mul(hundred).Div(decimal.NewFromInt(line.Quantity)))
}

func validateLineValues(qty int64, price, pct decimal.Decimal) error {
	if qty <= 0 {
		return domain.NewValidationError("cantidad", "debe ser mayor a cero")
	}
	if !price.IsPositive() {
		return domain.NewValidationError("precio_unitario", "debe ser mayor a cero")
	}
	if !HasScale2(price) {
		return domain.NewValidationError("precio_unitario", "admite a lo sumo 2 decimales")
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return domain.NewValidationError("porcentaje_descuento", "debe estar entre 0 y 100")
	}
	if !HasScale2(pct) {
		return domain.NewValidationError("porcentaje_descuento", "admite a lo sumo 2 decimales")
	}
	return nil
}

func nextLineNumber(o *entity.Order) int {
	max := 0
	for _, line := range o.Lines {
		if line.LineNumber > max {
			max = line.LineNumber
		}
	}
	return max + 1
}
