package purchasing

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// Round2 redondea a 2 decimales, mitad hacia arriba.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// HasScale2 indica si d no tiene más de 2 decimales, la escala de las columnas NUMERIC(_, 2).
func HasScale2(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// CalculateLine devuelve descuento y subtotal de una línea.
// descuento = round2(precio*cantidad*pct/100); subtotal = round2(bruto - descuento).
func CalculateLine(quantity int64, unitPrice, discountPercent decimal.Decimal) (discount, subtotal decimal.Decimal) {
	gross := unitPrice.Mul(decimal.NewFromInt(quantity))
	discount = decimal.Zero
	if discountPercent.IsPositive() {
		discount = Round2(gross.Mul(discountPercent).Div(hundred))
	}
	return discount, Round2(gross.Sub(discount))
}

// ApplyLineAmounts recalcula MontoDescuento y Subtotal de la línea.
func ApplyLineAmounts(line *entity.OrderLine) {
	line.DiscountAmount, line.Subtotal = CalculateLine(line.Quantity, line.UnitPrice, line.DiscountPercent)
}

// RecalculateTotals recalcula subtotal, impuesto y total de la orden. Es idempotente.
func RecalculateTotals(o *entity.Order) {
	subtotal := decimal.Zero
	for i := range o.Lines {
		ApplyLineAmounts(&o.Lines[i])
		subtotal = subtotal.Add(o.Lines[i].Subtotal)
	}
	o.Subtotal = subtotal
	o.TaxAmount = Round2(subtotal.Mul(o.TaxRate).Div(hundred))
	o.Total = o.Subtotal.Add(o.TaxAmount).Sub(o.Discount)
}
