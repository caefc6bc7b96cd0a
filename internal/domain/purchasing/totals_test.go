package purchasing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ──────────────────────────────────────────────────────────────────────────────
// Totales de orden: 10 u × 100 + 5 u × 50, IVA 19 %.
// subtotal 1250.00, impuesto 237.50, total 1487.50.
// ──────────────────────────────────────────────────────────────────────────────

func TestRecalculateTotals_DosLineasIVA19(t *testing.T) {
	o := &entity.Order{
		TaxRate: dec("19"),
		Lines: []entity.OrderLine{
			{Quantity: 10, UnitPrice: dec("100")},
			{Quantity: 5, UnitPrice: dec("50")},
		},
	}

	purchasing.RecalculateTotals(o)

	assert.True(t, o.Subtotal.Equal(dec("1250.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.TaxAmount.Equal(dec("237.50")), "impuesto %s", o.TaxAmount)
	assert.True(t, o.Total.Equal(dec("1487.50")), "total %s", o.Total)
}

func TestRecalculateTotals_EsIdempotente(t *testing.T) {
	o := &entity.Order{
		TaxRate:  dec("19"),
		Discount: dec("10.25"),
		Lines: []entity.OrderLine{
			{Quantity: 3, UnitPrice: dec("33.33"), DiscountPercent: dec("7.5")},
			{Quantity: 7, UnitPrice: dec("12.99")},
		},
	}

	purchasing.RecalculateTotals(o)
	first := *o
	purchasing.RecalculateTotals(o)

	assert.True(t, first.Subtotal.Equal(o.Subtotal))
	assert.True(t, first.TaxAmount.Equal(o.TaxAmount))
	assert.True(t, first.Total.Equal(o.Total))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.TaxAmount).Sub(o.Discount)))
}

func TestCalculateLine(t *testing.T) {
	cases := []struct {
		name         string
		qty          int64
		price, pct   string
		wantDiscount string
		wantSubtotal string
	}{
		{"sin descuento", 10, "100", "0", "0", "1000"},
		{"descuento 10 por ciento", 4, "25.50", "10", "10.20", "91.80"},
		{"redondeo mitad hacia arriba", 1, "0.05", "50", "0.03", "0.02"},
		{"descuento total", 2, "10", "100", "20", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			discount, subtotal := purchasing.CalculateLine(tc.qty, dec(tc.price), dec(tc.pct))
			assert.True(t, discount.Equal(dec(tc.wantDiscount)), "descuento %s", discount)
			assert.True(t, subtotal.Equal(dec(tc.wantSubtotal)), "subtotal %s", subtotal)
		})
	}
}

func TestRecalculateTotals_ImpuestoRedondeado(t *testing.T) {
	// 0.05 × 19 % = 0.0095 -> 0.01
	o := &entity.Order{TaxRate: dec("19"), Lines: []entity.OrderLine{{Quantity: 1, UnitPrice: dec("0.05")}}}

	purchasing.RecalculateTotals(o)

	assert.True(t, o.TaxAmount.Equal(dec("0.01")), "impuesto %s", o.TaxAmount)
}
