package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apppurchasing "github.com/jhoicas/compras-api/internal/application/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

func sampleDocument() apppurchasing.OrderDocument {
	due := time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)
	return apppurchasing.OrderDocument{
		Order: &entity.Order{
			ID:                    "o-1",
			Number:                "OC-20260315-000001",
			State:                 entity.OrderStateEnviada,
			OrderDate:             time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			EstimatedDeliveryDate: &due,
			BuyerID:               "u-1",
			TaxRate:               decimal.NewFromInt(19),
			Subtotal:              decimal.RequireFromString("1250.00"),
			TaxAmount:             decimal.RequireFromString("237.50"),
			Total:                 decimal.RequireFromString("1487.50"),
			Notes:                 "Entregar en bodega 2",
			Lines: []entity.OrderLine{
				{ID: "l-1", LineNumber: 1, ProductID: "p-a", Quantity: 10, UnitPrice: decimal.RequireFromString("100"), Subtotal: decimal.RequireFromString("1000")},
				{ID: "l-2", LineNumber: 2, ProductID: "p-b", Quantity: 5, UnitPrice: decimal.RequireFromString("50"), Subtotal: decimal.RequireFromString("250")},
			},
		},
		Supplier:     &entity.Supplier{Name: "Distribuidora Andina", TaxID: "76.123.456-7"},
		Buyer:        &entity.User{Name: "Compras"},
		ProductNames: map[string]string{"p-a": "Producto A"},
		ProductSKUs:  map[string]string{"p-a": "A-001"},
		IssuedAt:     time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderOrder_GeneraPDF(t *testing.T) {
	r := NewMarotoOrderRenderer("Compras Andinas S.A.")
	out, err := r.RenderOrder(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderOrder_SinOrdenEsError(t *testing.T) {
	r := NewMarotoOrderRenderer("")
	_, err := r.RenderOrder(context.Background(), apppurchasing.OrderDocument{})
	assert.Error(t, err)
}

func TestRenderOrder_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMarotoOrderRenderer("").RenderOrder(ctx, sampleDocument())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMoney(t *testing.T) {
	r := NewMarotoOrderRenderer("")
	cases := map[string]string{
		"0":         "0,00",
		"1000000":   "1.000.000,00",
		"2500000.5": "2.500.000,50",
		"237.505":   "237,51",
		"-35":       "-35,00",
		"99999.999": "100.000,00",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.money(decimal.RequireFromString(in)), in)
	}
}
