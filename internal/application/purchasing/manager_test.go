package purchasing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Escenario A: creación con dos líneas e IVA 19 %.
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_EscenarioA_TotalesYNumero(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t)

	assert.Equal(t, string(entity.OrderStateBorrador), o.State)
	assert.Equal(t, "OC-20260315-000001", o.Number)
	assert.Equal(t, buyerID, o.BuyerID)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, 1, o.Lines[0].LineNumber)
	assert.True(t, o.Subtotal.Equal(dec("1250.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.TaxAmount.Equal(dec("237.50")), "impuesto %s", o.TaxAmount)
	assert.True(t, o.Total.Equal(dec("1487.50")), "total %s", o.Total)

	second := f.createOrder(t)
	assert.Equal(t, "OC-20260315-000002", second.Number)
}

func TestCreate_TasaPorDefecto(t *testing.T) {
	f := newFixture(t)
	req := scenarioARequest()
	req.TaxRate = nil

	o, err := f.manager.Create(context.Background(), buyerID, req)

	require.NoError(t, err)
	assert.True(t, o.TaxRate.Equal(dec("19")))
}

func TestCreate_Validaciones(t *testing.T) {
	cases := []struct {
		name   string
		buyer  string
		mutate func(*dto.CreateOrderRequest)
		want   error
	}{
		{"sin lineas", buyerID, func(r *dto.CreateOrderRequest) { r.Lines = nil }, domain.ErrValidation},
		{"proveedor inexistente", buyerID, func(r *dto.CreateOrderRequest) { r.SupplierID = "nadie" }, domain.ErrNotFound},
		{"proveedor inactivo", buyerID, func(r *dto.CreateOrderRequest) { r.SupplierID = "prov-inactivo" }, domain.ErrValidation},
		{"producto inexistente", buyerID, func(r *dto.CreateOrderRequest) { r.Lines[0].ProductID = "fantasma" }, domain.ErrNotFound},
		{"comprador inactivo", inactiveID, func(*dto.CreateOrderRequest) {}, domain.ErrValidation},
		{"comprador inexistente", "u-nadie", func(*dto.CreateOrderRequest) {}, domain.ErrNotFound},
		{"precio cero", buyerID, func(r *dto.CreateOrderRequest) { r.Lines[1].UnitPrice = dec("0") }, domain.ErrValidation},
		{"tasa mayor a 100", buyerID, func(r *dto.CreateOrderRequest) { r.TaxRate = ptr(dec("101")) }, domain.ErrValidation},
		{"tasa con 3 decimales", buyerID, func(r *dto.CreateOrderRequest) { r.TaxRate = ptr(dec("19.005")) }, domain.ErrValidation},
		{"descuento con 3 decimales", buyerID, func(r *dto.CreateOrderRequest) { r.Discount = ptr(dec("1.005")) }, domain.ErrValidation},
		{"precio con 3 decimales", buyerID, func(r *dto.CreateOrderRequest) { r.Lines[0].UnitPrice = dec("33.335") }, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			req := scenarioARequest()
			tc.mutate(&req)

			_, err := f.manager.Create(context.Background(), tc.buyer, req)

			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.orderCount(t))
		})
	}
}

// Los montos se guardan en columnas de 2 decimales: lo que se acepta es lo que se persiste.
func TestCreate_PrecisionDeMontos(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*dto.CreateOrderRequest)
		field  string
	}{
		{"precio unitario", func(r *dto.CreateOrderRequest) { r.Lines[0].Quantity = 3; r.Lines[0].UnitPrice = dec("33.335") }, "precio_unitario"},
		{"porcentaje de descuento", func(r *dto.CreateOrderRequest) { r.Lines[0].DiscountPercent = dec("2.125") }, "porcentaje_descuento"},
		{"tasa de impuesto", func(r *dto.CreateOrderRequest) { r.TaxRate = ptr(dec("19.001")) }, "tasa_impuesto"},
		{"descuento de cabecera", func(r *dto.CreateOrderRequest) { r.Discount = ptr(dec("0.001")) }, "descuento"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			req := scenarioARequest()
			tc.mutate(&req)

			_, err := f.manager.Create(context.Background(), buyerID, req)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Zero(t, f.orderCount(t))
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios B, C y D: aprobación, envío, confirmación, recepción parcial,
// recepción del resto con cierre automático y cancelación rechazada.
// ──────────────────────────────────────────────────────────────────────────────

func TestCicloCompleto_EscenariosBCD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	lineA, lineB := o.Lines[0].ID, o.Lines[1].ID

	o, err := f.manager.Approve(ctx, o.ID, approverID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatePendiente), o.State)
	assert.Equal(t, approverID, o.ApproverID)
	require.NotNil(t, o.ApprovedAt)

	o, err = f.manager.Send(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateEnviada), o.State)

	o, err = f.manager.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateConfirmada), o.State)

	// B: 6 de las 10 unidades de A
	o, err = f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{lineA: 6})
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateRecibidaParcial), o.State)
	assert.Equal(t, int64(6), o.Lines[0].ReceivedQuantity)
	assert.Equal(t, receiverID, o.ReceiverID)
	assert.Equal(t, initialA+6, f.stock(t, productA))

	movs := f.purchaseMovements(t, o.ID)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypeCompra, movs[0].Type)
	assert.Equal(t, int64(6), movs[0].Quantity)
	assert.Equal(t, movs[0].StockBefore+6, movs[0].StockAfter)
	assert.Equal(t, o.ID, movs[0].OrderID)
	assert.Equal(t, "Compra a proveedor", movs[0].Reason)
	require.NotNil(t, movs[0].UnitCost)
	assert.True(t, movs[0].UnitCost.Equal(dec("100")))

	// C: resto de A y todo B
	o, err = f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{lineA: 4, lineB: 5})
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateCompletada), o.State)
	require.NotNil(t, o.ActualDeliveryDate)
	assert.Len(t, f.purchaseMovements(t, o.ID), 3)
	assert.Equal(t, initialA+10, f.stock(t, productA))
	assert.Equal(t, initialB+5, f.stock(t, productB))

	// D: cancelar una orden completada
	version := o.Version
	_, err = f.manager.Cancel(ctx, o.ID, "ya no se necesita")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	after, err := f.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateCompletada), after.State)
	assert.Equal(t, version, after.Version)
	assert.Len(t, f.purchaseMovements(t, o.ID), 3)

	var types []string
	for _, ev := range f.store.Events() {
		if ev.AggregateID == o.ID {
			types = append(types, ev.Type)
		}
	}
	assert.Equal(t, []string{
		entity.EventOrderCreated,
		entity.EventOrderApproved,
		entity.EventOrderSent,
		entity.EventOrderConfirmed,
		entity.EventOrderPartiallyReceived,
		entity.EventOrderFullyReceived,
		entity.EventOrderCompleted,
	}, types)
}

// Escenario E: recibir 11 de una línea de 10 falla sin tocar kardex ni stock.
func TestReceivePartial_EscenarioE_SobreRecepcion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)

	_, err := f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{o.Lines[0].ID: 11})

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "excede la cantidad ordenada")
	assert.Empty(t, f.purchaseMovements(t, o.ID))
	assert.Equal(t, initialA, f.stock(t, productA))

	after, err := f.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateEnviada), after.State)
	assert.Equal(t, int64(0), after.Lines[0].ReceivedQuantity)
}

func TestReceivePartial_FallaEnSegundaLineaRevierteLaPrimera(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)

	_, err := f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{
		o.Lines[0].ID: 3,
		o.Lines[1].ID: 6, // ordenadas 5
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.purchaseMovements(t, o.ID))
	assert.Equal(t, initialA, f.stock(t, productA))
	assert.Equal(t, initialB, f.stock(t, productB))
}

func TestReceivePartial_EntradasInvalidas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)

	_, err := f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{o.Lines[0].ID: 0, o.Lines[1].ID: -3})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{"linea-fantasma": 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.manager.ReceivePartial(ctx, o.ID, inactiveID, map[string]int64{o.Lines[0].ID: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// cantidades cero se ignoran cuando hay otra válida
	got, err := f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{o.Lines[0].ID: 2, o.Lines[1].ID: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Lines[0].ReceivedQuantity)
	assert.Len(t, f.purchaseMovements(t, o.ID), 1)
}

func TestReceiveAll_CompletaYCierra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)
	_, err := f.manager.MarkInTransit(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{o.Lines[0].ID: 4})
	require.NoError(t, err)

	got, err := f.manager.ReceiveAll(ctx, o.ID, receiverID)

	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateCompletada), got.State)
	for _, l := range got.Lines {
		assert.Equal(t, l.Quantity, l.ReceivedQuantity)
		assert.Equal(t, int64(0), l.PendingQuantity)
	}
	movs := f.purchaseMovements(t, o.ID)
	require.Len(t, movs, 3)
	assert.Equal(t, initialA+10, f.stock(t, productA))
	assert.Equal(t, initialB+5, f.stock(t, productB))
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancelación
// ──────────────────────────────────────────────────────────────────────────────

func TestCancel_TrasRecepcionParcialConservaStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)
	_, err := f.manager.ReceivePartial(ctx, o.ID, receiverID, map[string]int64{o.Lines[0].ID: 4})
	require.NoError(t, err)

	got, err := f.manager.Cancel(ctx, o.ID, "  proveedor sin existencias  ")

	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStateCancelada), got.State)
	assert.Equal(t, "proveedor sin existencias", got.CancelReason)
	require.NotNil(t, got.CanceledAt)
	assert.Equal(t, initialA+4, f.stock(t, productA))
	assert.Len(t, f.purchaseMovements(t, o.ID), 1)

	_, err = f.manager.ReceiveAll(ctx, o.ID, receiverID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	rec, err := f.queries.Reconcile(ctx, productA)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestCancel_MotivoObligatorio(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	_, err := f.manager.Cancel(context.Background(), o.ID, "   ")

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "motivo", ve.Field)
}

// ──────────────────────────────────────────────────────────────────────────────
// Acciones ilegales no modifican la orden
// ──────────────────────────────────────────────────────────────────────────────

func TestAccionesIlegales_NoMutanLaOrden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)

	_, err := f.manager.ReceiveAll(ctx, o.ID, receiverID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.manager.Send(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.manager.Confirm(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.manager.Complete(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	after, err := f.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.State, after.State)
	assert.Equal(t, o.Version, after.Version)
	assert.True(t, o.Total.Equal(after.Total))
}

func TestEdicionDeLineas_SoloEnEstadosModificables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)

	_, err := f.manager.AddLine(ctx, o.ID, dto.OrderLineRequest{ProductID: productB, Quantity: 1, UnitPrice: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.manager.UpdateLine(ctx, o.ID, o.Lines[0].ID, dto.UpdateLineRequest{Quantity: 1, UnitPrice: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.manager.RemoveLine(ctx, o.ID, o.Lines[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.manager.Update(ctx, o.ID, dto.UpdateOrderRequest{Notes: ptr("tarde")})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestEdicionDeLineas_RecalculaTotales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)

	o, err := f.manager.AddLine(ctx, o.ID, dto.OrderLineRequest{ProductID: productB, Quantity: 2, UnitPrice: dec("25"), DiscountPercent: dec("10")})
	require.NoError(t, err)
	require.Len(t, o.Lines, 3)
	assert.Equal(t, 3, o.Lines[2].LineNumber)
	// 1250 + 45 = 1295; IVA 246.05
	assert.True(t, o.Subtotal.Equal(dec("1295")), "subtotal %s", o.Subtotal)
	assert.True(t, o.TaxAmount.Equal(dec("246.05")), "impuesto %s", o.TaxAmount)

	o, err = f.manager.UpdateLine(ctx, o.ID, o.Lines[0].ID, dto.UpdateLineRequest{Quantity: 1, UnitPrice: dec("100")})
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(dec("395")), "subtotal %s", o.Subtotal)

	o, err = f.manager.RemoveLine(ctx, o.ID, o.Lines[2].ID)
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(dec("350")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.TaxAmount).Sub(o.Discount)))
}

func TestApprove_SinLineasFalla(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	_, err := f.manager.RemoveLine(ctx, o.ID, o.Lines[0].ID)
	require.NoError(t, err)
	_, err = f.manager.RemoveLine(ctx, o.ID, o.Lines[1].ID)
	require.NoError(t, err)

	_, err = f.manager.Approve(ctx, o.ID, approverID)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestApprove_AprobadorInactivo(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	_, err := f.manager.Approve(context.Background(), o.ID, inactiveID)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdate_CabeceraYReemplazoDeLineas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	lines := []dto.OrderLineRequest{{ProductID: productB, Quantity: 4, UnitPrice: dec("10")}}

	got, err := f.manager.Update(ctx, o.ID, dto.UpdateOrderRequest{
		TaxRate:      ptr(dec("0")),
		Discount:     ptr(dec("5")),
		PaymentTerms: ptr("30 días"),
		Lines:        &lines,
	})

	require.NoError(t, err)
	assert.Equal(t, "30 días", got.PaymentTerms)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Subtotal.Equal(dec("40")))
	assert.True(t, got.TaxAmount.IsZero())
	assert.True(t, got.Total.Equal(dec("35")))
	assert.Greater(t, got.Version, o.Version)
}

func TestDelete_SoloEnBorrador(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.createOrder(t)
	sent := f.sentOrder(t)

	require.NoError(t, f.manager.Delete(ctx, draft.ID))
	_, err := f.manager.Get(ctx, draft.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.manager.GetByNumber(ctx, draft.Number)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.manager.Delete(ctx, sent.ID), domain.ErrInvalidStateTransition)
	assert.ErrorIs(t, f.manager.Delete(ctx, "no-existe"), domain.ErrNotFound)
}

func TestPredicados(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.sentOrder(t)

	mod, err := f.manager.IsModifiable(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, mod)
	rec, _ := f.manager.IsReceivable(ctx, o.ID)
	assert.True(t, rec)
	can, _ := f.manager.IsCancelable(ctx, o.ID)
	assert.True(t, can)
	all, _ := f.manager.AllLinesReceived(ctx, o.ID)
	assert.False(t, all)

	_, err = f.manager.IsModifiable(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
