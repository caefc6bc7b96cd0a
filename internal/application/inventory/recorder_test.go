package inventory_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/compras-api/internal/application/dto"
	appinventory "github.com/jhoicas/compras-api/internal/application/inventory"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/inventory"
	"github.com/jhoicas/compras-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

const (
	productID = "prod-1"
	userID    = "u-bodega"
)

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	recorder *appinventory.MovementRecorder
	queries  *appinventory.LedgerQueries
}

func newFixture(t *testing.T, stock int64, cost string) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(entity.Product{
		ID: productID, SKU: "SKU-1", Name: "Tornillo", Stock: stock, MinStock: 10,
		Cost: decimal.RequireFromString(cost), Active: true,
	})
	return &fixture{
		store:    store,
		recorder: appinventory.NewMovementRecorder(store, zerolog.Nop(), func() time.Time { return fixedNow }),
		queries:  appinventory.NewLedgerQueries(store, store.Products(), store.Movements()),
	}
}

func (f *fixture) stock(t *testing.T) int64 {
	t.Helper()
	s, err := f.queries.CurrentStock(context.Background(), productID)
	require.NoError(t, err)
	return s.Stock
}

// ──────────────────────────────────────────────────────────────────────────────
// Registro de movimientos
// ──────────────────────────────────────────────────────────────────────────────

func TestRegister_EntradaActualizaStockYCostoPromedio(t *testing.T) {
	f := newFixture(t, 10, "100")
	unit := decimal.NewFromInt(130)

	mov, err := f.recorder.Register(context.Background(), appinventory.MovementInput{
		ProductID: productID,
		Type:      entity.MovementTypeCompra,
		Quantity:  20,
		UserID:    userID,
		Reference: "COMPRA-x",
		UnitCost:  &unit,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(10), mov.StockBefore)
	assert.Equal(t, int64(30), mov.StockAfter)
	require.NotNil(t, mov.TotalCost)
	assert.True(t, mov.TotalCost.Equal(decimal.NewFromInt(2600)))
	assert.Equal(t, int64(30), f.stock(t))

	s, err := f.queries.CurrentStock(context.Background(), productID)
	require.NoError(t, err)
	// (10·100 + 20·130) / 30 = 120
	assert.True(t, s.Cost.Equal(decimal.NewFromInt(120)), "costo %s", s.Cost)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventMovementRecorded, events[0].Type)
	assert.Equal(t, productID, events[0].AggregateID)
}

func TestRegister_SalidaSinStockSuficiente(t *testing.T) {
	f := newFixture(t, 3, "10")

	_, err := f.recorder.RegisterSale(context.Background(), productID, 5, "F-1", userID)

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(5), ise.Requested)
	assert.Equal(t, int64(3), ise.Available)
	assert.Equal(t, int64(3), f.stock(t))
	movs, err := f.queries.LastMovements(context.Background(), productID, 10)
	require.NoError(t, err)
	assert.Empty(t, movs)
	assert.Empty(t, f.store.Events())
}

func TestRegister_SalidaExactaDejaStockEnCero(t *testing.T) {
	f := newFixture(t, 3, "10")

	mov, err := f.recorder.RegisterSale(context.Background(), productID, 3, "F-2", userID)

	require.NoError(t, err)
	assert.Equal(t, "VENTA-F-2", mov.ExternalReference)
	assert.Equal(t, int64(0), f.stock(t))
}

func TestRegister_Validaciones(t *testing.T) {
	cases := []struct {
		name string
		in   appinventory.MovementInput
		want error
	}{
		{"tipo desconocido", appinventory.MovementInput{ProductID: productID, Type: "REGALO", Quantity: 1, UserID: userID}, domain.ErrValidation},
		{"cantidad cero", appinventory.MovementInput{ProductID: productID, Type: entity.MovementTypeVenta, Quantity: 0, UserID: userID}, domain.ErrValidation},
		{"sin usuario", appinventory.MovementInput{ProductID: productID, Type: entity.MovementTypeVenta, Quantity: 1}, domain.ErrValidation},
		{"producto inexistente", appinventory.MovementInput{ProductID: "nada", Type: entity.MovementTypeCompra, Quantity: 1, UserID: userID}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5, "1")
			_, err := f.recorder.Register(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, int64(5), f.stock(t))
		})
	}
}

func TestRegisterAdjustment(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()

	up, err := f.recorder.RegisterAdjustment(ctx, productID, 4, userID, "conteo físico", "")
	require.NoError(t, err)
	assert.Equal(t, entity.MovementTypeAjustePositivo, up.Type)
	assert.Equal(t, int64(14), up.StockAfter)

	down, err := f.recorder.RegisterAdjustment(ctx, productID, -6, userID, "merma", "")
	require.NoError(t, err)
	assert.Equal(t, entity.MovementTypeAjusteNegativo, down.Type)
	assert.Equal(t, int64(6), down.Quantity)
	assert.Equal(t, int64(8), f.stock(t))

	_, err = f.recorder.RegisterAdjustment(ctx, productID, 0, userID, "nada", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.recorder.RegisterAdjustment(ctx, productID, -9, userID, "rotura", "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestRequests_MapeanAlKardex(t *testing.T) {
	f := newFixture(t, 0, "0")
	ctx := context.Background()
	cost := decimal.RequireFromString("2.50")

	res, err := f.recorder.RegisterFromRequest(ctx, userID, dto.RegisterMovementRequest{
		ProductID: productID, Type: string(entity.MovementTypeDevolucionEntrada), Quantity: 2, UnitCost: &cost, Reason: "cliente devuelve",
	})
	require.NoError(t, err)
	assert.True(t, res.Inbound)
	assert.Equal(t, int64(2), res.StockAfter)

	adj, err := f.recorder.AdjustFromRequest(ctx, userID, dto.AdjustmentRequest{ProductID: productID, Delta: -1, Reason: "merma"})
	require.NoError(t, err)
	assert.False(t, adj.Inbound)

	got, err := f.queries.Movement(ctx, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, adj.ID, got.ID)
	_, err = f.queries.Movement(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Conciliación: stock == inicial + Σentradas − Σsalidas
// ──────────────────────────────────────────────────────────────────────────────

var allTypes = []entity.MovementType{
	entity.MovementTypeCompra,
	entity.MovementTypeVenta,
	entity.MovementTypeAjustePositivo,
	entity.MovementTypeAjusteNegativo,
	entity.MovementTypeDevolucionEntrada,
	entity.MovementTypeDevolucionSalida,
	entity.MovementTypeTransferenciaEntrada,
	entity.MovementTypeTransferenciaSalida,
	entity.MovementTypeInventarioInicial,
}

func TestConciliacion_SecuenciaAleatoria(t *testing.T) {
	f := newFixture(t, 25, "10")
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		_, err := f.recorder.Register(ctx, appinventory.MovementInput{
			ProductID: productID,
			Type:      allTypes[rng.Intn(len(allTypes))],
			Quantity:  int64(rng.Intn(12) + 1),
			UserID:    userID,
		})
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
		require.GreaterOrEqual(t, f.stock(t), int64(0))
	}

	rec, err := f.queries.Reconcile(ctx, productID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced, "%+v", rec)
	assert.Equal(t, int64(25), rec.InitialStock)

	totals, err := f.queries.Totals(ctx, productID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, rec.Inbound, totals.Inbound)
	assert.Equal(t, rec.Outbound, totals.Outbound)

	// el kardex se encadena fila a fila desde el stock inicial
	newestFirst, err := f.store.Movements().ListByProduct(ctx, productID, nil, nil, 0, 0)
	require.NoError(t, err)
	chron := make([]entity.StockMovement, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		chron = append(chron, *newestFirst[i])
	}
	final, bad := inventory.Replay(25, chron)
	assert.Equal(t, -1, bad)
	assert.Equal(t, f.stock(t), final)
}

func TestConciliacion_SalidasConcurrentesNuncaDejanStockNegativo(t *testing.T) {
	f := newFixture(t, 50, "1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := entity.MovementTypeVenta
			if i%4 == 0 {
				typ = entity.MovementTypeCompra
			}
			_, _ = f.recorder.Register(ctx, appinventory.MovementInput{ProductID: productID, Type: typ, Quantity: 3, UserID: userID})
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.stock(t), int64(0))
	rec, err := f.queries.Reconcile(ctx, productID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced, "%+v", rec)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestConsultas(t *testing.T) {
	f := newFixture(t, 5, "1")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.recorder.RegisterInboundReturn(ctx, productID, 1, "DEV-1", userID, "devolución")
		require.NoError(t, err)
	}

	last, err := f.queries.LastMovements(ctx, productID, 2)
	require.NoError(t, err)
	assert.Len(t, last, 2)
	assert.Equal(t, int64(8), last[0].StockAfter)

	byRef, err := f.queries.MovementsByReference(ctx, "DEV-1")
	require.NoError(t, err)
	assert.Len(t, byRef, 3)

	ok, err := f.queries.CheckAvailable(ctx, productID, 8)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = f.queries.CheckAvailable(ctx, productID, 9)
	assert.False(t, ok)

	_, err = f.queries.CurrentStock(ctx, "otro")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.queries.ProductMovements(ctx, "otro", dto.MovementFilter{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// kardexVariado: prod-1 (5→6) con una devolución y una venta, prod-2 (3→4) con
// una venta y un ajuste, y prod-3 inactivo sin movimientos.
func kardexVariado(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, 5, "1")
	ctx := context.Background()
	f.store.AddProduct(entity.Product{ID: "prod-2", SKU: "SKU-2", Name: "Tuerca", Stock: 3, MinStock: 1, Cost: decimal.NewFromInt(2), Active: true})
	f.store.AddProduct(entity.Product{ID: "prod-3", SKU: "SKU-3", Name: "Descontinuado", Stock: 7, Cost: decimal.NewFromInt(10)})

	_, err := f.recorder.RegisterInboundReturn(ctx, productID, 2, "DEV-1", userID, "devolución")
	require.NoError(t, err)
	_, err = f.recorder.RegisterSale(ctx, productID, 1, "1", "u-caja")
	require.NoError(t, err)
	_, err = f.recorder.RegisterSale(ctx, "prod-2", 3, "2", "u-caja")
	require.NoError(t, err)
	_, err = f.recorder.RegisterAdjustment(ctx, "prod-2", 4, userID, "conteo", "")
	require.NoError(t, err)
	return f
}

func TestSearchMovements_EntreProductos(t *testing.T) {
	f := kardexVariado(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    dto.MovementSearchRequest
		total int
	}{
		{"sin criterios", dto.MovementSearchRequest{}, 4},
		{"por tipo", dto.MovementSearchRequest{Type: string(entity.MovementTypeVenta)}, 2},
		{"por usuario y producto", dto.MovementSearchRequest{UserID: "u-caja", ProductID: "prod-2"}, 1},
		{"por referencia", dto.MovementSearchRequest{Reference: "VENTA-1"}, 1},
		{"período con movimientos", dto.MovementSearchRequest{From: ptrTime(fixedNow.Add(-time.Hour)), To: ptrTime(fixedNow.Add(time.Hour))}, 4},
		{"período sin movimientos", dto.MovementSearchRequest{To: ptrTime(fixedNow.Add(-time.Hour))}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := f.queries.SearchMovements(ctx, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.total, out.Page.Total)
			assert.Len(t, out.Items, tc.total)

			n, err := f.queries.CountMovements(ctx, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.total, n)
		})
	}
}

func TestSearchMovements_PaginaYValida(t *testing.T) {
	f := kardexVariado(t)
	ctx := context.Background()

	out, err := f.queries.SearchMovements(ctx, dto.MovementSearchRequest{PageRequest: dto.PageRequest{Limit: 3, Offset: 2}})
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 4, out.Page.Total)
	assert.Equal(t, 3, out.Page.Limit)

	_, err = f.queries.SearchMovements(ctx, dto.MovementSearchRequest{Type: "REGALO"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.queries.CountMovements(ctx, dto.MovementSearchRequest{From: ptrTime(fixedNow), To: ptrTime(fixedNow.Add(-time.Hour))})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStatistics_ExistenciasYMovimientosPorTipo(t *testing.T) {
	f := kardexVariado(t)

	st, err := f.queries.Statistics(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalProducts)
	assert.Equal(t, 2, st.ActiveProducts)
	assert.Equal(t, 1, st.InactiveProducts)
	assert.Equal(t, int64(10), st.TotalUnits)
	assert.True(t, st.InventoryValue.Equal(decimal.NewFromInt(14)), "valor %s", st.InventoryValue) // 6×1 + 4×2
	assert.Equal(t, 1, st.BelowMinimum)
	assert.Zero(t, st.OutOfStock)
	assert.Equal(t, 4, st.TotalMovements)
	assert.Equal(t, int64(6), st.InboundUnits)
	assert.Equal(t, int64(4), st.OutboundUnits)
	assert.Equal(t, dto.MovementTypeStatsResponse{Count: 2, Units: 4}, st.MovementsByType[string(entity.MovementTypeVenta)])

	empty, err := f.queries.Statistics(context.Background(), nil, ptrTime(fixedNow.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalMovements)
	assert.Equal(t, 3, empty.TotalProducts, "las existencias no dependen del período")

	_, err = f.queries.Statistics(context.Background(), ptrTime(fixedNow), ptrTime(fixedNow.Add(-time.Hour)))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestReplenishment_OrdenaPorDeficit(t *testing.T) {
	store := memory.NewStore()
	store.AddProduct(entity.Product{ID: "a", SKU: "A", Stock: 8, MinStock: 10, Cost: decimal.NewFromInt(2), Active: true})
	store.AddProduct(entity.Product{ID: "b", SKU: "B", Stock: 1, MinStock: 10, Cost: decimal.NewFromInt(5), Active: true})
	store.AddProduct(entity.Product{ID: "c", SKU: "C", Stock: 50, MinStock: 10, Active: true})
	store.AddProduct(entity.Product{ID: "d", SKU: "D", Stock: 0, MinStock: 4, Active: false})
	uc := appinventory.NewReplenishmentUseCase(store.Products())

	list, err := uc.GenerateReplenishmentList(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ProductID)
	assert.Equal(t, 1, list[0].Priority)
	assert.Equal(t, int64(15), list[0].IdealStock)
	assert.Equal(t, int64(14), list[0].SuggestedOrderQty)
	assert.True(t, list[0].EstimatedOrderCost.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, "a", list[1].ProductID)
}
