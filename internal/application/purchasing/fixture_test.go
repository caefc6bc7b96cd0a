package purchasing_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/compras-api/internal/application/dto"
	appinventory "github.com/jhoicas/compras-api/internal/application/inventory"
	apppurchasing "github.com/jhoicas/compras-api/internal/application/purchasing"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
	"github.com/jhoicas/compras-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: store en memoria con un proveedor, usuarios por rol y dos productos.
// Producto A arranca con 20 unidades, producto B con 0.
// ──────────────────────────────────────────────────────────────────────────────

const (
	supplierID = "prov-1"
	buyerID    = "u-comprador"
	approverID = "u-aprobador"
	receiverID = "u-bodega"
	inactiveID = "u-inactivo"
	productA   = "prod-a"
	productB   = "prod-b"
	initialA   = int64(20)
	initialB   = int64(0)
)

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	now      *time.Time
	store    *memory.Store
	manager  *apppurchasing.OrderManager
	recorder *appinventory.MovementRecorder
	queries  *appinventory.LedgerQueries
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRunner(t, nil, apppurchasing.DefaultConfig())
}

// newFixtureWithRunner permite envolver el TxRunner del store (ej. para simular conflictos).
func newFixtureWithRunner(t *testing.T, wrap func(repository.TxRunner) repository.TxRunner, cfg apppurchasing.Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddSupplier(entity.Supplier{ID: supplierID, Name: "Distribuidora Andina", TaxID: "76.123.456-7", Active: true})
	store.AddSupplier(entity.Supplier{ID: "prov-inactivo", Name: "Proveedor Dado de Baja", Active: false})
	store.AddUser(entity.User{ID: buyerID, Name: "Compras", Role: entity.RoleComprador, Status: entity.UserStatusActive})
	store.AddUser(entity.User{ID: approverID, Name: "Gerencia", Role: entity.RoleAprobador, Status: entity.UserStatusActive})
	store.AddUser(entity.User{ID: receiverID, Name: "Bodega", Role: entity.RoleBodeguero, Status: entity.UserStatusActive})
	store.AddUser(entity.User{ID: inactiveID, Name: "Ex empleado", Role: entity.RoleComprador, Status: entity.UserStatusInactive})
	store.AddProduct(entity.Product{ID: productA, SKU: "A-001", Name: "Producto A", Stock: initialA, MinStock: 5, Active: true})
	store.AddProduct(entity.Product{ID: productB, SKU: "B-001", Name: "Producto B", Stock: initialB, MinStock: 5, Active: true})

	var runner repository.TxRunner = store
	if wrap != nil {
		runner = wrap(store)
	}
	now := fixedNow
	clock := func() time.Time { return now }
	rec := appinventory.NewMovementRecorder(runner, zerolog.Nop(), clock)
	mgr := apppurchasing.NewOrderManager(
		runner, store.Orders(), store.Suppliers(), store.Users(), store.Products(),
		store, rec, nil, cfg, zerolog.Nop(), clock,
	)
	return &fixture{
		now:      &now,
		store:    store,
		manager:  mgr,
		recorder: rec,
		queries:  appinventory.NewLedgerQueries(runner, store.Products(), store.Movements()),
	}
}

// advance adelanta el reloj del manager.
func (f *fixture) advance(d time.Duration) { *f.now = f.now.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

// scenarioARequest: A 10 × 100.00, B 5 × 50.00, IVA 19 %.
func scenarioARequest() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		SupplierID: supplierID,
		TaxRate:    ptr(dec("19")),
		Lines: []dto.OrderLineRequest{
			{ProductID: productA, Quantity: 10, UnitPrice: dec("100.00")},
			{ProductID: productB, Quantity: 5, UnitPrice: dec("50.00")},
		},
	}
}

func (f *fixture) createOrder(t *testing.T) *dto.OrderResponse {
	t.Helper()
	o, err := f.manager.Create(context.Background(), buyerID, scenarioARequest())
	require.NoError(t, err)
	return o
}

// sentOrder crea la orden del escenario A y la deja en ENVIADA.
func (f *fixture) sentOrder(t *testing.T) *dto.OrderResponse {
	t.Helper()
	ctx := context.Background()
	o := f.createOrder(t)
	_, err := f.manager.Approve(ctx, o.ID, approverID)
	require.NoError(t, err)
	o, err = f.manager.Send(ctx, o.ID)
	require.NoError(t, err)
	return o
}

func (f *fixture) stock(t *testing.T, productID string) int64 {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func (f *fixture) purchaseMovements(t *testing.T, orderID string) []*entity.StockMovement {
	t.Helper()
	movs, err := f.store.Movements().ListByReference(context.Background(), "COMPRA-"+orderID)
	require.NoError(t, err)
	return movs
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.store.Orders().Search(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	return total
}

// flakyRunner falla con ErrConcurrentModification las primeras n ejecuciones.
type flakyRunner struct {
	inner    repository.TxRunner
	failures int32
	calls    atomic.Int32
}

func (r *flakyRunner) Run(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if r.calls.Add(1) <= r.failures {
		return domain.ErrConcurrentModification
	}
	return r.inner.Run(ctx, fn)
}
