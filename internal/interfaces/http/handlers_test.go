package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/compras-api/internal/application/auth"
	"github.com/jhoicas/compras-api/internal/application/catalog"
	"github.com/jhoicas/compras-api/internal/application/dto"
	appinventory "github.com/jhoicas/compras-api/internal/application/inventory"
	apppurchasing "github.com/jhoicas/compras-api/internal/application/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/infrastructure/cache"
	"github.com/jhoicas/compras-api/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/compras-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/compras-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: API completa sobre el store en memoria.
// ──────────────────────────────────────────────────────────────────────────────

const (
	buyerID    = "u-comprador"
	approverID = "u-aprobador"
	receiverID = "u-bodega"
)

type failingStore struct{}

func (failingStore) Reserve(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis caído")
}
func (failingStore) Release(context.Context, string) error { return nil }

type apiFixture struct {
	app   *fiber.App
	store *memory.Store
}

func newAPI(t *testing.T) *apiFixture {
	return newAPIWithStore(t, cache.NewMemoryIdempotencyStore(nil))
}

func newAPIWithStore(t *testing.T, idem interface {
	Reserve(context.Context, string, time.Duration) (bool, error)
	Release(context.Context, string) error
}) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.AddSupplier(entity.Supplier{ID: "prov-1", Name: "Distribuidora Andina", Active: true})
	store.AddUser(entity.User{ID: buyerID, Role: entity.RoleComprador, Status: entity.UserStatusActive})
	store.AddUser(entity.User{ID: approverID, Role: entity.RoleAprobador, Status: entity.UserStatusActive})
	store.AddUser(entity.User{ID: receiverID, Role: entity.RoleBodeguero, Status: entity.UserStatusActive})
	store.AddProduct(entity.Product{ID: "prod-a", SKU: "A-001", Name: "Producto A", Stock: 20, MinStock: 5, Active: true})
	store.AddProduct(entity.Product{ID: "prod-b", SKU: "B-001", Name: "Producto B", Stock: 0, MinStock: 5, Active: true})

	rec := appinventory.NewMovementRecorder(store, zerolog.Nop(), nil)
	mgr := apppurchasing.NewOrderManager(store, store.Orders(), store.Suppliers(), store.Users(), store.Products(),
		store, rec, nil, apppurchasing.DefaultConfig(), zerolog.Nop(), nil)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Auth: auth.NewAuthUseCase(store.Accounts(), auth.JWTConfig{
			Secret: testJWTSecret, ExpMinutes: testExpMin, Issuer: testIssuer,
		}, nil),
		Products:       catalog.NewProductUseCase(store.ProductCatalog(), nil),
		Suppliers:      catalog.NewSupplierUseCase(store.SupplierCatalog(), nil),
		Orders:         mgr,
		Recorder:       rec,
		Ledger:         appinventory.NewLedgerQueries(store, store.Products(), store.Movements()),
		Replenishment:  appinventory.NewReplenishmentUseCase(store.Products()),
		Idempotency:    idem,
		IdempotencyTTL: time.Minute,
		JWTSecret:      testJWTSecret,
		Log:            zerolog.Nop(),
	})
	return &apiFixture{app: app, store: store}
}

// call ejecuta la petición como userID con el rol dado y decodifica la respuesta en out (si no es nil).
func (f *apiFixture) call(t *testing.T, method, path, userID, role string, body any, headers map[string]string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := pkgjwt.Generate(testJWTSecret, userID, role, testIssuer, testExpMin)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createBody() map[string]any {
	return map[string]any{
		"supplier_id": "prov-1",
		"tax_rate":    "19",
		"lines": []map[string]any{
			{"product_id": "prod-a", "quantity": 10, "unit_price": "100.00"},
			{"product_id": "prod-b", "quantity": 5, "unit_price": "50.00"},
		},
	}
}

// sentOrder crea, aprueba y envía la orden por HTTP.
func (f *apiFixture) sentOrder(t *testing.T) dto.OrderResponse {
	t.Helper()
	var o dto.OrderResponse
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/orders", buyerID, entity.RoleComprador, createBody(), nil, &o))
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/approve", approverID, entity.RoleAprobador, nil, nil, nil))
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/send", buyerID, entity.RoleComprador, nil, nil, &o))
	return o
}

// ──────────────────────────────────────────────────────────────────────────────
// Flujo
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	f := newAPI(t)
	assert.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/health", "", "", nil, nil, nil))
}

func TestAPI_CicloCompletoConRecepcionParcial(t *testing.T) {
	f := newAPI(t)
	o := f.sentOrder(t)
	assert.Equal(t, "ENVIADA", o.State)
	assert.Equal(t, "1487.5", o.Total.String())

	var partial dto.OrderResponse
	status := f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive-partial", receiverID, entity.RoleBodeguero,
		dto.ReceivePartialRequest{Quantities: map[string]int64{o.Lines[0].ID: 4}}, nil, &partial)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "RECIBIDA_PARCIAL", partial.State)

	var stock dto.StockResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/products/prod-a/stock", buyerID, entity.RoleComprador, nil, nil, &stock))
	assert.Equal(t, int64(24), stock.Stock)

	var done dto.OrderResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive", receiverID, entity.RoleBodeguero, nil, nil, &done))
	assert.Equal(t, "COMPLETADA", done.State)

	var movs []dto.MovementResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/products/prod-a/movements", buyerID, entity.RoleComprador, nil, nil, &movs))
	require.Len(t, movs, 2)
	assert.Equal(t, "COMPRA", movs[0].Type)
	assert.Equal(t, "COMPRA-"+o.ID, movs[0].Reference)

	var rec map[string]any
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/products/prod-a/reconcile", buyerID, entity.RoleComprador, nil, nil, &rec))
	assert.Equal(t, true, rec["balanced"])

	var byNumber dto.OrderResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/orders/number/"+o.Number, buyerID, entity.RoleComprador, nil, nil, &byNumber))
	assert.Equal(t, o.ID, byNumber.ID)
}

func TestAPI_ListadoYEstadisticas(t *testing.T) {
	f := newAPI(t)
	f.sentOrder(t)
	f.sentOrder(t)

	var list dto.OrderListResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/orders?state=ENVIADA&limit=1", buyerID, entity.RoleComprador, nil, nil, &list))
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 2, list.Page.Total)

	var stats dto.OrderStatsResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/orders/stats", buyerID, entity.RoleComprador, nil, nil, &stats))
	assert.Equal(t, 2, stats.CountByState["ENVIADA"])

	var errResp dto.ErrorResponse
	status := f.call(t, http.MethodGet, "/api/orders?from=15-03-2026", buyerID, entity.RoleComprador, nil, nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PARAMS", errResp.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Errores
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_MapeoDeErrores(t *testing.T) {
	f := newAPI(t)
	var draft dto.OrderResponse
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/orders", buyerID, entity.RoleComprador, createBody(), nil, &draft))
	sent := f.sentOrder(t)

	cases := []struct {
		name   string
		method string
		path   string
		userID string
		role   string
		body   any
		status int
		code   string
		field  string
	}{
		{"sin líneas", http.MethodPost, "/api/orders", buyerID, entity.RoleComprador, map[string]any{"supplier_id": "prov-1"}, 400, "VALIDATION", "lines"},
		{"cuerpo inválido", http.MethodPost, "/api/orders", buyerID, entity.RoleComprador, "no-json", 400, "INVALID_BODY", ""},
		{"orden inexistente", http.MethodGet, "/api/orders/no-existe", buyerID, entity.RoleComprador, nil, 404, "NOT_FOUND", ""},
		{"recibir en borrador", http.MethodPost, "/api/orders/" + draft.ID + "/receive", receiverID, entity.RoleBodeguero, nil, 409, "INVALID_STATE_TRANSITION", ""},
		{"comprador no aprueba", http.MethodPost, "/api/orders/" + draft.ID + "/approve", buyerID, entity.RoleComprador, nil, 403, "FORBIDDEN", ""},
		{"cancelar sin motivo", http.MethodPost, "/api/orders/" + draft.ID + "/cancel", buyerID, entity.RoleComprador, map[string]any{"reason": "  "}, 400, "VALIDATION", "motivo"},
		{"pdf sin generador", http.MethodGet, "/api/orders/" + sent.ID + "/pdf", buyerID, entity.RoleComprador, nil, 501, "DOCUMENTS_DISABLED", ""},
		{"sobre-recepción", http.MethodPost, "/api/orders/" + sent.ID + "/receive-partial", receiverID, entity.RoleBodeguero,
			dto.ReceivePartialRequest{Quantities: map[string]int64{sent.Lines[0].ID: 11}}, 400, "VALIDATION", ""},
		{"venta sin stock", http.MethodPost, "/api/inventory/movements", receiverID, entity.RoleBodeguero,
			dto.RegisterMovementRequest{ProductID: "prod-b", Type: "VENTA", Quantity: 1}, 409, "INSUFFICIENT_STOCK", ""},
		{"ajuste en cero", http.MethodPost, "/api/inventory/adjustments", receiverID, entity.RoleBodeguero,
			map[string]any{"product_id": "prod-a", "delta": 0, "reason": "conteo"}, 400, "VALIDATION", "delta"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp dto.ErrorResponse
			status := f.call(t, tc.method, tc.path, tc.userID, tc.role, tc.body, nil, &resp)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, resp.Code)
			if tc.field != "" {
				assert.Equal(t, tc.field, resp.Field)
			}
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_IdempotencyKeyRepetidaEsRechazada(t *testing.T) {
	f := newAPI(t)
	o := f.sentOrder(t)
	body := dto.ReceivePartialRequest{Quantities: map[string]int64{o.Lines[0].ID: 2}}
	key := map[string]string{apphttp.HeaderIdempotencyKey: "recepcion-123"}

	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive-partial", receiverID, entity.RoleBodeguero, body, key, nil))

	var resp dto.ErrorResponse
	status := f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive-partial", receiverID, entity.RoleBodeguero, body, key, &resp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_REQUEST", resp.Code)

	var stock dto.StockResponse
	f.call(t, http.MethodGet, "/api/inventory/products/prod-a/stock", receiverID, entity.RoleBodeguero, nil, nil, &stock)
	assert.Equal(t, int64(22), stock.Stock, "la repetición no debe mover stock")

	// sin header no hay protección
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive-partial", receiverID, entity.RoleBodeguero, body, nil, nil))
}

func TestAPI_IdempotencyStoreCaidoResponde503(t *testing.T) {
	f := newAPIWithStore(t, failingStore{})
	o := f.sentOrder(t)

	var resp dto.ErrorResponse
	status := f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive", receiverID, entity.RoleBodeguero, nil,
		map[string]string{apphttp.HeaderIdempotencyKey: "k"}, &resp)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "IDEMPOTENCY_UNAVAILABLE", resp.Code)
}

func TestAPI_BusquedaConteoYEstadisticasDelKardex(t *testing.T) {
	f := newAPI(t)
	o := f.sentOrder(t)
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/receive", receiverID, entity.RoleBodeguero, nil, nil, nil))

	var page dto.MovementListResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/movements?type=COMPRA&product_id=prod-b", buyerID, entity.RoleComprador, nil, nil, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(5), page.Items[0].Quantity)
	assert.Equal(t, 1, page.Page.Total)

	var count dto.MovementCountResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/movements/count?reference=COMPRA-"+o.ID, buyerID, entity.RoleComprador, nil, nil, &count))
	assert.Equal(t, 2, count.Total)

	var stats dto.InventoryStatsResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/stats", buyerID, entity.RoleComprador, nil, nil, &stats))
	assert.Equal(t, 2, stats.TotalProducts)
	assert.Equal(t, int64(35), stats.TotalUnits)
	assert.Equal(t, int64(15), stats.InboundUnits)
	assert.Equal(t, 2, stats.MovementsByType["COMPRA"].Count)

	var errResp dto.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, f.call(t, http.MethodGet, "/api/inventory/movements?type=REGALO", buyerID, entity.RoleComprador, nil, nil, &errResp))
	assert.Equal(t, "VALIDATION", errResp.Code)
	assert.Equal(t, "tipo", errResp.Field)
	assert.Equal(t, http.StatusBadRequest, f.call(t, http.MethodGet, "/api/inventory/stats?from=ayer", buyerID, entity.RoleComprador, nil, nil, nil))
}

func TestAPI_StockBajoMinimo(t *testing.T) {
	f := newAPI(t)
	var resp struct {
		Total          int                              `json:"total"`
		Replenishments []dto.ReplenishmentSuggestionDTO `json:"replenishments"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/inventory/low-stock", buyerID, entity.RoleComprador, nil, nil, &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "prod-b", resp.Replenishments[0].ProductID)
	assert.Equal(t, int64(8), resp.Replenishments[0].SuggestedOrderQty)
}

func TestAPI_AltaDeCuentaYLogin(t *testing.T) {
	f := newAPI(t)
	alta := dto.RegisterUserRequest{Email: "bodega2@example.com", Password: "secreto-largo", Name: "Bodega 2", Role: entity.RoleBodeguero}

	// solo admin da de alta cuentas
	assert.Equal(t, http.StatusForbidden, f.call(t, http.MethodPost, "/api/auth/users", buyerID, entity.RoleComprador, alta, nil, nil))

	var user dto.UserResponse
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/auth/users", "u-admin", entity.RoleAdmin, alta, nil, &user))
	assert.Equal(t, entity.RoleBodeguero, user.Role)
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodPost, "/api/auth/users", "u-admin", entity.RoleAdmin, alta, nil, nil))

	var errResp dto.ErrorResponse
	status := f.call(t, http.MethodPost, "/api/auth/login", "", "", dto.LoginRequest{Email: alta.Email, Password: "otro"}, nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errResp.Code)

	var login dto.LoginResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/auth/login", "", "", dto.LoginRequest{Email: alta.Email, Password: alta.Password}, nil, &login))
	assert.Equal(t, user.ID, login.User.ID)

	uid, role, err := pkgjwt.Parse(testJWTSecret, login.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)
	assert.Equal(t, entity.RoleBodeguero, role)
}

func TestAPI_CatalogoAlimentaOrdenes(t *testing.T) {
	f := newAPI(t)

	var sup dto.SupplierResponse
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/suppliers", buyerID, entity.RoleComprador,
		dto.CreateSupplierRequest{Name: "Ferretería Central"}, nil, &sup))

	var prod dto.ProductResponse
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/products", buyerID, entity.RoleComprador,
		map[string]any{"sku": "TOR-01", "name": "Tornillo", "price": "2.50", "cost": "1.00", "initial_stock": 7, "min_stock": 2}, nil, &prod))
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodPost, "/api/products", buyerID, entity.RoleComprador,
		map[string]any{"sku": "TOR-01", "name": "Otro"}, nil, nil))
	assert.Equal(t, http.StatusForbidden, f.call(t, http.MethodPost, "/api/products", receiverID, entity.RoleBodeguero,
		map[string]any{"sku": "TOR-02", "name": "Tuerca"}, nil, nil))

	var got dto.ProductResponse
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/products/"+prod.ID, receiverID, entity.RoleBodeguero, nil, nil, &got))
	assert.Equal(t, int64(7), got.Stock)

	var order dto.OrderResponse
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/orders", buyerID, entity.RoleComprador, map[string]any{
		"supplier_id": sup.ID,
		"lines":       []map[string]any{{"product_id": prod.ID, "quantity": 3, "unit_price": "1.00"}},
	}, nil, &order))
	assert.Equal(t, "BORRADOR", order.State)
}
