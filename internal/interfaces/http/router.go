package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/compras-api/internal/application/auth"
	"github.com/jhoicas/compras-api/internal/application/catalog"
	"github.com/jhoicas/compras-api/internal/application/inventory"
	"github.com/jhoicas/compras-api/internal/application/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Auth           *auth.AuthUseCase
	Products       *catalog.ProductUseCase
	Suppliers      *catalog.SupplierUseCase
	Orders         *purchasing.OrderManager
	Recorder       *inventory.MovementRecorder
	Ledger         *inventory.LedgerQueries
	Replenishment  *inventory.ReplenishmentUseCase
	Idempotency    idempotencyStore
	IdempotencyTTL time.Duration
	JWTSecret      string
	Log            zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Login es público; debe registrarse antes del grupo protegido.
	ah := NewAuthHandler(deps.Auth)
	api.Post("/auth/login", ah.Login)

	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	protected.Post("/auth/users", RequireRole(entity.RoleAdmin), ah.Register)
	once := RequireIdempotency(deps.Idempotency, deps.IdempotencyTTL, deps.Log)

	buyers := RequireRole(entity.RoleComprador, entity.RoleAdmin)
	approvers := RequireRole(entity.RoleAprobador, entity.RoleAdmin)
	warehouse := RequireRole(entity.RoleBodeguero, entity.RoleAdmin)

	// Catálogo
	ch := NewCatalogHandler(deps.Products, deps.Suppliers)
	protected.Post("/products", buyers, ch.CreateProduct)
	protected.Get("/products/:id", ch.GetProduct)
	protected.Post("/suppliers", buyers, ch.CreateSupplier)
	protected.Get("/suppliers/:id", ch.GetSupplier)

	// Órdenes de compra. Las rutas fijas van antes de /:id.
	orders := protected.Group("/orders")
	oh := NewOrderHandler(deps.Orders)
	orders.Get("/upcoming", oh.Upcoming)
	orders.Get("/overdue", oh.Overdue)
	orders.Get("/stats", oh.Stats)
	orders.Get("/number/:numero", oh.GetByNumber)
	orders.Post("/", buyers, oh.Create)
	orders.Get("/", oh.List)
	orders.Get("/:id", oh.GetByID)
	orders.Put("/:id", buyers, oh.Update)
	orders.Delete("/:id", buyers, oh.Delete)
	orders.Get("/:id/pdf", oh.Document)

	orders.Post("/:id/lines", buyers, oh.AddLine)
	orders.Put("/:id/lines/:lineId", buyers, oh.UpdateLine)
	orders.Delete("/:id/lines/:lineId", buyers, oh.RemoveLine)

	orders.Post("/:id/approve", approvers, oh.Approve)
	orders.Post("/:id/send", buyers, oh.Send)
	orders.Post("/:id/confirm", buyers, oh.Confirm)
	orders.Post("/:id/in-transit", buyers, oh.MarkInTransit)
	orders.Post("/:id/receive", warehouse, once, oh.ReceiveAll)
	orders.Post("/:id/receive-partial", warehouse, once, oh.ReceivePartial)
	orders.Post("/:id/complete", buyers, oh.Complete)
	orders.Post("/:id/cancel", buyers, once, oh.Cancel)

	// Kardex
	inv := protected.Group("/inventory")
	ih := NewInventoryHandler(deps.Recorder, deps.Ledger, deps.Replenishment)
	inv.Post("/movements", warehouse, once, ih.RegisterMovement)
	inv.Post("/adjustments", warehouse, once, ih.Adjust)
	inv.Get("/movements", ih.SearchMovements)
	inv.Get("/movements/count", ih.CountMovements)
	inv.Get("/stats", ih.Statistics)
	inv.Get("/products/:id/movements", ih.Movements)
	inv.Get("/products/:id/stock", ih.Stock)
	inv.Get("/products/:id/totals", ih.Totals)
	inv.Get("/products/:id/reconcile", ih.Reconcile)
	inv.Get("/low-stock", ih.GetReplenishmentList)
}
