// @title                       Compras API
// @version                     1.0
// @description                 Órdenes de compra a proveedores y kardex de inventario.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	_ "github.com/jhoicas/compras-api/docs"
	"github.com/jhoicas/compras-api/internal/application/auth"
	"github.com/jhoicas/compras-api/internal/application/catalog"
	"github.com/jhoicas/compras-api/internal/application/inventory"
	"github.com/jhoicas/compras-api/internal/application/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/repository"
	"github.com/jhoicas/compras-api/internal/infrastructure/cache"
	"github.com/jhoicas/compras-api/internal/infrastructure/events"
	"github.com/jhoicas/compras-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/compras-api/internal/infrastructure/pdf"
	"github.com/jhoicas/compras-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/compras-api/internal/interfaces/http"
	"github.com/jhoicas/compras-api/pkg/config"
	"github.com/jhoicas/compras-api/pkg/logger"
)

// backend repositorios y transacciones del driver elegido.
type backend struct {
	tx        repository.TxRunner
	orders    repository.OrderRepository
	suppliers repository.SupplierCatalogRepository
	users     repository.UserAccountRepository
	products  repository.ProductCatalogRepository
	movements repository.MovementRepository
	sequence  repository.OrderNumberSequence
	outbox    events.Store
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración inválida")
	}
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	be, err := newBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar persistencia")
	}
	defer be.close()

	idem, closeIdem := newIdempotencyStore(ctx, cfg, log)
	defer closeIdem()

	recorder := inventory.NewMovementRecorder(be.tx, log.Component("inventory"), nil)
	orderCfg := purchasing.DefaultConfig()
	orderCfg.DefaultTaxRate = cfg.Purchasing.DefaultTaxRate
	orderCfg.NumberPrefix = cfg.Purchasing.NumberPrefix
	orderCfg.MaxRetries = cfg.Purchasing.MaxRetries

	// PDF de la orden, generado a demanda
	renderer := infrapdf.NewMarotoOrderRenderer(cfg.Purchasing.CompanyName)
	orders := purchasing.NewOrderManager(
		be.tx, be.orders, be.suppliers, be.users, be.products,
		be.sequence, recorder, renderer, orderCfg, log.Component("purchasing"), nil,
	)

	relayDone := startRelay(ctx, cfg, be.outbox, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Compras API",
	}))

	authUC := auth.NewAuthUseCase(be.users, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, nil)

	httpRouter.Router(app, httpRouter.RouterDeps{
		Auth:           authUC,
		Products:       catalog.NewProductUseCase(be.products, nil),
		Suppliers:      catalog.NewSupplierUseCase(be.suppliers, nil),
		Orders:         orders,
		Recorder:       recorder,
		Ledger:         inventory.NewLedgerQueries(be.tx, be.products, be.movements),
		Replenishment:  inventory.NewReplenishmentUseCase(be.products),
		Idempotency:    idem,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		JWTSecret:      cfg.JWT.Secret,
		Log:            log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	stop()
	<-relayDone

	log.Info().Msg("aplicación detenida")
}

func newBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("persistencia en memoria: los datos se pierden al reiniciar")
		store := memory.NewStore()
		return &backend{
			tx:        store,
			orders:    store.Orders(),
			suppliers: store.SupplierCatalog(),
			users:     store.Accounts(),
			products:  store.ProductCatalog(),
			movements: store.Movements(),
			sequence:  store,
			outbox:    store,
			close:     func() {},
		}, nil
	}

	if cfg.Storage.AutoMigrate {
		m, err := postgres.NewMigrator(cfg.DB.ConnectionString(), log.Component("migrate"))
		if err != nil {
			return nil, err
		}
		err = m.Up()
		if cerr := m.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("cerrar migrador")
		}
		if err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &backend{
		tx:        postgres.NewTxRunner(pool),
		orders:    postgres.NewOrderRepository(pool),
		suppliers: postgres.NewSupplierRepository(pool),
		users:     postgres.NewUserRepository(pool),
		products:  postgres.NewProductRepository(pool),
		movements: postgres.NewMovementRepository(pool),
		sequence:  postgres.NewSequence(pool),
		outbox:    postgres.NewOutboxStore(pool),
		close:     pool.Close,
	}, nil
}

// newIdempotencyStore usa Redis si REDIS_ADDR está definido; si no, memoria local.
func newIdempotencyStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.IdempotencyStore, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryIdempotencyStore(nil), func() {}
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a Redis")
	}
	return cache.NewRedisIdempotencyStore(client, ""), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("cerrar cliente Redis")
		}
	}
}

// startRelay publica la bandeja de salida en Kafka hasta que ctx se cancele.
// El canal devuelto se cierra al terminar.
func startRelay(ctx context.Context, cfg *config.Config, store events.Store, log *logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if !cfg.Kafka.Enabled() {
		log.Info().Msg("KAFKA_BROKERS vacío: los eventos quedan en la bandeja de salida")
		close(done)
		return done
	}

	writer := events.NewKafkaWriter(cfg.Kafka.Brokers)
	relayLog := log.Component("outbox")
	relay := events.NewRelay(relayLog, store, events.NewDispatcher(relayLog, writer, cfg.Kafka.Topic), events.RelayConfig{
		ID:       cfg.App.Name + "-" + uuid.NewString(),
		Interval: cfg.Kafka.OutboxInterval,
		Lease:    cfg.Kafka.OutboxLease,
	})

	go func() {
		defer close(done)
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			relayLog.Error().Err(err).Msg("relay detenido")
		}
		if err := writer.Close(); err != nil {
			relayLog.Warn().Err(err).Msg("cerrar productor kafka")
		}
	}()
	return done
}
