package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/compras-api/internal/application/dto"
)

// HeaderIdempotencyKey header que identifica un reintento del mismo pedido.
const HeaderIdempotencyKey = "Idempotency-Key"

// idempotencyStore es el contrato mínimo que necesita el middleware.
// Lo implementan cache.RedisIdempotencyStore y cache.MemoryIdempotencyStore.
type idempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RequireIdempotency protege operaciones que mueven stock contra envíos duplicados.
// Debe usarse DESPUÉS de AuthMiddleware: la llave se guarda por usuario y ruta.
//
// Comportamiento:
//   - Sin header: la petición pasa sin protección.
//   - 409 Conflict → la llave ya se usó dentro del TTL.
//   - 503 Service Unavailable → no se pudo consultar el store.
//   - Solo una respuesta 2xx consume la llave. Los errores revierten la unidad de
//     trabajo, así que la llave se libera y el cliente puede reintentar (por ejemplo
//     tras CONCURRENT_MODIFICATION).
func RequireIdempotency(store idempotencyStore, ttl time.Duration, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return c.Next()
		}
		scoped := GetUserID(c) + ":" + c.Method() + ":" + c.Path() + ":" + key

		ok, err := store.Reserve(c.Context(), scoped, ttl)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("idempotencia: store no disponible")
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "IDEMPOTENCY_UNAVAILABLE",
				Message: "no se pudo verificar la llave de idempotencia, intente más tarde",
			})
		}
		if !ok {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code:    "DUPLICATE_REQUEST",
				Message: "la petición con esta " + HeaderIdempotencyKey + " ya fue procesada",
			})
		}

		err = c.Next()
		if status := c.Response().StatusCode(); err != nil || status < 200 || status >= 300 {
			if rErr := store.Release(context.Background(), scoped); rErr != nil {
				log.Warn().Err(rErr).Str("key", key).Msg("idempotencia: liberar llave")
			}
		}
		return err
	}
}
