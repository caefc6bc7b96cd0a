package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/application/inventory"
)

// InventoryHandler maneja las peticiones HTTP del kardex e inventario (protegido).
type InventoryHandler struct {
	recorder      *inventory.MovementRecorder
	ledger        *inventory.LedgerQueries
	replenishment *inventory.ReplenishmentUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(recorder *inventory.MovementRecorder, ledger *inventory.LedgerQueries, replenishment *inventory.ReplenishmentUseCase) *InventoryHandler {
	return &InventoryHandler{recorder: recorder, ledger: ledger, replenishment: replenishment}
}

// RegisterMovement godoc
// @Summary      Registrar movimiento de inventario
// @Description  Las entradas con unit_cost recalculan el costo promedio ponderado. Admite Idempotency-Key.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                       false  "Llave de reintento"
// @Param        body             body      dto.RegisterMovementRequest  true   "product_id, type, quantity, unit_cost (entradas)"
// @Success      201              {object}  dto.MovementResponse
// @Failure      400              {object}  dto.ErrorResponse
// @Failure      404              {object}  dto.ErrorResponse
// @Failure      409              {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.recorder.RegisterFromRequest(c.Context(), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Adjust godoc
// @Summary      Ajuste de inventario
// @Description  delta positivo genera AJUSTE_POSITIVO, negativo AJUSTE_NEGATIVO. Admite Idempotency-Key.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                 false  "Llave de reintento"
// @Param        body             body      dto.AdjustmentRequest  true   "product_id, delta, reason"
// @Success      201              {object}  dto.MovementResponse
// @Failure      400              {object}  dto.ErrorResponse
// @Failure      409              {object}  dto.ErrorResponse
// @Router       /api/inventory/adjustments [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustmentRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.recorder.AdjustFromRequest(c.Context(), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Movements godoc
// @Summary      Kardex del producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id      path      string  true   "ID del producto"
// @Param        from    query     string  false  "Desde (YYYY-MM-DD)"
// @Param        to      query     string  false  "Hasta (YYYY-MM-DD)"
// @Param        limit   query     int     false  "Máximo (default 20, max 100)"
// @Param        offset  query     int     false  "Desplazamiento"
// @Success      200     {array}   dto.MovementResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/movements [get]
func (h *InventoryHandler) Movements(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	f := dto.MovementFilter{
		From: from,
		To:   to,
		PageRequest: dto.PageRequest{
			Limit:  c.QueryInt("limit", 20),
			Offset: c.QueryInt("offset", 0),
		},
	}
	if ok, err := validateStruct(c, &f); !ok {
		return err
	}
	out, err := h.ledger.ProductMovements(c.Context(), c.Params("id"), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SearchMovements godoc
// @Summary      Buscar en el kardex
// @Description  Movimientos de todos los productos por tipo, producto, usuario, referencia y fechas.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id  query     string  false  "ID del producto"
// @Param        type        query     string  false  "Tipo de movimiento (COMPRA, VENTA, ...)"
// @Param        user_id     query     string  false  "Usuario que registró"
// @Param        reference   query     string  false  "Referencia externa"
// @Param        from        query     string  false  "Desde (YYYY-MM-DD)"
// @Param        to          query     string  false  "Hasta (YYYY-MM-DD)"
// @Param        limit       query     int     false  "Máximo (default 20, max 100)"
// @Param        offset      query     int     false  "Desplazamiento"
// @Success      200         {object}  dto.MovementListResponse
// @Failure      400         {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) SearchMovements(c *fiber.Ctx) error {
	in, ok, err := movementSearch(c)
	if !ok {
		return err
	}
	out, err := h.ledger.SearchMovements(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CountMovements godoc
// @Summary      Contar movimientos
// @Description  Mismos filtros que la búsqueda; sin filtros cuenta todo el kardex.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id  query     string  false  "ID del producto"
// @Param        type        query     string  false  "Tipo de movimiento"
// @Param        from        query     string  false  "Desde (YYYY-MM-DD)"
// @Param        to          query     string  false  "Hasta (YYYY-MM-DD)"
// @Success      200         {object}  dto.MovementCountResponse
// @Failure      400         {object}  dto.ErrorResponse
// @Router       /api/inventory/movements/count [get]
func (h *InventoryHandler) CountMovements(c *fiber.Ctx) error {
	in, ok, err := movementSearch(c)
	if !ok {
		return err
	}
	n, err := h.ledger.CountMovements(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.MovementCountResponse{Total: n})
}

// Statistics godoc
// @Summary      Estadísticas de inventario
// @Description  Existencias, valor y alertas del catálogo; movimientos por tipo en el período.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        from  query     string  false  "Desde (YYYY-MM-DD)"
// @Param        to    query     string  false  "Hasta (YYYY-MM-DD)"
// @Success      200   {object}  dto.InventoryStatsResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/stats [get]
func (h *InventoryHandler) Statistics(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	out, err := h.ledger.Statistics(c.Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

func movementSearch(c *fiber.Ctx) (dto.MovementSearchRequest, bool, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return dto.MovementSearchRequest{}, false, badRequest(c, "INVALID_PARAMS", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return dto.MovementSearchRequest{}, false, badRequest(c, "INVALID_PARAMS", err.Error())
	}
	in := dto.MovementSearchRequest{
		ProductID: c.Query("product_id"),
		Type:      c.Query("type"),
		UserID:    c.Query("user_id"),
		Reference: c.Query("reference"),
		From:      from,
		To:        to,
		PageRequest: dto.PageRequest{
			Limit:  c.QueryInt("limit", 20),
			Offset: c.QueryInt("offset", 0),
		},
	}
	if ok, err := validateStruct(c, &in); !ok {
		return in, false, err
	}
	return in, true, nil
}

// Stock godoc
// @Summary      Stock actual
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del producto"
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/stock [get]
func (h *InventoryHandler) Stock(c *fiber.Ctx) error {
	out, err := h.ledger.CurrentStock(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Totals godoc
// @Summary      Totales de entradas y salidas
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id    path      string  true   "ID del producto"
// @Param        from  query     string  false  "Desde (YYYY-MM-DD)"
// @Param        to    query     string  false  "Hasta (YYYY-MM-DD)"
// @Success      200   {object}  dto.MovementTotalsResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/totals [get]
func (h *InventoryHandler) Totals(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	out, err := h.ledger.Totals(c.Context(), c.Params("id"), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Conciliación del kardex
// @Description  Verifica stock = inicial + entradas − salidas.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del producto"
// @Success      200  {object}  inventory.Reconciliation
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/reconcile [get]
func (h *InventoryHandler) Reconcile(c *fiber.Ctx) error {
	out, err := h.ledger.Reconcile(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetReplenishmentList godoc
// @Summary      Productos bajo stock mínimo
// @Description  Cantidad sugerida para volver a 1,5 veces el mínimo, por urgencia.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        limit  query     int  false  "Máximo de productos (default 100)"
// @Success      200    {array}   dto.ReplenishmentSuggestionDTO
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) GetReplenishmentList(c *fiber.Ctx) error {
	list, err := h.replenishment.GenerateReplenishmentList(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"total":          len(list),
		"replenishments": list,
	})
}
