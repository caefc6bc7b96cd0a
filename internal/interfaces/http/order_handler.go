package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/compras-api/internal/application/dto"
	apppurchasing "github.com/jhoicas/compras-api/internal/application/purchasing"
)

// OrderHandler expone el ciclo de vida de las órdenes de compra (protegido).
type OrderHandler struct {
	manager *apppurchasing.OrderManager
	now     func() time.Time
}

// NewOrderHandler construye el handler.
func NewOrderHandler(manager *apppurchasing.OrderManager) *OrderHandler {
	return &OrderHandler{manager: manager, now: time.Now}
}

// Create godoc
// @Summary      Crear orden de compra
// @Description  Crea la orden en BORRADOR con número OC-YYYYMMDD-NNNNNN y totales calculados.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateOrderRequest  true  "proveedor, líneas y condiciones"
// @Success      201   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateOrderRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.manager.Create(c.Context(), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Buscar órdenes
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        supplier_id  query     string  false  "Proveedor"
// @Param        buyer_id     query     string  false  "Comprador"
// @Param        state        query     string  false  "Estado (BORRADOR, PENDIENTE, ...)"
// @Param        number       query     string  false  "Número (coincidencia parcial)"
// @Param        from         query     string  false  "Fecha de orden desde (YYYY-MM-DD)"
// @Param        to           query     string  false  "Fecha de orden hasta (YYYY-MM-DD)"
// @Param        limit        query     int     false  "Máximo de resultados (default 20, max 100)"
// @Param        offset       query     int     false  "Desplazamiento"
// @Success      200          {object}  dto.OrderListResponse
// @Failure      400          {object}  dto.ErrorResponse
// @Router       /api/orders [get]
func (h *OrderHandler) List(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	in := dto.OrderSearchRequest{
		SupplierID: c.Query("supplier_id"),
		BuyerID:    c.Query("buyer_id"),
		State:      c.Query("state"),
		Number:     c.Query("number"),
		From:       from,
		To:         to,
		PageRequest: dto.PageRequest{
			Limit:  c.QueryInt("limit", 20),
			Offset: c.QueryInt("offset", 0),
		},
	}
	if ok, err := validateStruct(c, &in); !ok {
		return err
	}
	out, err := h.manager.Search(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener orden
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.manager.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetByNumber godoc
// @Summary      Obtener orden por número
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        numero  path      string  true  "Número OC-YYYYMMDD-NNNNNN"
// @Success      200     {object}  dto.OrderResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Router       /api/orders/number/{numero} [get]
func (h *OrderHandler) GetByNumber(c *fiber.Ctx) error {
	out, err := h.manager.GetByNumber(c.Context(), c.Params("numero"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Actualizar orden
// @Description  Solo en BORRADOR o PENDIENTE. Si viene lines, reemplaza todas las líneas.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                  true  "ID de la orden"
// @Param        body  body      dto.UpdateOrderRequest  true  "campos a modificar"
// @Success      200   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [put]
func (h *OrderHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateOrderRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.manager.Update(c.Context(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar orden
// @Description  Solo órdenes en BORRADOR.
// @Tags         orders
// @Security     Bearer
// @Param        id   path  string  true  "ID de la orden"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [delete]
func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	if err := h.manager.Delete(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddLine godoc
// @Summary      Agregar línea
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "ID de la orden"
// @Param        body  body      dto.OrderLineRequest  true  "línea"
// @Success      200   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/lines [post]
func (h *OrderHandler) AddLine(c *fiber.Ctx) error {
	var in dto.OrderLineRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.manager.AddLine(c.Context(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// UpdateLine godoc
// @Summary      Modificar línea
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path      string                 true  "ID de la orden"
// @Param        lineId  path      string                 true  "ID de la línea"
// @Param        body    body      dto.UpdateLineRequest  true  "cantidad, precio y descuento"
// @Success      200     {object}  dto.OrderResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/lines/{lineId} [put]
func (h *OrderHandler) UpdateLine(c *fiber.Ctx) error {
	var in dto.UpdateLineRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.manager.UpdateLine(c.Context(), c.Params("id"), c.Params("lineId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// RemoveLine godoc
// @Summary      Quitar línea
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id      path      string  true  "ID de la orden"
// @Param        lineId  path      string  true  "ID de la línea"
// @Success      200     {object}  dto.OrderResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/lines/{lineId} [delete]
func (h *OrderHandler) RemoveLine(c *fiber.Ctx) error {
	out, err := h.manager.RemoveLine(c.Context(), c.Params("id"), c.Params("lineId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Approve godoc
// @Summary      Aprobar orden
// @Description  BORRADOR o PENDIENTE → PENDIENTE con aprobador registrado. Requiere rol aprobador.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/approve [post]
func (h *OrderHandler) Approve(c *fiber.Ctx) error {
	out, err := h.manager.Approve(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Send godoc
// @Summary      Enviar orden al proveedor
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/send [post]
func (h *OrderHandler) Send(c *fiber.Ctx) error {
	return h.respond(c, h.manager.Send)
}

// Confirm godoc
// @Summary      Registrar confirmación del proveedor
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/confirm [post]
func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	return h.respond(c, h.manager.Confirm)
}

// MarkInTransit godoc
// @Summary      Marcar orden en tránsito
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/in-transit [post]
func (h *OrderHandler) MarkInTransit(c *fiber.Ctx) error {
	return h.respond(c, h.manager.MarkInTransit)
}

// Complete godoc
// @Summary      Completar orden recibida
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/complete [post]
func (h *OrderHandler) Complete(c *fiber.Ctx) error {
	return h.respond(c, h.manager.Complete)
}

// ReceiveAll godoc
// @Summary      Recibir todo lo pendiente
// @Description  Genera un movimiento COMPRA por línea con saldo y completa la orden. Admite Idempotency-Key.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id               path      string  true   "ID de la orden"
// @Param        Idempotency-Key  header    string  false  "Llave de reintento"
// @Success      200              {object}  dto.OrderResponse
// @Failure      403              {object}  dto.ErrorResponse
// @Failure      409              {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/receive [post]
func (h *OrderHandler) ReceiveAll(c *fiber.Ctx) error {
	out, err := h.manager.ReceiveAll(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ReceivePartial godoc
// @Summary      Recepción parcial
// @Description  Cantidades por ID de línea; ninguna puede superar lo pendiente. Admite Idempotency-Key.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id               path      string                     true   "ID de la orden"
// @Param        Idempotency-Key  header    string                     false  "Llave de reintento"
// @Param        body             body      dto.ReceivePartialRequest  true   "lineID → cantidad"
// @Success      200              {object}  dto.OrderResponse
// @Failure      400              {object}  dto.ErrorResponse
// @Failure      409              {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/receive-partial [post]
func (h *OrderHandler) ReceivePartial(c *fiber.Ctx) error {
	var in dto.ReceivePartialRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.manager.ReceivePartial(c.Context(), c.Params("id"), GetUserID(c), in.Quantities)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Cancelar orden
// @Description  Requiere motivo. Lo ya recibido permanece en stock. Admite Idempotency-Key.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id               path      string                  true   "ID de la orden"
// @Param        Idempotency-Key  header    string                  false  "Llave de reintento"
// @Param        body             body      dto.CancelOrderRequest  true   "motivo"
// @Success      200              {object}  dto.OrderResponse
// @Failure      400              {object}  dto.ErrorResponse
// @Failure      409              {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	// el motivo en blanco lo rechaza el caso de uso con su propio mensaje
	out, err := h.manager.Cancel(c.Context(), c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Document godoc
// @Summary      PDF de la orden
// @Description  Representación impresa para el proveedor. No disponible en BORRADOR.
// @Tags         orders
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {file}    binary
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      501  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/pdf [get]
func (h *OrderHandler) Document(c *fiber.Ctx) error {
	pdf, filename, err := h.manager.Document(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filename+`"`)
	return c.Send(pdf)
}

// Upcoming godoc
// @Summary      Órdenes con entrega próxima
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        days  query     int  false  "Días hacia adelante (default 7)"
// @Success      200   {array}   dto.OrderResponse
// @Router       /api/orders/upcoming [get]
func (h *OrderHandler) Upcoming(c *fiber.Ctx) error {
	out, err := h.manager.DueSoon(c.Context(), c.QueryInt("days", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Overdue godoc
// @Summary      Órdenes con entrega vencida
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.OrderResponse
// @Router       /api/orders/overdue [get]
func (h *OrderHandler) Overdue(c *fiber.Ctx) error {
	out, err := h.manager.Overdue(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Stats godoc
// @Summary      Estadísticas por estado
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        from  query     string  false  "Desde (YYYY-MM-DD). Default: hace 30 días."
// @Param        to    query     string  false  "Hasta (YYYY-MM-DD). Default: ahora."
// @Success      200   {object}  dto.OrderStatsResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/orders/stats [get]
func (h *OrderHandler) Stats(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return badRequest(c, "INVALID_PARAMS", err.Error())
	}
	end := h.now()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}
	out, err := h.manager.Stats(c.Context(), start, end)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// respond ejecuta una transición sin cuerpo.
func (h *OrderHandler) respond(c *fiber.Ctx, fn func(ctx context.Context, id string) (*dto.OrderResponse, error)) error {
	out, err := fn(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
