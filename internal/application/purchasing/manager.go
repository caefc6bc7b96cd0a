package purchasing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/application/outbox"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/purchasing"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// Config parámetros del módulo de compras.
type Config struct {
	DefaultTaxRate decimal.Decimal // porcentaje, ej. 19
	NumberPrefix   string          // OC
	MaxRetries     int             // reintentos ante modificación concurrente
	RetryBackoff   time.Duration
	DueSoonDays    int
}

// DefaultConfig valores por defecto.
func DefaultConfig() Config {
	return Config{
		DefaultTaxRate: decimal.NewFromInt(19),
		NumberPrefix:   "OC",
		MaxRetries:     3,
		RetryBackoff:   20 * time.Millisecond,
		DueSoonDays:    7,
	}
}

// OrderManager gestiona el ciclo de vida de las órdenes de compra. Cada operación
// pública corre en una única transacción que bloquea la orden y, en recepciones,
// los productos afectados en orden ascendente de ID.
type OrderManager struct {
	txRunner     repository.TxRunner
	orderRepo    repository.OrderRepository
	supplierRepo repository.SupplierRepository
	userRepo     repository.UserRepository
	productRepo  repository.ProductRepository
	sequence     repository.OrderNumberSequence
	recorder     StockRecorder
	renderer     OrderDocumentRenderer
	lines        *purchasing.LineLedger
	cfg          Config
	now          func() time.Time
	log          zerolog.Logger
}

// NewOrderManager construye el gestor. renderer puede ser nil (sin PDF); now nil usa time.Now.
func NewOrderManager(
	txRunner repository.TxRunner,
	orderRepo repository.OrderRepository,
	supplierRepo repository.SupplierRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	sequence repository.OrderNumberSequence,
	recorder StockRecorder,
	renderer OrderDocumentRenderer,
	cfg Config,
	log zerolog.Logger,
	now func() time.Time,
) *OrderManager {
	if now == nil {
		now = time.Now
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "OC"
	}
	if cfg.DueSoonDays <= 0 {
		cfg.DueSoonDays = 7
	}
	return &OrderManager{
		txRunner:     txRunner,
		orderRepo:    orderRepo,
		supplierRepo: supplierRepo,
		userRepo:     userRepo,
		productRepo:  productRepo,
		sequence:     sequence,
		recorder:     recorder,
		renderer:     renderer,
		lines:        purchasing.NewLineLedger(func() string { return uuid.New().String() }),
		cfg:          cfg,
		now:          now,
		log:          log.With().Str("component", "ordenes_compra").Logger(),
	}
}

// Create crea una orden en BORRADOR con número OC-YYYYMMDD-NNNNNN.
func (m *OrderManager) Create(ctx context.Context, buyerID string, in dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	if in.SupplierID == "" {
		return nil, domain.NewValidationError("proveedor_id", "es obligatorio")
	}
	if buyerID == "" {
		return nil, domain.NewValidationError("comprador_id", "es obligatorio")
	}
	if len(in.Lines) == 0 {
		return nil, domain.NewValidationError("lineas", "la orden debe tener al menos una línea")
	}
	if err := m.checkSupplier(ctx, in.SupplierID); err != nil {
		return nil, err
	}
	if _, err := m.activeUser(ctx, buyerID, "comprador_id"); err != nil {
		return nil, err
	}
	if err := m.checkProducts(ctx, m.productRepo, in.Lines); err != nil {
		return nil, err
	}

	taxRate := m.cfg.DefaultTaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	discount := decimal.Zero
	if in.Discount != nil {
		discount = *in.Discount
	}
	if err := validateHeaderAmounts(taxRate, discount); err != nil {
		return nil, err
	}

	var order *entity.Order
	err := m.withRetry(ctx, "crear", func() error {
		seq, err := m.sequence.Next(ctx)
		if err != nil {
			return fmt.Errorf("secuencia de número de orden: %w", err)
		}
		now := m.now()
		o := &entity.Order{
			ID:                    uuid.New().String(),
			Number:                FormatNumber(m.cfg.NumberPrefix, now, seq),
			SupplierID:            in.SupplierID,
			OrderDate:             now,
			EstimatedDeliveryDate: in.EstimatedDeliveryDate,
			State:                 entity.OrderStateBorrador,
			BuyerID:               buyerID,
			TaxRate:               taxRate,
			Discount:              discount,
			Notes:                 in.Notes,
			PaymentTerms:          in.PaymentTerms,
			PaymentMethod:         in.PaymentMethod,
			DeliveryAddress:       in.DeliveryAddress,
			SupplierReference:     in.SupplierReference,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		for _, l := range in.Lines {
			if _, err := m.lines.AddLine(o, toNewLine(l)); err != nil {
				return err
			}
		}
		purchasing.RecalculateTotals(o)

		return m.txRunner.Run(ctx, func(uow repository.UnitOfWork) error {
			if err := uow.Orders().Create(ctx, o); err != nil {
				return fmt.Errorf("guardar orden: %w", err)
			}
			if err := m.recordEvent(ctx, uow, o, entity.EventOrderCreated); err != nil {
				return err
			}
			order = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("order_id", order.ID).Str("number", order.Number).Msg("orden creada")
	return response(order), nil
}

// Update modifica la cabecera y, si vienen, reemplaza las líneas. Solo en BORRADOR o PENDIENTE.
func (m *OrderManager) Update(ctx context.Context, id string, in dto.UpdateOrderRequest) (*dto.OrderResponse, error) {
	return m.mutate(ctx, id, "actualizar", func(uow repository.UnitOfWork, o *entity.Order) ([]string, error) {
		if _, err := purchasing.Next(o.State, purchasing.ActionUpdate); err != nil {
			return nil, err
		}
		taxRate, discount := o.TaxRate, o.Discount
		if in.TaxRate != nil {
			taxRate = *in.TaxRate
		}
		if in.Discount != nil {
			discount = *in.Discount
		}
		if err := validateHeaderAmounts(taxRate, discount); err != nil {
			return nil, err
		}
		o.TaxRate, o.Discount = taxRate, discount
		if in.EstimatedDeliveryDate != nil {
			o.EstimatedDeliveryDate = in.EstimatedDeliveryDate
		}
		setIfPresent(&o.Notes, in.Notes)
		setIfPresent(&o.PaymentTerms, in.PaymentTerms)
		setIfPresent(&o.PaymentMethod, in.PaymentMethod)
		setIfPresent(&o.DeliveryAddress, in.DeliveryAddress)
		setIfPresent(&o.SupplierReference, in.SupplierReference)

		if in.Lines != nil {
			if len(*in.Lines) == 0 {
				return nil, domain.NewValidationError("lineas", "la orden debe tener al menos una línea")
			}
			if err := m.checkProducts(ctx, uow.Products(), *in.Lines); err != nil {
				return nil, err
			}
			o.Lines = nil
			for _, l := range *in.Lines {
				if _, err := m.lines.AddLine(o, toNewLine(l)); err != nil {
					return nil, err
				}
			}
		}
		purchasing.RecalculateTotals(o)
		return []string{entity.EventOrderUpdated}, nil
	})
}

// Delete elimina una orden en BORRADOR con sus líneas.
func (m *OrderManager) Delete(ctx context.Context, id string) error {
	return m.withRetry(ctx, "eliminar", func() error {
		return m.txRunner.Run(ctx, func(uow repository.UnitOfWork) error {
			o, err := m.lockOrder(ctx, uow, id)
			if err != nil {
				return err
			}
			if _, err := purchasing.Next(o.State, purchasing.ActionDelete); err != nil {
				return err
			}
			if err := uow.Orders().Delete(ctx, id); err != nil {
				return fmt.Errorf("eliminar orden: %w", err)
			}
			return m.recordEvent(ctx, uow, o, entity.EventOrderDeleted)
		})
	})
}

// AddLine agrega una línea a una orden modificable.
func (m *OrderManager) AddLine(ctx context.Context, id string, in dto.OrderLineRequest) (*dto.OrderResponse, error) {
	return m.mutate(ctx, id, "agregar_linea", func(uow repository.UnitOfWork, o *entity.Order) ([]string, error) {
		if err := m.checkProducts(ctx, uow.Products(), []dto.OrderLineRequest{in}); err != nil {
			return nil, err
		}
		if _, err := m.lines.AddLine(o, toNewLine(in)); err != nil {
			return nil, err
		}
		return []string{entity.EventOrderUpdated}, nil
	})
}

// UpdateLine cambia cantidad, precio y descuento de una línea.
func (m *OrderManager) UpdateLine(ctx context.Context, id, lineID string, in dto.UpdateLineRequest) (*dto.OrderResponse, error) {
	return m.mutate(ctx, id, "actualizar_linea", func(_ repository.UnitOfWork, o *entity.Order) ([]string, error) {
		_, err := m.lines.UpdateLine(o, lineID, purchasing.LineChange{
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
		})
		if err != nil {
			return nil, err
		}
		return []string{entity.EventOrderUpdated}, nil
	})
}

// RemoveLine quita una línea de una orden modificable.
func (m *OrderManager) RemoveLine(ctx context.Context, id, lineID string) (*dto.OrderResponse, error) {
	return m.mutate(ctx, id, "eliminar_linea", func(_ repository.UnitOfWork, o *entity.Order) ([]string, error) {
		if err := m.lines.RemoveLine(o, lineID); err != nil {
			return nil, err
		}
		return []string{entity.EventOrderUpdated}, nil
	})
}

// mutate bloquea la orden, aplica fn, persiste con control de versión y registra los eventos
// devueltos, todo en una transacción. Reintenta ante modificación concurrente.
func (m *OrderManager) mutate(
	ctx context.Context,
	id, op string,
	fn func(uow repository.UnitOfWork, o *entity.Order) ([]string, error),
) (*dto.OrderResponse, error) {
	var out *entity.Order
	err := m.withRetry(ctx, op, func() error {
		return m.txRunner.Run(ctx, func(uow repository.UnitOfWork) error {
			o, err := m.lockOrder(ctx, uow, id)
			if err != nil {
				return err
			}
			from := o.State
			events, err := fn(uow, o)
			if err != nil {
				return err
			}
			o.UpdatedAt = m.now()
			if err := uow.Orders().Update(ctx, o); err != nil {
				return fmt.Errorf("guardar orden: %w", err)
			}
			for _, ev := range events {
				if err := m.recordEvent(ctx, uow, o, ev); err != nil {
					return err
				}
			}
			if from != o.State {
				m.log.Info().
					Str("order_id", o.ID).
					Str("number", o.Number).
					Str("from", string(from)).
					Str("to", string(o.State)).
					Msg("transición de orden")
			}
			out = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return response(out), nil
}

// withRetry repite op mientras falle por modificación concurrente, hasta MaxRetries veces.
func (m *OrderManager) withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !domain.IsRetryable(err) || attempt >= m.cfg.MaxRetries {
			return err
		}
		m.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("conflicto de concurrencia, reintentando")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * m.cfg.RetryBackoff):
		}
	}
}

func (m *OrderManager) lockOrder(ctx context.Context, uow repository.UnitOfWork, id string) (*entity.Order, error) {
	o, err := uow.Orders().GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("bloquear orden: %w", err)
	}
	if o == nil {
		return nil, domain.NewNotFoundError("orden", id)
	}
	return o, nil
}

// lockProducts bloquea los productos en orden ascendente de ID para evitar deadlocks
// entre recepciones concurrentes de órdenes distintas.
func lockProducts(ctx context.Context, uow repository.UnitOfWork, productIDs []string) error {
	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := uow.Products().GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("bloquear producto: %w", err)
		}
		if p == nil {
			return domain.NewNotFoundError("producto", id)
		}
	}
	return nil
}

func (m *OrderManager) recordEvent(ctx context.Context, uow repository.UnitOfWork, o *entity.Order, eventType string) error {
	return outbox.Record(ctx, uow.Outbox(), outbox.AggregateOrder, o.ID, eventType, orderEvent{
		OrderID: o.ID,
		Number:  o.Number,
		State:   string(o.State),
		Total:   o.Total.StringFixed(2),
		Version: o.Version,
	}, m.now())
}

func (m *OrderManager) checkSupplier(ctx context.Context, supplierID string) error {
	s, err := m.supplierRepo.GetByID(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("obtener proveedor: %w", err)
	}
	if s == nil {
		return domain.NewNotFoundError("proveedor", supplierID)
	}
	if !s.Active {
		return domain.NewValidationError("proveedor_id", "el proveedor %s está inactivo", supplierID)
	}
	return nil
}

func (m *OrderManager) activeUser(ctx context.Context, userID, field string) (*entity.User, error) {
	if userID == "" {
		return nil, domain.NewValidationError(field, "es obligatorio")
	}
	u, err := m.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("obtener usuario: %w", err)
	}
	if u == nil {
		return nil, domain.NewNotFoundError("usuario", userID)
	}
	if !u.IsActive() {
		return nil, domain.NewValidationError(field, "el usuario %s no está activo", userID)
	}
	return u, nil
}

func (m *OrderManager) checkProducts(ctx context.Context, repo repository.ProductRepository, lines []dto.OrderLineRequest) error {
	for _, l := range lines {
		if l.ProductID == "" {
			return domain.NewValidationError("producto_id", "es obligatorio")
		}
		p, err := repo.GetByID(ctx, l.ProductID)
		if err != nil {
			return fmt.Errorf("obtener producto: %w", err)
		}
		if p == nil {
			return domain.NewNotFoundError("producto", l.ProductID)
		}
	}
	return nil
}

// FormatNumber arma el número de orden: <prefijo>-YYYYMMDD-NNNNNN.
func FormatNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, at.Format("20060102"), seq)
}

type orderEvent struct {
	OrderID string `json:"order_id"`
	Number  string `json:"number"`
	State   string `json:"state"`
	Total   string `json:"total"`
	Version int64  `json:"version"`
}

func validateHeaderAmounts(taxRate, discount decimal.Decimal) error {
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return domain.NewValidationError("tasa_impuesto", "debe estar entre 0 y 100")
	}
	if !purchasing.HasScale2(taxRate) {
		return domain.NewValidationError("tasa_impuesto", "admite a lo sumo 2 decimales")
	}
	if discount.IsNegative() {
		return domain.NewValidationError("descuento", "no puede ser negativo")
	}
	if !purchasing.HasScale2(discount) {
		return domain.NewValidationError("descuento", "admite a lo sumo 2 decimales")
	}
	return nil
}

func toNewLine(l dto.OrderLineRequest) purchasing.NewLine {
	return purchasing.NewLine{
		ProductID:       l.ProductID,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		DiscountPercent: l.DiscountPercent,
		Notes:           l.Notes,
		SupplierCode:    l.SupplierCode,
		SupplierName:    l.SupplierName,
	}
}

func setIfPresent(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func response(o *entity.Order) *dto.OrderResponse {
	out := dto.ToOrderResponse(o)
	return &out
}
