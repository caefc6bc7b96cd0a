package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

const orderColumns = `
	id, number, supplier_id, order_date, estimated_delivery_date, actual_delivery_date, state,
	buyer_id, approver_id, approved_at, receiver_id, received_at,
	subtotal, tax_rate, tax_amount, discount, total, cancel_reason, canceled_at,
	notes, payment_terms, payment_method, delivery_address, supplier_reference,
	version, created_at, updated_at`

const lineColumns = `
	id, order_id, product_id, line_number, quantity, unit_price, discount_percent,
	discount_amount, subtotal, received_quantity, notes, supplier_code, supplier_name`

// OrderRepo implementación de OrderRepository sobre PostgreSQL (usable con pool o tx).
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador de órdenes. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// Create inserta la cabecera y sus líneas.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	query := `
		INSERT INTO purchase_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27)`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.Number, o.SupplierID, o.OrderDate, o.EstimatedDeliveryDate, o.ActualDeliveryDate, string(o.State),
		o.BuyerID, nullString(o.ApproverID), o.ApprovedAt, nullString(o.ReceiverID), o.ReceivedAt,
		o.Subtotal, o.TaxRate, o.TaxAmount, o.Discount, o.Total, o.CancelReason, o.CanceledAt,
		o.Notes, o.PaymentTerms, o.PaymentMethod, o.DeliveryAddress, o.SupplierReference,
		o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return mapError("insert purchase order", err)
	}
	return r.upsertLines(ctx, o)
}

// GetByID obtiene la orden con sus líneas. (nil, nil) si no existe.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id)
}

// GetByNumber obtiene la orden por número.
func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE number = $1`, number)
}

// GetForUpdate bloquea la fila de la orden (SELECT FOR UPDATE). Las líneas solo se
// modifican junto con la cabecera, así que el bloqueo de la cabecera las cubre.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
}

// Update persiste cabecera y líneas con control optimista de versión.
func (r *OrderRepo) Update(ctx context.Context, o *entity.Order) error {
	query := `
		UPDATE purchase_orders SET
			estimated_delivery_date = $3, actual_delivery_date = $4, state = $5,
			approver_id = $6, approved_at = $7, receiver_id = $8, received_at = $9,
			subtotal = $10, tax_rate = $11, tax_amount = $12, discount = $13, total = $14,
			cancel_reason = $15, canceled_at = $16, notes = $17, payment_terms = $18,
			payment_method = $19, delivery_address = $20, supplier_reference = $21,
			updated_at = $22, version = version + 1
		WHERE id = $1 AND version = $2`
	cmd, err := r.q.Exec(ctx, query,
		o.ID, o.Version,
		o.EstimatedDeliveryDate, o.ActualDeliveryDate, string(o.State),
		nullString(o.ApproverID), o.ApprovedAt, nullString(o.ReceiverID), o.ReceivedAt,
		o.Subtotal, o.TaxRate, o.TaxAmount, o.Discount, o.Total,
		o.CancelReason, o.CanceledAt, o.Notes, o.PaymentTerms,
		o.PaymentMethod, o.DeliveryAddress, o.SupplierReference,
		o.UpdatedAt,
	)
	if err != nil {
		return mapError("update purchase order", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return mapError("check purchase order", err)
		}
		if !exists {
			return domain.NewNotFoundError("orden", o.ID)
		}
		return fmt.Errorf("orden %s versión %d: %w", o.ID, o.Version, domain.ErrConcurrentModification)
	}
	o.Version++

	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.ID)
	}
	if _, err := r.q.Exec(ctx,
		`DELETE FROM purchase_order_lines WHERE order_id = $1 AND NOT (id = ANY($2))`, o.ID, ids,
	); err != nil {
		return mapError("delete removed lines", err)
	}
	return r.upsertLines(ctx, o)
}

// Delete elimina la orden; las líneas caen por ON DELETE CASCADE.
func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return mapError("delete purchase order", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("orden", id)
	}
	return nil
}

// Search filtra con paginación; devuelve además el total sin paginar.
func (r *OrderRepo) Search(ctx context.Context, f repository.OrderFilter) ([]*entity.Order, int, error) {
	where, args := orderWhere(f)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count purchase orders", err)
	}

	query := `SELECT ` + orderColumns + ` FROM purchase_orders` + where + ` ORDER BY order_date DESC, number DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, f.Offset)
	}
	list, err := r.getMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListDue órdenes en los estados dados con entrega estimada en [from, to].
func (r *OrderRepo) ListDue(ctx context.Context, states []entity.OrderState, from, to time.Time) ([]*entity.Order, error) {
	names := make([]string, 0, len(states))
	for _, st := range states {
		names = append(names, string(st))
	}
	query := `SELECT ` + orderColumns + ` FROM purchase_orders
		WHERE state = ANY($1) AND estimated_delivery_date BETWEEN $2 AND $3
		ORDER BY estimated_delivery_date`
	return r.getMany(ctx, query, names, from, to)
}

// StatsByState cantidad y suma de totales por estado de las órdenes emitidas en [from, to].
func (r *OrderRepo) StatsByState(ctx context.Context, from, to time.Time) (map[entity.OrderState]repository.OrderStateStats, error) {
	rows, err := r.q.Query(ctx, `
		SELECT state, count(*), COALESCE(sum(total), 0)
		FROM purchase_orders WHERE order_date BETWEEN $1 AND $2
		GROUP BY state`, from, to)
	if err != nil {
		return nil, mapError("stats purchase orders", err)
	}
	defer rows.Close()
	out := make(map[entity.OrderState]repository.OrderStateStats)
	for rows.Next() {
		var (
			state string
			st    repository.OrderStateStats
		)
		if err := rows.Scan(&state, &st.Count, &st.Total); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out[entity.OrderState(state)] = st
	}
	return out, rows.Err()
}

// DeliveryStats entregas de las órdenes emitidas en [from, to]. A tiempo se compara por día.
func (r *OrderRepo) DeliveryStats(ctx context.Context, from, to time.Time) (repository.DeliveryStats, error) {
	var st repository.DeliveryStats
	err := r.q.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE actual_delivery_date IS NOT NULL),
			count(*) FILTER (WHERE actual_delivery_date IS NOT NULL AND estimated_delivery_date IS NOT NULL
				AND (actual_delivery_date AT TIME ZONE 'UTC')::date <= (estimated_delivery_date AT TIME ZONE 'UTC')::date),
			COALESCE(sum(EXTRACT(EPOCH FROM actual_delivery_date - order_date) / 86400)
				FILTER (WHERE actual_delivery_date IS NOT NULL), 0)::numeric
		FROM purchase_orders WHERE order_date BETWEEN $1 AND $2`, from, to,
	).Scan(&st.Orders, &st.Delivered, &st.OnTime, &st.LeadTimeDays)
	if err != nil {
		return repository.DeliveryStats{}, mapError("delivery stats", err)
	}
	return st, nil
}

func orderWhere(f repository.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.SupplierID != "" {
		add("supplier_id = $%d", f.SupplierID)
	}
	if f.BuyerID != "" {
		add("buyer_id = $%d", f.BuyerID)
	}
	if f.State != "" {
		add("state = $%d", string(f.State))
	}
	if f.Number != "" {
		add("number LIKE '%%' || $%d || '%%'", f.Number)
	}
	if f.From != nil {
		add("order_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("order_date <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *OrderRepo) upsertLines(ctx context.Context, o *entity.Order) error {
	query := `
		INSERT INTO purchase_order_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			line_number = EXCLUDED.line_number, quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price, discount_percent = EXCLUDED.discount_percent,
			discount_amount = EXCLUDED.discount_amount, subtotal = EXCLUDED.subtotal,
			received_quantity = EXCLUDED.received_quantity, notes = EXCLUDED.notes,
			supplier_code = EXCLUDED.supplier_code, supplier_name = EXCLUDED.supplier_name`
	for _, l := range o.Lines {
		_, err := r.q.Exec(ctx, query,
			l.ID, o.ID, l.ProductID, l.LineNumber, l.Quantity, l.UnitPrice, l.DiscountPercent,
			l.DiscountAmount, l.Subtotal, l.ReceivedQuantity, l.Notes, l.SupplierCode, l.SupplierName,
		)
		if err != nil {
			return mapError(fmt.Sprintf("upsert line %d", l.LineNumber), err)
		}
	}
	return nil
}

func (r *OrderRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("get purchase order", err)
	}
	if err := r.loadLines(ctx, []*entity.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) getMany(ctx context.Context, query string, args ...any) ([]*entity.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list purchase orders", err)
	}
	var list []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// loadLines carga las líneas de todas las órdenes en una sola consulta.
func (r *OrderRepo) loadLines(ctx context.Context, orders []*entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+lineColumns+` FROM purchase_order_lines WHERE order_id = ANY($1) ORDER BY order_id, line_number`, ids)
	if err != nil {
		return mapError("list order lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.LineNumber, &l.Quantity, &l.UnitPrice,
			&l.DiscountPercent, &l.DiscountAmount, &l.Subtotal, &l.ReceivedQuantity,
			&l.Notes, &l.SupplierCode, &l.SupplierName); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if o := byID[l.OrderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var (
		o                  entity.Order
		state              string
		approver, receiver *string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.SupplierID, &o.OrderDate, &o.EstimatedDeliveryDate, &o.ActualDeliveryDate, &state,
		&o.BuyerID, &approver, &o.ApprovedAt, &receiver, &o.ReceivedAt,
		&o.Subtotal, &o.TaxRate, &o.TaxAmount, &o.Discount, &o.Total, &o.CancelReason, &o.CanceledAt,
		&o.Notes, &o.PaymentTerms, &o.PaymentMethod, &o.DeliveryAddress, &o.SupplierReference,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.State = entity.OrderState(state)
	o.ApproverID = fromNullString(approver)
	o.ReceiverID = fromNullString(receiver)
	return &o, nil
}
