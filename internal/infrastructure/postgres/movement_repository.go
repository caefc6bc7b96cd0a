package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `
	id, product_id, type, quantity, stock_before, stock_after, user_id, date,
	external_reference, order_id, reason, notes, unit_cost, total_cost`

// MovementRepo kardex sobre PostgreSQL. Solo INSERT y SELECT.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create agrega una fila al kardex.
func (r *MovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.ProductID, string(m.Type), m.Quantity, m.StockBefore, m.StockAfter, m.UserID, m.Date,
		m.ExternalReference, nullString(m.OrderID), m.Reason, m.Notes, m.UnitCost, m.TotalCost,
	)
	return mapError("insert stock movement", err)
}

// GetByID obtiene un movimiento por ID.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("get movement", err)
	}
	return m, nil
}

// ListByProduct lista movimientos de un producto en un rango de fechas, más recientes primero.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE product_id = $1`
	args := []any{productID}
	pos := 2
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", pos)
		args = append(args, *from)
		pos++
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", pos)
		args = append(args, *to)
		pos++
	}
	query += " ORDER BY date DESC, seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", pos)
		args = append(args, limit)
		pos++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", pos)
		args = append(args, offset)
	}
	return r.list(ctx, query, args...)
}

// ListByReference movimientos con la referencia externa dada, en orden de registro.
func (r *MovementRepo) ListByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error) {
	return r.list(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE external_reference = $1 ORDER BY seq`, reference)
}

// Totals suma entradas y salidas del producto en el rango.
func (r *MovementRepo) Totals(ctx context.Context, productID string, from, to *time.Time) (int64, int64, error) {
	inbound := make([]string, 0, 5)
	for _, t := range []entity.MovementType{
		entity.MovementTypeCompra,
		entity.MovementTypeDevolucionEntrada,
		entity.MovementTypeAjustePositivo,
		entity.MovementTypeTransferenciaEntrada,
		entity.MovementTypeInventarioInicial,
	} {
		inbound = append(inbound, string(t))
	}
	var in, out int64
	err := r.q.QueryRow(ctx, `
		SELECT
			COALESCE(sum(quantity) FILTER (WHERE type = ANY($2)), 0),
			COALESCE(sum(quantity) FILTER (WHERE NOT (type = ANY($2))), 0)
		FROM stock_movements
		WHERE product_id = $1
		  AND ($3::timestamptz IS NULL OR date >= $3)
		  AND ($4::timestamptz IS NULL OR date <= $4)`,
		productID, inbound, from, to,
	).Scan(&in, &out)
	if err != nil {
		return 0, 0, mapError("movement totals", err)
	}
	return in, out, nil
}

// Search busca en el kardex de todos los productos, más recientes primero.
func (r *MovementRepo) Search(ctx context.Context, c repository.MovementCriteria) ([]*entity.StockMovement, int, error) {
	where, args := movementWhere(c)
	total, err := r.count(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements` + where + ` ORDER BY date DESC, seq DESC`
	if c.Limit > 0 {
		args = append(args, c.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	list, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Count cuenta los movimientos que cumplen los criterios.
func (r *MovementRepo) Count(ctx context.Context, c repository.MovementCriteria) (int, error) {
	where, args := movementWhere(c)
	return r.count(ctx, where, args)
}

// StatsByType cantidad de movimientos y unidades por tipo en el rango (nil = sin límite).
func (r *MovementRepo) StatsByType(ctx context.Context, from, to *time.Time) (map[entity.MovementType]repository.MovementTypeStats, error) {
	where, args := movementWhere(repository.MovementCriteria{From: from, To: to})
	rows, err := r.q.Query(ctx, `SELECT type, count(*), COALESCE(sum(quantity), 0) FROM stock_movements`+where+` GROUP BY type`, args...)
	if err != nil {
		return nil, mapError("movement stats", err)
	}
	defer rows.Close()
	out := make(map[entity.MovementType]repository.MovementTypeStats)
	for rows.Next() {
		var (
			typ string
			st  repository.MovementTypeStats
		)
		if err := rows.Scan(&typ, &st.Count, &st.Units); err != nil {
			return nil, fmt.Errorf("scan movement stats: %w", err)
		}
		out[entity.MovementType(typ)] = st
	}
	return out, rows.Err()
}

func (r *MovementRepo) count(ctx context.Context, where string, args []any) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM stock_movements`+where, args...).Scan(&n); err != nil {
		return 0, mapError("count movements", err)
	}
	return n, nil
}

func movementWhere(c repository.MovementCriteria) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if c.ProductID != "" {
		add("product_id = $%d", c.ProductID)
	}
	if c.Type != "" {
		add("type = $%d", string(c.Type))
	}
	if c.UserID != "" {
		add("user_id = $%d", c.UserID)
	}
	if c.Reference != "" {
		add("external_reference = $%d", c.Reference)
	}
	if c.From != nil {
		add("date >= $%d", *c.From)
	}
	if c.To != nil {
		add("date <= $%d", *c.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *MovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list movements", err)
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var (
		m       entity.StockMovement
		typ     string
		orderID *string
	)
	err := row.Scan(&m.ID, &m.ProductID, &typ, &m.Quantity, &m.StockBefore, &m.StockAfter, &m.UserID, &m.Date,
		&m.ExternalReference, &orderID, &m.Reason, &m.Notes, &m.UnitCost, &m.TotalCost)
	if err != nil {
		return nil, err
	}
	m.Type = entity.MovementType(typ)
	m.OrderID = fromNullString(orderID)
	return &m, nil
}
