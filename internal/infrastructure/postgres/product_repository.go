package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

var _ repository.ProductCatalogRepository = (*ProductRepo)(nil)

const productColumns = `id, sku, name, price, cost, stock, initial_stock, min_stock, active, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un producto; el stock inicial del kardex es el stock con que se da de alta.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	p.InitialStock = p.Stock
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.SKU, p.Name, p.Price, p.Cost, p.Stock, p.InitialStock, p.MinStock, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	return mapError("insert product", err)
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetForUpdate obtiene el producto y bloquea la fila (SELECT FOR UPDATE).
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

// UpdateStock fija stock y costo promedio (usado por el motor de inventario).
func (r *ProductRepo) UpdateStock(ctx context.Context, productID string, stock int64, cost decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET stock = $2, cost = $3, updated_at = now() WHERE id = $1`,
		productID, stock, cost,
	)
	if err != nil {
		return mapError("update product stock", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("producto", productID)
	}
	return nil
}

// ListBelowMinimum productos activos con stock bajo su mínimo, por SKU.
func (r *ProductRepo) ListBelowMinimum(ctx context.Context, limit int) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE active AND stock < min_stock
		ORDER BY sku LIMIT $1`, limit)
	if err != nil {
		return nil, mapError("list below minimum", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Summary existencias agregadas; unidades, valor y alertas cuentan solo productos activos.
func (r *ProductRepo) Summary(ctx context.Context) (repository.ProductSummary, error) {
	var sum repository.ProductSummary
	err := r.q.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE active),
			COALESCE(sum(stock) FILTER (WHERE active), 0),
			COALESCE(sum(stock * cost) FILTER (WHERE active), 0),
			count(*) FILTER (WHERE active AND stock < min_stock),
			count(*) FILTER (WHERE active AND stock = 0)
		FROM products`,
	).Scan(&sum.Products, &sum.Active, &sum.Units, &sum.Value, &sum.BelowMinimum, &sum.OutOfStock)
	if err != nil {
		return repository.ProductSummary{}, mapError("product summary", err)
	}
	return sum, nil
}

func (r *ProductRepo) getOne(ctx context.Context, query, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("get product", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.InitialStock,
		&p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
