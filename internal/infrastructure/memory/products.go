package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

type productRepo struct {
	s  *Store
	tx *memTx
}

func (r productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	if r.tx != nil {
		if p, ok := r.tx.products[id]; ok {
			c := *p
			return &c, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("GetForUpdate requiere una transacción")
	}
	if err := r.tx.lock(ctx, "producto:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r productRepo) UpdateStock(ctx context.Context, productID string, stock int64, cost decimal.Decimal) error {
	if r.tx == nil {
		return r.s.Run(ctx, func(uow repository.UnitOfWork) error {
			return uow.Products().UpdateStock(ctx, productID, stock, cost)
		})
	}
	p, err := r.GetForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.NewNotFoundError("producto", productID)
	}
	p.Stock = stock
	p.Cost = cost
	p.UpdatedAt = time.Now()
	r.tx.products[productID] = p
	return nil
}

func (r productRepo) ListBelowMinimum(_ context.Context, limit int) ([]*entity.Product, error) {
	r.s.mu.RLock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.Active && p.BelowMinimum() {
			c := *p
			out = append(out, &c)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return paginate(out, limit, 0), nil
}

func (r productRepo) Summary(_ context.Context) (repository.ProductSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := repository.ProductSummary{Value: decimal.Zero}
	for _, p := range r.s.products {
		sum.Products++
		if !p.Active {
			continue
		}
		sum.Active++
		sum.Units += p.Stock
		sum.Value = sum.Value.Add(p.Cost.Mul(decimal.NewFromInt(p.Stock)))
		if p.BelowMinimum() {
			sum.BelowMinimum++
		}
		if p.Stock == 0 {
			sum.OutOfStock++
		}
	}
	return sum, nil
}

// Create da de alta el producto fuera de cualquier transacción; el stock
// inicial queda como apertura del kardex.
func (r productRepo) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.products {
		if other.ID == p.ID || other.SKU == p.SKU {
			return fmt.Errorf("producto %s: %w", p.SKU, domain.ErrDuplicate)
		}
	}
	p.InitialStock = p.Stock
	c := *p
	r.s.products[p.ID] = &c
	return nil
}
