package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

type orderRepo struct {
	s  *Store
	tx *memTx
}

func (r orderRepo) Create(ctx context.Context, o *entity.Order) error {
	if r.tx == nil {
		return r.s.Run(ctx, func(uow repository.UnitOfWork) error { return uow.Orders().Create(ctx, o) })
	}
	r.s.mu.RLock()
	_, exists := r.s.orders[o.ID]
	_, dupNumber := r.s.numbers[o.Number]
	r.s.mu.RUnlock()
	if exists || dupNumber {
		return fmt.Errorf("orden %s: %w", o.Number, domain.ErrDuplicate)
	}
	for _, staged := range r.tx.orders {
		if staged.Number == o.Number {
			return fmt.Errorf("orden %s: %w", o.Number, domain.ErrDuplicate)
		}
	}
	if o.Version == 0 {
		o.Version = 1
	}
	r.tx.orders[o.ID] = o.Clone()
	r.tx.created[o.ID] = true
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*entity.Order, error) {
	if r.tx != nil {
		if r.tx.deleted[id] {
			return nil, nil
		}
		if o, ok := r.tx.orders[id]; ok {
			return o.Clone(), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.orders[id].Clone(), nil
}

func (r orderRepo) GetByNumber(ctx context.Context, number string) (*entity.Order, error) {
	r.s.mu.RLock()
	id, ok := r.s.numbers[number]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r orderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("GetForUpdate requiere una transacción")
	}
	if err := r.tx.lock(ctx, "orden:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r orderRepo) Update(ctx context.Context, o *entity.Order) error {
	if r.tx == nil {
		return r.s.Run(ctx, func(uow repository.UnitOfWork) error { return uow.Orders().Update(ctx, o) })
	}
	cur, err := r.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	if cur == nil {
		return domain.NewNotFoundError("orden", o.ID)
	}
	if cur.Version != o.Version {
		return fmt.Errorf("orden %s versión %d: %w", o.ID, o.Version, domain.ErrConcurrentModification)
	}
	if _, staged := r.tx.orders[o.ID]; !staged {
		r.tx.base[o.ID] = cur.Version
	}
	o.Version++
	r.tx.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	if r.tx == nil {
		return r.s.Run(ctx, func(uow repository.UnitOfWork) error { return uow.Orders().Delete(ctx, id) })
	}
	delete(r.tx.orders, id)
	delete(r.tx.created, id)
	r.tx.deleted[id] = true
	return nil
}

func (r orderRepo) Search(_ context.Context, f repository.OrderFilter) ([]*entity.Order, int, error) {
	r.s.mu.RLock()
	var matched []*entity.Order
	for _, o := range r.s.orders {
		if matchesFilter(o, f) {
			matched = append(matched, o.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OrderDate.Equal(matched[j].OrderDate) {
			return matched[i].OrderDate.After(matched[j].OrderDate)
		}
		return matched[i].Number > matched[j].Number
	})
	total := len(matched)
	return paginate(matched, f.Limit, f.Offset), total, nil
}

func (r orderRepo) ListDue(_ context.Context, states []entity.OrderState, from, to time.Time) ([]*entity.Order, error) {
	wanted := make(map[entity.OrderState]bool, len(states))
	for _, st := range states {
		wanted[st] = true
	}
	r.s.mu.RLock()
	var out []*entity.Order
	for _, o := range r.s.orders {
		d := o.EstimatedDeliveryDate
		if !wanted[o.State] || d == nil || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, o.Clone())
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EstimatedDeliveryDate.Before(*out[j].EstimatedDeliveryDate) })
	return out, nil
}

func (r orderRepo) StatsByState(_ context.Context, from, to time.Time) (map[entity.OrderState]repository.OrderStateStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[entity.OrderState]repository.OrderStateStats)
	for _, o := range r.s.orders {
		if o.OrderDate.Before(from) || o.OrderDate.After(to) {
			continue
		}
		st := out[o.State]
		st.Count++
		st.Total = st.Total.Add(o.Total)
		out[o.State] = st
	}
	return out, nil
}

func (r orderRepo) DeliveryStats(_ context.Context, from, to time.Time) (repository.DeliveryStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := repository.DeliveryStats{LeadTimeDays: decimal.Zero}
	for _, o := range r.s.orders {
		if o.OrderDate.Before(from) || o.OrderDate.After(to) {
			continue
		}
		st.Orders++
		if o.ActualDeliveryDate == nil {
			continue
		}
		st.Delivered++
		days := decimal.NewFromFloat(o.ActualDeliveryDate.Sub(o.OrderDate).Hours()).Div(decimal.NewFromInt(24))
		st.LeadTimeDays = st.LeadTimeDays.Add(days)
		// se compara por día: la estimada es una fecha, la real un instante
		if o.EstimatedDeliveryDate != nil && !day(*o.ActualDeliveryDate).After(day(*o.EstimatedDeliveryDate)) {
			st.OnTime++
		}
	}
	return st, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func matchesFilter(o *entity.Order, f repository.OrderFilter) bool {
	switch {
	case f.SupplierID != "" && o.SupplierID != f.SupplierID:
		return false
	case f.BuyerID != "" && o.BuyerID != f.BuyerID:
		return false
	case f.State != "" && o.State != f.State:
		return false
	case f.Number != "" && !strings.Contains(o.Number, f.Number):
		return false
	case f.From != nil && o.OrderDate.Before(*f.From):
		return false
	case f.To != nil && o.OrderDate.After(*f.To):
		return false
	}
	return true
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
