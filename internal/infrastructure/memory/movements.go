package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// movementRepo solo agrega filas; no hay operación de actualización ni borrado.
type movementRepo struct {
	s  *Store
	tx *memTx
}

func (r movementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	c := *m
	if r.tx == nil {
		r.s.mu.Lock()
		r.s.movements = append(r.s.movements, &c)
		r.s.mu.Unlock()
		return nil
	}
	r.tx.movements = append(r.tx.movements, &c)
	return nil
}

// all devuelve las filas confirmadas más las de la transacción, en orden de inserción.
func (r movementRepo) all() []*entity.StockMovement {
	r.s.mu.RLock()
	out := make([]*entity.StockMovement, 0, len(r.s.movements))
	out = append(out, r.s.movements...)
	r.s.mu.RUnlock()
	if r.tx != nil {
		out = append(out, r.tx.movements...)
	}
	return out
}

func (r movementRepo) GetByID(_ context.Context, id string) (*entity.StockMovement, error) {
	for _, m := range r.all() {
		if m.ID == id {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

func (r movementRepo) ListByProduct(_ context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	rows := r.all()
	var out []*entity.StockMovement
	for i := len(rows) - 1; i >= 0; i-- {
		m := rows[i]
		if m.ProductID == productID && inRange(m.Date, from, to) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return paginate(out, limit, offset), nil
}

func (r movementRepo) ListByReference(_ context.Context, reference string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.all() {
		if m.ExternalReference == reference {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r movementRepo) Totals(_ context.Context, productID string, from, to *time.Time) (int64, int64, error) {
	var in, out int64
	for _, m := range r.all() {
		if m.ProductID != productID || !inRange(m.Date, from, to) {
			continue
		}
		if m.Type.IsInbound() {
			in += m.Quantity
		} else {
			out += m.Quantity
		}
	}
	return in, out, nil
}

func (r movementRepo) Search(_ context.Context, c repository.MovementCriteria) ([]*entity.StockMovement, int, error) {
	rows := r.all()
	var out []*entity.StockMovement
	for i := len(rows) - 1; i >= 0; i-- {
		if matchesCriteria(rows[i], c) {
			m := *rows[i]
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return paginate(out, c.Limit, c.Offset), len(out), nil
}

func (r movementRepo) Count(_ context.Context, c repository.MovementCriteria) (int, error) {
	n := 0
	for _, m := range r.all() {
		if matchesCriteria(m, c) {
			n++
		}
	}
	return n, nil
}

func (r movementRepo) StatsByType(_ context.Context, from, to *time.Time) (map[entity.MovementType]repository.MovementTypeStats, error) {
	out := make(map[entity.MovementType]repository.MovementTypeStats)
	for _, m := range r.all() {
		if !inRange(m.Date, from, to) {
			continue
		}
		st := out[m.Type]
		st.Count++
		st.Units += m.Quantity
		out[m.Type] = st
	}
	return out, nil
}

func matchesCriteria(m *entity.StockMovement, c repository.MovementCriteria) bool {
	switch {
	case c.ProductID != "" && m.ProductID != c.ProductID:
		return false
	case c.Type != "" && m.Type != c.Type:
		return false
	case c.UserID != "" && m.UserID != c.UserID:
		return false
	case c.Reference != "" && m.ExternalReference != c.Reference:
		return false
	}
	return inRange(m.Date, c.From, c.To)
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}
