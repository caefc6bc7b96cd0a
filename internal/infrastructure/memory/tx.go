package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// memTx acumula los cambios de una transacción hasta el commit.
type memTx struct {
	s         *Store
	held      []string
	heldSet   map[string]bool
	orders    map[string]*entity.Order
	created   map[string]bool
	base      map[string]int64 // versión leída antes del primer Update
	deleted   map[string]bool
	products  map[string]*entity.Product
	movements []*entity.StockMovement
	outbox    []*entity.OutboxEvent
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:        s,
		heldSet:  make(map[string]bool),
		orders:   make(map[string]*entity.Order),
		created:  make(map[string]bool),
		base:     make(map[string]int64),
		deleted:  make(map[string]bool),
		products: make(map[string]*entity.Product),
	}
}

func (tx *memTx) Orders() repository.OrderRepository     { return orderRepo{s: tx.s, tx: tx} }
func (tx *memTx) Products() repository.ProductRepository { return productRepo{s: tx.s, tx: tx} }
func (tx *memTx) Movements() repository.MovementRepository {
	return movementRepo{s: tx.s, tx: tx}
}
func (tx *memTx) Outbox() repository.OutboxRepository { return outboxRepo{tx: tx} }

// lock toma la clave una sola vez por transacción.
func (tx *memTx) lock(ctx context.Context, key string) error {
	if tx.heldSet[key] {
		return nil
	}
	if err := tx.s.locks.acquire(ctx, key); err != nil {
		return err
	}
	tx.heldSet[key] = true
	tx.held = append(tx.held, key)
	return nil
}

func (tx *memTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.s.locks.release(tx.held[i])
	}
	tx.held = nil
}

func (tx *memTx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.created {
		o := tx.orders[id]
		if o == nil {
			continue
		}
		if other, ok := s.numbers[o.Number]; ok && other != id {
			return fmt.Errorf("número de orden %s: %w", o.Number, domain.ErrDuplicate)
		}
	}
	for id, base := range tx.base {
		if cur, ok := s.orders[id]; !ok || cur.Version != base {
			return fmt.Errorf("orden %s: %w", id, domain.ErrConcurrentModification)
		}
	}

	for id, o := range tx.orders {
		s.orders[id] = o
		s.numbers[o.Number] = id
	}
	for id := range tx.deleted {
		if o, ok := s.orders[id]; ok {
			delete(s.numbers, o.Number)
			delete(s.orders, id)
		}
	}
	for id, p := range tx.products {
		s.products[id] = p
	}
	s.movements = append(s.movements, tx.movements...)
	for _, ev := range tx.outbox {
		s.outboxSeq++
		ev.ID = s.outboxSeq
		s.outbox = append(s.outbox, ev)
	}
	return nil
}
