package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/compras-api/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los fallos de serialización o deadlock del commit se devuelven como ErrConcurrentModification.
func (r *TxRunner) Run(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(unitOfWork{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u unitOfWork) Orders() repository.OrderRepository       { return NewOrderRepository(u.tx) }
func (u unitOfWork) Products() repository.ProductRepository   { return NewProductRepository(u.tx) }
func (u unitOfWork) Movements() repository.MovementRepository { return NewMovementRepository(u.tx) }
func (u unitOfWork) Outbox() repository.OutboxRepository      { return NewOutboxRepository(u.tx) }

// Sequence numera las órdenes con la secuencia de PostgreSQL (fuera de la transacción de negocio).
type Sequence struct {
	q Querier
}

var _ repository.OrderNumberSequence = (*Sequence)(nil)

// NewSequence construye la secuencia de números de orden.
func NewSequence(q Querier) *Sequence {
	return &Sequence{q: q}
}

// Next consume el siguiente valor; no se devuelve aunque la transacción haga Rollback.
func (s *Sequence) Next(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT nextval('orden_compra_numero_seq')`).Scan(&n); err != nil {
		return 0, mapError("next order number", err)
	}
	return n, nil
}
