package repository

import "context"

// UnitOfWork expone los repositorios atados a una misma transacción.
type UnitOfWork interface {
	Orders() OrderRepository
	Products() ProductRepository
	Movements() MovementRepository
	Outbox() OutboxRepository
}

// TxRunner ejecuta fn dentro de una transacción: Commit si fn devuelve nil, Rollback en otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// OrderNumberSequence entrega el siguiente valor para el número de orden.
// El valor se consume aunque la transacción que lo usa haga Rollback.
type OrderNumberSequence interface {
	Next(ctx context.Context) (int64, error)
}
