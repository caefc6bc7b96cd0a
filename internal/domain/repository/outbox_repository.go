package repository

import (
	"context"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// OutboxRepository agrega eventos en la transacción en curso.
type OutboxRepository interface {
	Append(ctx context.Context, event *entity.OutboxEvent) error
}
