package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// Agregados que publican eventos.
const (
	AggregateOrder   = "orden"
	AggregateProduct = "producto"
)

// Record serializa payload y lo agrega a la bandeja de salida de la transacción.
func Record(ctx context.Context, repo repository.OutboxRepository, aggregateType, aggregateID, eventType string, payload any, at time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar evento %s: %w", eventType, err)
	}
	ev := &entity.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       body,
		CreatedAt:     at,
		Status:        entity.OutboxStatusPending,
	}
	if err := repo.Append(ctx, ev); err != nil {
		return fmt.Errorf("registrar evento %s: %w", eventType, err)
	}
	return nil
}
