package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo agrega eventos en la transacción del cambio que describen.
type OutboxRepo struct {
	q Querier
}

// NewOutboxRepository construye el adaptador. Pasar la tx en curso.
func NewOutboxRepository(q Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

// Append inserta el evento como pending y asigna su ID.
func (r *OutboxRepo) Append(ctx context.Context, ev *entity.OutboxEvent) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, type, payload, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, ev.CreatedAt, entity.OutboxStatusPending,
	).Scan(&ev.ID)
	return mapError("insert outbox event", err)
}

// OutboxStore lado del relay: toma lotes pendientes y registra el resultado de la publicación.
type OutboxStore struct {
	pool *pgxpool.Pool
}

// NewOutboxStore construye el store del relay.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// LockBatch toma hasta batchSize eventos pendientes, o en curso con el lease vencido,
// y los deja a nombre de relayID hasta now()+lease. SKIP LOCKED permite varias
// instancias del relay sin entregar el mismo evento dos veces.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]entity.OutboxEvent, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE outbox_events SET
			status = $2,
			relay_id = $4,
			locked_until = now() + $5::bigint * interval '1 millisecond'
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $3 OR (status = $2 AND locked_until < now())
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, type, payload, created_at, status, retry_count, last_error,
			relay_id, locked_until`,
		batchSize, entity.OutboxStatusInProgress, entity.OutboxStatusPending, relayID, lease.Milliseconds(),
	)
	if err != nil {
		return nil, mapError("lock outbox batch", err)
	}
	defer rows.Close()
	var out []entity.OutboxEvent
	for rows.Next() {
		var ev entity.OutboxEvent
		var lockedUntil time.Time
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload,
			&ev.CreatedAt, &ev.Status, &ev.RetryCount, &ev.LastError, &ev.RelayID, &lockedUntil); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.LockedUntil = &lockedUntil
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByID(out)
	return out, nil
}

// ExtendLease renueva el lease de los eventos que relayID sigue teniendo.
func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET locked_until = now() + $3::bigint * interval '1 millisecond'
		WHERE id = ANY($1) AND relay_id = $2 AND status = $4`,
		ids, relayID, lease.Milliseconds(), entity.OutboxStatusInProgress,
	)
	return mapError("extend outbox lease", err)
}

// Release devuelve a pending, sin consumir reintentos, eventos que no se intentaron publicar.
func (s *OutboxStore) Release(ctx context.Context, relayID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET status = $3, relay_id = NULL, locked_until = NULL
		WHERE id = ANY($1) AND relay_id = $2 AND status = $4`,
		ids, relayID, entity.OutboxStatusPending, entity.OutboxStatusInProgress,
	)
	return mapError("release outbox events", err)
}

// MarkSent marca eventos como publicados.
func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET status = $2, relay_id = NULL, locked_until = NULL
		WHERE id = ANY($1)`, ids, entity.OutboxStatusSent)
	return mapError("mark outbox sent", err)
}

// MarkFailed registra el error; el evento vuelve a pending hasta agotar MaxOutboxRetries.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET
			retry_count = retry_count + 1,
			last_error = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE $5 END,
			relay_id = NULL,
			locked_until = NULL
		WHERE id = $1`,
		id, errMsg, entity.MaxOutboxRetries, entity.OutboxStatusFailed, entity.OutboxStatusPending,
	)
	return mapError("mark outbox failed", err)
}

// RETURNING no garantiza orden.
func sortByID(evs []entity.OutboxEvent) {
	sort.Slice(evs, func(i, j int) bool { return evs[i].ID < evs[j].ID })
}
