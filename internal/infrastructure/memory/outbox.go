package memory

import (
	"context"
	"time"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

type outboxRepo struct {
	tx *memTx
}

func (r outboxRepo) Append(_ context.Context, ev *entity.OutboxEvent) error {
	c := *ev
	r.tx.outbox = append(r.tx.outbox, &c)
	return nil
}

// SetClock reemplaza el reloj usado para los leases de la bandeja de salida.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// LockBatch toma hasta batchSize eventos pendientes, o en curso con el lease vencido,
// y los deja a nombre de relayID hasta now+lease.
func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]entity.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	until := now.Add(lease)
	var out []entity.OutboxEvent
	for _, ev := range s.outbox {
		if len(out) >= batchSize {
			break
		}
		expired := ev.Status == entity.OutboxStatusInProgress && ev.LockedUntil != nil && ev.LockedUntil.Before(now)
		if ev.Status != entity.OutboxStatusPending && !expired {
			continue
		}
		ev.Status = entity.OutboxStatusInProgress
		ev.RelayID = relayID
		lockedUntil := until
		ev.LockedUntil = &lockedUntil
		out = append(out, *ev)
	}
	return out, nil
}

// ExtendLease renueva el lease de los eventos que relayID sigue teniendo.
func (s *Store) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.now().Add(lease)
	s.eachOwned(relayID, ids, func(ev *entity.OutboxEvent) {
		lockedUntil := until
		ev.LockedUntil = &lockedUntil
	})
	return nil
}

// Release devuelve a pendiente, sin consumir reintentos, eventos que no se intentaron publicar.
func (s *Store) Release(_ context.Context, relayID string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eachOwned(relayID, ids, func(ev *entity.OutboxEvent) {
		ev.Status = entity.OutboxStatusPending
		clearLease(ev)
	})
	return nil
}

// MarkSent marca eventos como publicados.
func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := idSet(ids)
	for _, ev := range s.outbox {
		if set[ev.ID] {
			ev.Status = entity.OutboxStatusSent
			clearLease(ev)
		}
	}
	return nil
}

// MarkFailed registra el error; el evento vuelve a pendiente hasta agotar MaxOutboxRetries.
func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.outbox {
		if ev.ID == id {
			ev.RetryCount++
			ev.LastError = errMsg
			ev.Status = entity.OutboxStatusPending
			if ev.RetryCount >= entity.MaxOutboxRetries {
				ev.Status = entity.OutboxStatusFailed
			}
			clearLease(ev)
		}
	}
	return nil
}

// Events copia de la bandeja de salida, en orden de registro.
func (s *Store) Events() []entity.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.OutboxEvent, 0, len(s.outbox))
	for _, ev := range s.outbox {
		out = append(out, *ev)
	}
	return out
}

func (s *Store) eachOwned(relayID string, ids []int64, fn func(*entity.OutboxEvent)) {
	set := idSet(ids)
	for _, ev := range s.outbox {
		if set[ev.ID] && ev.Status == entity.OutboxStatusInProgress && ev.RelayID == relayID {
			fn(ev)
		}
	}
}

func clearLease(ev *entity.OutboxEvent) {
	ev.RelayID = ""
	ev.LockedUntil = nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
