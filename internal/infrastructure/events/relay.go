package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// Store lado de lectura de la bandeja de salida (postgres.OutboxStore, memory.Store).
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]entity.OutboxEvent, error)
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
	Release(ctx context.Context, relayID string, ids []int64) error
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// RelayConfig parámetros del relay. Los valores cero toman el default.
type RelayConfig struct {
	ID        string        // dueño de los leases; único por instancia
	Interval  time.Duration // 500ms
	Lease     time.Duration // 30s
	BatchSize int           // 100
}

// finishTimeout plazo para registrar el resultado de un lote después de cancelado ctx.
const finishTimeout = 5 * time.Second

// Relay sondea la bandeja de salida y publica lo pendiente.
type Relay struct {
	log       zerolog.Logger
	store     Store
	dispatch  *Dispatcher
	id        string
	batchSize int
	interval  time.Duration
	lease     time.Duration
	now       func() time.Time
}

// NewRelay construye el relay.
func NewRelay(log zerolog.Logger, store Store, dispatch *Dispatcher, cfg RelayConfig) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		id:        cfg.ID,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		lease:     cfg.Lease,
		now:       time.Now,
	}
	if r.id == "" {
		r.id = "relay"
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	if r.interval <= 0 {
		r.interval = 500 * time.Millisecond
	}
	if r.lease <= 0 {
		r.lease = 30 * time.Second
	}
	return r
}

// Run corre hasta que ctx se cancela.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info().Str("relay_id", r.id).Dur("interval", r.interval).Dur("lease", r.lease).Msg("relay iniciado")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Str("relay_id", r.id).Msg("relay detenido")
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("relay: procesar lote")
			}
		}
	}
}

// RunOnce procesa un lote y devuelve cuántos eventos se publicaron.
//
// Un fallo de publicación no detiene el lote, pero sí los eventos siguientes del mismo
// agregado: vuelven a pendiente sin intentarse para no publicarse fuera de orden.
// Si ctx se cancela a mitad del lote, lo no publicado se libera; el resultado se
// registra con un contexto propio para que ningún evento quede retenido.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch, err := r.store.LockBatch(ctx, r.id, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	sent := make([]int64, 0, len(batch))
	var release []int64
	blocked := make(map[string]bool)
	leasedAt := r.now()
	for i, ev := range batch {
		if ctx.Err() != nil {
			release = append(release, eventIDs(batch[i:])...)
			break
		}
		aggregate := ev.AggregateType + ":" + ev.AggregateID
		if blocked[aggregate] {
			release = append(release, ev.ID)
			continue
		}
		if r.now().Sub(leasedAt) > r.lease/2 {
			if err := r.store.ExtendLease(ctx, r.id, eventIDs(batch[i:]), r.lease); err != nil {
				r.log.Warn().Err(err).Msg("relay: renovar lease")
			} else {
				leasedAt = r.now()
			}
		}

		if err := r.dispatch.Dispatch(ctx, ev); err != nil {
			blocked[aggregate] = true
			if ctx.Err() != nil {
				release = append(release, ev.ID)
				continue
			}
			if mErr := r.store.MarkFailed(finishCtx, ev.ID, err.Error()); mErr != nil {
				r.log.Error().Err(mErr).Int64("event_id", ev.ID).Msg("relay: marcar fallido")
			}
			continue
		}
		sent = append(sent, ev.ID)
	}

	if len(release) > 0 {
		if err := r.store.Release(finishCtx, r.id, release); err != nil {
			r.log.Error().Err(err).Int("events", len(release)).Msg("relay: liberar eventos")
		}
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(finishCtx, sent); err != nil {
			return 0, err
		}
	}
	return len(sent), nil
}

func eventIDs(evs []entity.OutboxEvent) []int64 {
	ids := make([]int64, len(evs))
	for i, ev := range evs {
		ids[i] = ev.ID
	}
	return ids
}
