package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
	"github.com/jhoicas/compras-api/internal/infrastructure/memory"
)

func newStore() *memory.Store {
	s := memory.NewStore()
	s.AddProduct(entity.Product{ID: "p1", SKU: "P1", Stock: 10, MinStock: 2, Active: true})
	return s
}

func seedOrder(t *testing.T, s *memory.Store, id, number string) {
	t.Helper()
	err := s.Run(context.Background(), func(uow repository.UnitOfWork) error {
		return uow.Orders().Create(context.Background(), &entity.Order{
			ID: id, Number: number, State: entity.OrderStateBorrador, OrderDate: time.Now(),
			Lines: []entity.OrderLine{{ID: "l1", OrderID: id, ProductID: "p1", LineNumber: 1, Quantity: 3}},
		})
	})
	require.NoError(t, err)
}

func TestRun_RollbackDescartaTodo(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	boom := errors.New("falla")

	err := s.Run(ctx, func(uow repository.UnitOfWork) error {
		require.NoError(t, uow.Products().UpdateStock(ctx, "p1", 99, decimal.Zero))
		require.NoError(t, uow.Movements().Create(ctx, &entity.StockMovement{ID: "m1", ProductID: "p1"}))
		require.NoError(t, uow.Outbox().Append(ctx, &entity.OutboxEvent{Type: "x"}))
		p, err := uow.Products().GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(99), p.Stock) // visible dentro de la transacción
		return boom
	})

	assert.ErrorIs(t, err, boom)
	p, err := s.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Stock)
	m, err := s.Movements().GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, s.Events())
}

func TestRun_ContextoCanceladoNoConfirma(t *testing.T) {
	s := newStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Run(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Products().UpdateStock(ctx, "p1", 1, decimal.Zero); err != nil {
			return err
		}
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	p, _ := s.Products().GetByID(context.Background(), "p1")
	assert.Equal(t, int64(10), p.Stock)
}

func TestGetForUpdate_EsperaAlOtroYRespetaContexto(t *testing.T) {
	s := newStore()
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.Run(context.Background(), func(uow repository.UnitOfWork) error {
			_, err := uow.Products().GetForUpdate(context.Background(), "p1")
			close(held)
			<-done
			return err
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Run(ctx, func(uow repository.UnitOfWork) error {
		_, err := uow.Products().GetForUpdate(ctx, "p1")
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(done)
	err = s.Run(context.Background(), func(uow repository.UnitOfWork) error {
		_, err := uow.Products().GetForUpdate(context.Background(), "p1")
		return err
	})
	assert.NoError(t, err)
}

func TestGetForUpdate_FueraDeTransaccionFalla(t *testing.T) {
	s := newStore()
	_, err := s.Products().GetForUpdate(context.Background(), "p1")
	assert.Error(t, err)
	_, err = s.Orders().GetForUpdate(context.Background(), "o1")
	assert.Error(t, err)
}

func TestOrderUpdate_VersionObsoleta(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	seedOrder(t, s, "o1", "OC-1")

	stale, err := s.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	fresh, err := s.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)

	fresh.Notes = "primero"
	require.NoError(t, s.Orders().Update(ctx, fresh))
	assert.Equal(t, int64(2), fresh.Version)

	stale.Notes = "segundo"
	err = s.Orders().Update(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	got, _ := s.Orders().GetByID(ctx, "o1")
	assert.Equal(t, "primero", got.Notes)
}

func TestOrderCreate_NumeroDuplicado(t *testing.T) {
	s := newStore()
	seedOrder(t, s, "o1", "OC-1")

	err := s.Run(context.Background(), func(uow repository.UnitOfWork) error {
		return uow.Orders().Create(context.Background(), &entity.Order{ID: "o2", Number: "OC-1"})
	})

	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestOrders_CopiasIndependientes(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	seedOrder(t, s, "o1", "OC-1")

	o, _ := s.Orders().GetByID(ctx, "o1")
	o.Lines[0].ReceivedQuantity = 3

	again, _ := s.Orders().GetByID(ctx, "o1")
	assert.Equal(t, int64(0), again.Lines[0].ReceivedQuantity)
}

func TestOutbox_CicloDeEstados(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.Run(ctx, func(uow repository.UnitOfWork) error {
		for i := 0; i < 3; i++ {
			if err := uow.Outbox().Append(ctx, &entity.OutboxEvent{Type: "t", Status: entity.OutboxStatusPending}); err != nil {
				return err
			}
		}
		return nil
	}))

	batch, err := s.LockBatch(ctx, "relay-a", 2, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)

	again, _ := s.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.Len(t, again, 1, "los eventos en curso no se entregan dos veces")

	require.NoError(t, s.MarkSent(ctx, []int64{batch[0].ID}))
	for i := 0; i < entity.MaxOutboxRetries; i++ {
		require.NoError(t, s.MarkFailed(ctx, batch[1].ID, "broker caído"))
	}

	events := s.Events()
	assert.Equal(t, entity.OutboxStatusSent, events[0].Status)
	assert.Equal(t, entity.OutboxStatusFailed, events[1].Status)
	assert.Equal(t, entity.MaxOutboxRetries, events[1].RetryCount)
	assert.Equal(t, "broker caído", events[1].LastError)
}

func TestOutbox_LeaseRenovarLiberarYRetomar(t *testing.T) {
	s := newStore()
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, s.Run(ctx, func(uow repository.UnitOfWork) error {
		for i := 0; i < 2; i++ {
			if err := uow.Outbox().Append(ctx, &entity.OutboxEvent{Type: "t", Status: entity.OutboxStatusPending}); err != nil {
				return err
			}
		}
		return nil
	}))

	batch, err := s.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "relay-a", batch[0].RelayID)
	require.NotNil(t, batch[0].LockedUntil)
	assert.Equal(t, now.Add(time.Minute), *batch[0].LockedUntil)

	// renovado a los 50s, sigue vigente a los 90s
	now = now.Add(50 * time.Second)
	require.NoError(t, s.ExtendLease(ctx, "relay-a", []int64{batch[0].ID, batch[1].ID}, time.Minute))
	now = now.Add(40 * time.Second)
	again, _ := s.LockBatch(ctx, "relay-b", 10, time.Minute)
	assert.Empty(t, again)

	// un relay ajeno no puede liberar ni renovar
	require.NoError(t, s.Release(ctx, "relay-b", []int64{batch[0].ID}))
	assert.Equal(t, entity.OutboxStatusInProgress, s.Events()[0].Status)

	require.NoError(t, s.Release(ctx, "relay-a", []int64{batch[0].ID}))
	ev := s.Events()[0]
	assert.Equal(t, entity.OutboxStatusPending, ev.Status)
	assert.Zero(t, ev.RetryCount)
	assert.Empty(t, ev.RelayID)
	assert.Nil(t, ev.LockedUntil)

	// el segundo vence y relay-b lo retoma junto con el liberado
	now = now.Add(time.Minute)
	again, err = s.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "relay-b", again[1].RelayID)
}
