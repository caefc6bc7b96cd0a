package memory

import (
	"context"
	"fmt"
	"sync"
)

// lockTable bloqueos exclusivos por clave; la espera se corta con el contexto.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (lt *lockTable) acquire(ctx context.Context, key string) error {
	lt.mu.Lock()
	ch, ok := lt.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		lt.locks[key] = ch
	}
	lt.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("esperando bloqueo %s: %w", key, ctx.Err())
	}
}

func (lt *lockTable) release(key string) {
	lt.mu.Lock()
	ch := lt.locks[key]
	lt.mu.Unlock()
	if ch != nil {
		<-ch
	}
}
