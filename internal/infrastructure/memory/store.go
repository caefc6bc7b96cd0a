// Package memory implementa los puertos de persistencia en memoria, con las mismas
// garantías transaccionales que el driver postgres: bloqueos por fila que duran
// hasta el fin de la transacción y cambios visibles solo tras el commit.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// Store guarda órdenes, productos, kardex y bandeja de salida.
type Store struct {
	mu        sync.RWMutex
	orders    map[string]*entity.Order
	numbers   map[string]string // número -> id
	products  map[string]*entity.Product
	suppliers map[string]*entity.Supplier
	users     map[string]*entity.User
	movements []*entity.StockMovement
	outbox    []*entity.OutboxEvent
	outboxSeq int64
	seq       atomic.Int64
	locks     *lockTable
	now       func() time.Time
}

// NewStore construye un store vacío.
func NewStore() *Store {
	return &Store{
		orders:    make(map[string]*entity.Order),
		numbers:   make(map[string]string),
		products:  make(map[string]*entity.Product),
		suppliers: make(map[string]*entity.Supplier),
		users:     make(map[string]*entity.User),
		locks:     newLockTable(),
		now:       time.Now,
	}
}

var (
	_ repository.TxRunner            = (*Store)(nil)
	_ repository.OrderNumberSequence = (*Store)(nil)
	_ repository.UnitOfWork          = (*memTx)(nil)
)

// AddProduct registra un producto; su stock actual se toma como stock inicial del kardex.
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.InitialStock = p.Stock
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.products[p.ID] = &p
}

// AddSupplier registra un proveedor.
func (s *Store) AddSupplier(sup entity.Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[sup.ID] = &sup
}

// AddUser registra un usuario.
func (s *Store) AddUser(u entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// Next entrega el siguiente número de la secuencia de órdenes.
func (s *Store) Next(_ context.Context) (int64, error) {
	return s.seq.Add(1), nil
}

// Orders repositorio de órdenes fuera de transacción.
func (s *Store) Orders() repository.OrderRepository { return orderRepo{s: s} }

// Products repositorio de productos fuera de transacción.
func (s *Store) Products() repository.ProductRepository { return productRepo{s: s} }

// Movements kardex fuera de transacción.
func (s *Store) Movements() repository.MovementRepository { return movementRepo{s: s} }

// Suppliers repositorio de proveedores.
func (s *Store) Suppliers() repository.SupplierRepository { return supplierRepo{s: s} }

// ProductCatalog expone el alta de productos.
func (s *Store) ProductCatalog() repository.ProductCatalogRepository { return productRepo{s: s} }

// SupplierCatalog expone el alta de proveedores.
func (s *Store) SupplierCatalog() repository.SupplierCatalogRepository { return supplierRepo{s: s} }

// Accounts expone altas y búsqueda por email para autenticación.
func (s *Store) Accounts() repository.UserAccountRepository { return userRepo{s: s} }

// Users repositorio de usuarios.
func (s *Store) Users() repository.UserRepository { return userRepo{s: s} }

// Run ejecuta fn en una transacción: los cambios se aplican juntos solo si fn devuelve nil
// y el contexto sigue vigente. Los bloqueos tomados se liberan al terminar.
func (s *Store) Run(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	tx := newTx(s)
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return tx.commit()
}

type supplierRepo struct{ s *Store }

func (r supplierRepo) GetByID(_ context.Context, id string) (*entity.Supplier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sup, ok := r.s.suppliers[id]
	if !ok {
		return nil, nil
	}
	c := *sup
	return &c, nil
}

func (r supplierRepo) Create(_ context.Context, sup *entity.Supplier) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.suppliers[sup.ID]; ok {
		return fmt.Errorf("proveedor %s: %w", sup.ID, domain.ErrDuplicate)
	}
	c := *sup
	r.s.suppliers[sup.ID] = &c
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r userRepo) Create(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; ok {
		return fmt.Errorf("usuario %s: %w", u.ID, domain.ErrDuplicate)
	}
	for _, other := range r.s.users {
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrDuplicate)
		}
	}
	c := *u
	r.s.users[u.ID] = &c
	return nil
}
