// Package catalog administra productos y proveedores. Stock y costo de un
// producto existente solo cambian por movimientos del kardex.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
	"github.com/jhoicas/compras-api/internal/domain/repository"
)

// ProductUseCase alta y consulta de productos.
type ProductUseCase struct {
	repo repository.ProductCatalogRepository
	now  func() time.Time
}

// NewProductUseCase construye el caso de uso. now nil usa time.Now.
func NewProductUseCase(repo repository.ProductCatalogRepository, now func() time.Time) *ProductUseCase {
	if now == nil {
		now = time.Now
	}
	return &ProductUseCase{repo: repo, now: now}
}

// Create da de alta un producto. InitialStock abre el kardex; Cost es el costo de apertura.
func (uc *ProductUseCase) Create(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	switch {
	case sku == "":
		return nil, domain.NewValidationError("sku", "es obligatorio")
	case name == "":
		return nil, domain.NewValidationError("name", "es obligatorio")
	case in.Price.IsNegative():
		return nil, domain.NewValidationError("price", "no puede ser negativo")
	case in.Cost.IsNegative():
		return nil, domain.NewValidationError("cost", "no puede ser negativo")
	case in.InitialStock < 0:
		return nil, domain.NewValidationError("initial_stock", "no puede ser negativo")
	case in.MinStock < 0:
		return nil, domain.NewValidationError("min_stock", "no puede ser negativo")
	}
	now := uc.now().UTC()
	p := &entity.Product{
		ID:           uuid.New().String(),
		SKU:          sku,
		Name:         name,
		Price:        in.Price.Round(2),
		Cost:         in.Cost.Round(2),
		Stock:        in.InitialStock,
		InitialStock: in.InitialStock,
		MinStock:     in.MinStock,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// GetByID obtiene un producto por ID.
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NewNotFoundError("producto", id)
	}
	return toProductResponse(p), nil
}

// SupplierUseCase alta y consulta de proveedores.
type SupplierUseCase struct {
	repo repository.SupplierCatalogRepository
	now  func() time.Time
}

// NewSupplierUseCase construye el caso de uso. now nil usa time.Now.
func NewSupplierUseCase(repo repository.SupplierCatalogRepository, now func() time.Time) *SupplierUseCase {
	if now == nil {
		now = time.Now
	}
	return &SupplierUseCase{repo: repo, now: now}
}

// Create da de alta un proveedor activo.
func (uc *SupplierUseCase) Create(ctx context.Context, in dto.CreateSupplierRequest) (*dto.SupplierResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "es obligatorio")
	}
	s := &entity.Supplier{
		ID:        uuid.New().String(),
		Name:      name,
		TaxID:     strings.TrimSpace(in.TaxID),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Active:    true,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return toSupplierResponse(s), nil
}

// GetByID obtiene un proveedor por ID.
func (uc *SupplierUseCase) GetByID(ctx context.Context, id string) (*dto.SupplierResponse, error) {
	s, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.NewNotFoundError("proveedor", id)
	}
	return toSupplierResponse(s), nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Price:        p.Price,
		Cost:         p.Cost,
		Stock:        p.Stock,
		InitialStock: p.InitialStock,
		MinStock:     p.MinStock,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
	}
}

func toSupplierResponse(s *entity.Supplier) *dto.SupplierResponse {
	return &dto.SupplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		TaxID:     s.TaxID,
		Email:     s.Email,
		Phone:     s.Phone,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}
