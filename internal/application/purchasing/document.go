package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// ErrDocumentsDisabled se devuelve cuando no hay generador de PDF configurado.
var ErrDocumentsDisabled = errors.New("generación de documentos no configurada")

// Document genera el PDF de la orden para enviar al proveedor.
// Las órdenes en BORRADOR no tienen documento.
func (m *OrderManager) Document(ctx context.Context, id string) (pdfBytes []byte, filename string, err error) {
	if m.renderer == nil {
		return nil, "", ErrDocumentsDisabled
	}
	o, err := m.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if o.State == entity.OrderStateBorrador {
		return nil, "", domain.NewInvalidTransitionError(string(o.State), "imprimir")
	}

	supplier, err := m.supplierRepo.GetByID(ctx, o.SupplierID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener proveedor: %w", err)
	}
	if supplier == nil {
		return nil, "", domain.NewNotFoundError("proveedor", o.SupplierID)
	}
	buyer, err := m.userRepo.GetByID(ctx, o.BuyerID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener comprador: %w", err)
	}

	doc := OrderDocument{
		Order:        o,
		Supplier:     supplier,
		Buyer:        buyer,
		ProductNames: make(map[string]string, len(o.Lines)),
		ProductSKUs:  make(map[string]string, len(o.Lines)),
		IssuedAt:     m.now(),
	}
	for _, l := range o.Lines {
		p, err := m.productRepo.GetByID(ctx, l.ProductID)
		if err != nil {
			return nil, "", fmt.Errorf("pdf: obtener producto: %w", err)
		}
		if p != nil {
			doc.ProductNames[p.ID] = p.Name
			doc.ProductSKUs[p.ID] = p.SKU
		}
	}

	pdfBytes, err = m.renderer.RenderOrder(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return pdfBytes, fmt.Sprintf("orden_compra_%s.pdf", o.Number), nil
}
