package inventory

import "github.com/jhoicas/compras-api/internal/domain"

// StockGuard impide que un movimiento deje el stock en negativo.
type StockGuard struct{}

// Validate falla con InsufficientStockError si stockAfter < 0.
func (StockGuard) Validate(productID string, stockBefore, stockAfter, requested int64) error {
	if stockAfter < 0 {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: requested,
			Available: stockBefore,
		}
	}
	return nil
}
