package inventory

import (
	"context"

	"github.com/jhoicas/compras-api/internal/application/dto"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// RegisterFromRequest adapta el request HTTP a Register.
func (r *MovementRecorder) RegisterFromRequest(ctx context.Context, userID string, in dto.RegisterMovementRequest) (*dto.MovementResponse, error) {
	mov, err := r.Register(ctx, MovementInput{
		ProductID: in.ProductID,
		Type:      entity.MovementType(in.Type),
		Quantity:  in.Quantity,
		UserID:    userID,
		Reference: in.Reference,
		OrderID:   in.OrderID,
		Reason:    in.Reason,
		Notes:     in.Notes,
		UnitCost:  in.UnitCost,
	})
	if err != nil {
		return nil, err
	}
	out := dto.ToMovementResponse(mov)
	return &out, nil
}

// AdjustFromRequest adapta el request HTTP a RegisterAdjustment.
func (r *MovementRecorder) AdjustFromRequest(ctx context.Context, userID string, in dto.AdjustmentRequest) (*dto.MovementResponse, error) {
	mov, err := r.RegisterAdjustment(ctx, in.ProductID, in.Delta, userID, in.Reason, in.Notes)
	if err != nil {
		return nil, err
	}
	out := dto.ToMovementResponse(mov)
	return &out, nil
}
