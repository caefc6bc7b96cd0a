package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState es el estado de una orden de compra.
type OrderState string

const (
	OrderStateBorrador         OrderState = "BORRADOR"
	OrderStatePendiente        OrderState = "PENDIENTE"
	OrderStateEnviada          OrderState = "ENVIADA"
	OrderStateConfirmada       OrderState = "CONFIRMADA"
	OrderStateEnTransito       OrderState = "EN_TRANSITO"
	OrderStateRecibidaParcial  OrderState = "RECIBIDA_PARCIAL"
	OrderStateRecibidaCompleta OrderState = "RECIBIDA_COMPLETA"
	OrderStateCompletada       OrderState = "COMPLETADA"
	OrderStateCancelada        OrderState = "CANCELADA"
)

// OrderStates lista los estados en el orden del ciclo de vida.
var OrderStates = []OrderState{
	OrderStateBorrador,
	OrderStatePendiente,
	OrderStateEnviada,
	OrderStateConfirmada,
	OrderStateEnTransito,
	OrderStateRecibidaParcial,
	OrderStateRecibidaCompleta,
	OrderStateCompletada,
	OrderStateCancelada,
}

// IsValid indica si el estado pertenece al ciclo de vida.
func (s OrderState) IsValid() bool {
	for _, st := range OrderStates {
		if s == st {
			return true
		}
	}
	return false
}

func (s OrderState) String() string { return string(s) }

// Order es la orden de compra a un proveedor. Es dueña de sus líneas.
// Total = Subtotal + TaxAmount - Discount.
type Order struct {
	ID                    string
	Number                string // OC-YYYYMMDD-NNNNNN
	SupplierID            string
	OrderDate             time.Time
	EstimatedDeliveryDate *time.Time
	ActualDeliveryDate    *time.Time
	State                 OrderState
	BuyerID               string
	ApproverID            string
	ApprovedAt            *time.Time
	ReceiverID            string
	ReceivedAt            *time.Time
	Lines                 []OrderLine
	Subtotal              decimal.Decimal
	TaxRate               decimal.Decimal // porcentaje, ej. 19.00
	TaxAmount             decimal.Decimal
	Discount              decimal.Decimal
	Total                 decimal.Decimal
	CancelReason          string
	CanceledAt            *time.Time
	Notes                 string
	PaymentTerms          string
	PaymentMethod         string
	DeliveryAddress       string
	SupplierReference     string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Line busca una línea por ID.
func (o *Order) Line(lineID string) (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// Clone devuelve una copia profunda (líneas y fechas incluidas).
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = make([]OrderLine, len(o.Lines))
	copy(c.Lines, o.Lines)
	c.EstimatedDeliveryDate = cloneTime(o.EstimatedDeliveryDate)
	c.ActualDeliveryDate = cloneTime(o.ActualDeliveryDate)
	c.ApprovedAt = cloneTime(o.ApprovedAt)
	c.ReceivedAt = cloneTime(o.ReceivedAt)
	c.CanceledAt = cloneTime(o.CanceledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
