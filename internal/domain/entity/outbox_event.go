package entity

import "time"

// Estados de un evento en la bandeja de salida.
const (
	OutboxStatusPending    = "pending"
	OutboxStatusInProgress = "in_progress"
	OutboxStatusSent       = "sent"
	OutboxStatusFailed     = "failed"
)

// MaxOutboxRetries intentos de publicación antes de marcar el evento como fallido.
const MaxOutboxRetries = 5

// Tipos de evento publicados.
const (
	EventOrderCreated           = "orden.creada"
	EventOrderUpdated           = "orden.actualizada"
	EventOrderApproved          = "orden.aprobada"
	EventOrderSent              = "orden.enviada"
	EventOrderConfirmed         = "orden.confirmada"
	EventOrderInTransit         = "orden.en_transito"
	EventOrderPartiallyReceived = "orden.recibida_parcial"
	EventOrderFullyReceived     = "orden.recibida_completa"
	EventOrderCompleted         = "orden.completada"
	EventOrderCanceled          = "orden.cancelada"
	EventOrderDeleted           = "orden.eliminada"
	EventMovementRecorded       = "inventario.movimiento_registrado"
)

// OutboxEvent se escribe en la misma transacción que el cambio que describe.
type OutboxEvent struct {
	ID            int64
	AggregateType string // orden, producto
	AggregateID   string
	Type          string
	Payload       []byte // JSON
	CreatedAt     time.Time
	Status        string
	RetryCount    int
	LastError     string
	RelayID       string     // instancia del relay que lo tiene tomado
	LockedUntil   *time.Time // vencido el lease, otro relay puede retomarlo
}
