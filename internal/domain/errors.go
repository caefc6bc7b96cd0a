package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrValidation             = errors.New("entrada inválida")
	ErrInvalidStateTransition = errors.New("transición de estado inválida")
	ErrInsufficientStock      = errors.New("stock insuficiente")
	ErrConcurrentModification = errors.New("modificación concurrente, reintente la operación")
	ErrDuplicate              = errors.New("recurso duplicado")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrForbidden              = errors.New("acceso denegado")
)

// ValidationError indica un dato de entrada que viola una regla de negocio.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError construye un ValidationError para el campo dado.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError referencia a un recurso inexistente.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s no encontrado: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError construye un NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidTransitionError se produce cuando una acción no está permitida en el estado actual.
type InvalidTransitionError struct {
	Current string
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("no se puede %s una orden en estado %s", e.Action, e.Current)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// NewInvalidTransitionError construye un InvalidTransitionError.
func NewInvalidTransitionError(current, action string) error {
	return &InvalidTransitionError{Current: current, Action: action}
}

// InsufficientStockError reporta la cantidad solicitada contra la disponible.
type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("stock insuficiente: solicitado %d, disponible %d", e.Requested, e.Available)
	}
	return fmt.Sprintf("stock insuficiente para producto %s: solicitado %d, disponible %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IsRetryable indica si la operación puede reintentarse completa.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
