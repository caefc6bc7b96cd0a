package purchasing

import (
	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/internal/domain/entity"
)

// Action es una operación del ciclo de vida de la orden.
type Action string

const (
	ActionUpdate    Action = "actualizar"
	ActionEditLines Action = "editar_lineas"
	ActionDelete    Action = "eliminar"
	ActionApprove   Action = "aprobar"
	ActionSend      Action = "enviar"
	ActionConfirm   Action = "confirmar"
	ActionInTransit Action = "marcar_en_transito"
	ActionReceive   Action = "recibir"
	ActionCancel    Action = "cancelar"
	ActionComplete  Action = "completar"
)

// Transitions es la tabla de transiciones permitidas: estado origen -> acción -> estado destino.
// Para ActionReceive el destino es RECIBIDA_PARCIAL; el gestor decide RECIBIDA_COMPLETA
// cuando todas las líneas quedan completas.
var Transitions = map[entity.OrderState]map[Action]entity.OrderState{
	entity.OrderStateBorrador: {
		ActionUpdate:    entity.OrderStateBorrador,
		ActionEditLines: entity.OrderStateBorrador,
		ActionDelete:    entity.OrderStateBorrador,
		ActionApprove:   entity.OrderStatePendiente,
		ActionCancel:    entity.OrderStateCancelada,
	},
	entity.OrderStatePendiente: {
		ActionUpdate:    entity.OrderStatePendiente,
		ActionEditLines: entity.OrderStatePendiente,
		ActionSend:      entity.OrderStateEnviada,
		ActionCancel:    entity.OrderStateCancelada,
	},
	entity.OrderStateEnviada: {
		ActionConfirm:   entity.OrderStateConfirmada,
		ActionInTransit: entity.OrderStateEnTransito,
		ActionReceive:   entity.OrderStateRecibidaParcial,
		ActionCancel:    entity.OrderStateCancelada,
	},
	entity.OrderStateConfirmada: {
		ActionInTransit: entity.OrderStateEnTransito,
		ActionReceive:   entity.OrderStateRecibidaParcial,
		ActionCancel:    entity.OrderStateCancelada,
	},
	entity.OrderStateEnTransito: {
		ActionReceive: entity.OrderStateRecibidaParcial,
		ActionCancel:  entity.OrderStateCancelada,
	},
	entity.OrderStateRecibidaParcial: {
		ActionReceive: entity.OrderStateRecibidaParcial,
		ActionCancel:  entity.OrderStateCancelada,
	},
	entity.OrderStateRecibidaCompleta: {
		ActionComplete: entity.OrderStateCompletada,
	},
	entity.OrderStateCompletada: {},
	entity.OrderStateCancelada:  {},
}

// Allowed indica si la acción está permitida en el estado.
func Allowed(state entity.OrderState, action Action) bool {
	_, ok := Transitions[state][action]
	return ok
}

// Next devuelve el estado destino o un InvalidTransitionError.
func Next(state entity.OrderState, action Action) (entity.OrderState, error) {
	target, ok := Transitions[state][action]
	if !ok {
		return state, domain.NewInvalidTransitionError(string(state), string(action))
	}
	return target, nil
}

// IsModifiable: BORRADOR y PENDIENTE.
func IsModifiable(state entity.OrderState) bool {
	return Allowed(state, ActionEditLines)
}

// IsReceivable: ENVIADA, CONFIRMADA, EN_TRANSITO y RECIBIDA_PARCIAL.
func IsReceivable(state entity.OrderState) bool {
	return Allowed(state, ActionReceive)
}

// IsCancelable: todo estado salvo COMPLETADA, CANCELADA y RECIBIDA_COMPLETA.
func IsCancelable(state entity.OrderState) bool {
	return Allowed(state, ActionCancel)
}

// IsTerminal indica que la orden ya no acepta ninguna acción.
func IsTerminal(state entity.OrderState) bool {
	return len(Transitions[state]) == 0
}
