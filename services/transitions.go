package services

import (
	"alforge/apperr"
	"alforge/models"
)

type Action string

const (
	ActionPrepare Action = "prepare"
	ActionReady   Action = "ready"
	ActionRevert  Action = "revert"
	ActionDeliver Action = "deliver"
	ActionReturn  Action = "return"
	ActionCancel  Action = "cancel"
)

// transitions is the whole requisition state machine. Anything missing is illegal.
var transitions = map[models.RequisitionState]map[Action]models.RequisitionState{
	models.StateSubmitted: {
		ActionPrepare: models.StateInPreparation,
		ActionCancel:  models.StateCancelled,
	},
	models.StateInPreparation: {
		ActionReady: models.StateReady,
	},
	models.StateReady: {
		ActionRevert:  models.StateInPreparation,
		ActionDeliver: models.StateDelivered,
	},
	models.StateDelivered: {
		ActionReturn: models.StateReturned,
	},
}

// Next returns the state reached by applying a to s.
func Next(s models.RequisitionState, a Action) (models.RequisitionState, error) {
	if to, ok := transitions[s][a]; ok {
		return to, nil
	}
	return s, apperr.InvalidTransition("cannot %s a requisition in state %s", a, s)
}
