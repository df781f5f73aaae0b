package store

import "github.com/snake33madb2017/turno-barberia/internal/models"

// Lifecycle events. CancelBySelf and CancelByAdmin share the same legality
// but set different status messages.
const (
	EventStart         = "start"
	EventFinish        = "finish"
	EventCancelByAdmin = "cancel_by_admin"
	EventCancelBySelf  = "cancel_by_self"
)

var transitionMap = map[string][]string{
	EventStart:         {models.StatePending},
	EventFinish:        {models.StateActive},
	EventCancelByAdmin: {models.StatePending, models.StateActive},
	EventCancelBySelf:  {models.StatePending, models.StateActive},
}

var eventTarget = map[string]string{
	EventStart:         models.StateActive,
	EventFinish:        models.StateFinished,
	EventCancelByAdmin: models.StateCanceled,
	EventCancelBySelf:  models.StateCanceled,
}

func ValidTransition(event, fromState string) bool {
	allowed, ok := transitionMap[event]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == fromState {
			return true
		}
	}
	return false
}

// NextState returns the state the event leads to. It does not check
// legality; call ValidTransition first.
func NextState(event string) (string, bool) {
	state, ok := eventTarget[event]
	return state, ok
}
