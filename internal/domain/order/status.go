package order

// Status is an order lifecycle state. One closed vocabulary is used across
// all layers; out_for_delivery exists only for delivery orders.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAccepted       Status = "accepted"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// forward is the closed per-type transition table. Cancellation is handled
// separately: it is reachable from any non-terminal state.
var forward = map[Type]map[Status]Status{
	TypePickup: {
		StatusPending:   StatusAccepted,
		StatusAccepted:  StatusPreparing,
		StatusPreparing: StatusReady,
		StatusReady:     StatusCompleted,
	},
	TypeDelivery: {
		StatusPending:        StatusAccepted,
		StatusAccepted:       StatusPreparing,
		StatusPreparing:      StatusReady,
		StatusReady:          StatusOutForDelivery,
		StatusOutForDelivery: StatusCompleted,
	},
}

// NextStatus returns the single forward move for a status under the given
// order type. ok is false when the status is terminal or not part of that
// type's sequence.
func NextStatus(s Status, t Type) (next Status, ok bool) {
	next, ok = forward[t][s]
	return next, ok
}

// Terminal reports whether the status has no further forward move for any
// order type.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanCancel reports whether an order in this status may still be cancelled.
func CanCancel(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusOutForDelivery:
		return true
	default:
		return false
	}
}
