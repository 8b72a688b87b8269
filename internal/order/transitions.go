package order

import (
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusShipping:  true,
		StatusCancelled: true,
	},
	StatusShipping: {
		StatusDelivered: true,
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusDelivered: {
		StatusCompleted: true,
		StatusReturned:  true,
	},
	StatusCompleted: {
		StatusReturned: true,
	},
	StatusCancelled: {},
	StatusReturned:  {},
}

// IsTerminal reports whether no business transition leaves s.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	return ok && next[to]
}

// TransitionTo validates and applies a status change. Re-applying the
// current status returns apperr.ErrAlreadyProcessed and leaves o untouched.
func (o *Order) TransitionTo(to Status) error {
	if o.Status == to {
		return apperr.ErrAlreadyProcessed
	}
	if !CanTransition(o.Status, to) {
		return &apperr.TransitionError{Entity: "order", From: o.Status.String(), To: to.String()}
	}
	if to == StatusCompleted && o.IsDisputed {
		return &apperr.TransitionError{
			Entity: "order",
			From:   o.Status.String(),
			To:     to.String(),
			Reason: "order has an unresolved complaint",
		}
	}
	o.Status = to
	return nil
}
