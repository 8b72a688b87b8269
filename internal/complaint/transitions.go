// Package complaint models the buyer dispute workflow over a single order item.
package complaint

import (
	"time"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusNegotiating:    true,
		StatusWaitingReturn:  true,
		StatusResolvedRefund: true,
		StatusCancelled:      true,
	},
	StatusNegotiating: {
		StatusAdminReview: true,
		StatusCancelled:   true,
	},
	StatusWaitingReturn: {
		StatusReturning: true,
		StatusCancelled: true,
	},
	StatusReturning: {
		StatusAdminReview:    true,
		StatusResolvedRefund: true,
		StatusCancelled:      true,
	},
	StatusAdminReview: {
		StatusResolvedRefund: true,
		StatusResolvedReject: true,
		StatusCancelled:      true,
	},
	StatusResolvedRefund: {},
	StatusResolvedReject: {},
	StatusCancelled:      {},
}

func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// IsActive is the negation of IsTerminal; an active complaint keeps its
// order disputed.
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	return ok && next[to]
}

// ActiveStatuses lists every non-terminal status.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusNegotiating, StatusWaitingReturn, StatusReturning, StatusAdminReview}
}

// TransitionTo applies to and stamps ResolvedAt on entering a terminal state.
// Re-applying the current status reports apperr.ErrAlreadyProcessed.
func (c *Complaint) TransitionTo(to Status, now time.Time) error {
	if c.Status == to {
		return apperr.ErrAlreadyProcessed
	}
	if !CanTransition(c.Status, to) {
		return &apperr.TransitionError{Entity: "complaint", From: c.Status.String(), To: to.String()}
	}
	c.Status = to
	c.UpdatedAt = now
	if to.IsTerminal() {
		resolved := now
		c.ResolvedAt = &resolved
	}
	return nil
}
