// Package apperr defines the error taxonomy shared by the settlement components.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
)

var (
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInsufficientWalletBalance = errors.New("insufficient wallet balance")
	ErrPermissionDenied          = errors.New("permission denied")
	// ErrAlreadyProcessed marks an idempotent no-op. The orchestrator turns it
	// into a successful result carrying the current state.
	ErrAlreadyProcessed = errors.New("already processed")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
)

// TransitionError reports a state machine guard violation.
type TransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: invalid transition from %s to %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InsufficientStockError names the product that failed a reservation.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d (short by %d)",
		e.ProductID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InsufficientBalanceError is returned when a refund or withdrawal exceeds
// the seller's withdrawable balance.
type InsufficientBalanceError struct {
	SellerID  uuid.UUID
	Required  money.Money
	Available money.Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance for seller %s: required %s, available %s",
		e.SellerID, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientWalletBalance
}

// Permission builds an ErrPermissionDenied with context.
func Permission(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// Validation builds an ErrValidation with context.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound naming the missing entity.
func NotFound(entity string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
