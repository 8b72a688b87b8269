package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

var ErrInvalidQuantity = errors.New("quantity must not be negative")

// Quantity is a non-negative count of units.
type Quantity int32

func NewQuantity(n int) (Quantity, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	if n > 1<<31-1 {
		return 0, fmt.Errorf("quantity %d out of range", n)
	}
	return Quantity(n), nil
}

func (q Quantity) Int() int { return int(q) }

func (q Quantity) Value() (driver.Value, error) {
	return int64(q), nil
}

func (q *Quantity) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*q = Quantity(v)
	case int32:
		*q = Quantity(v)
	default:
		return fmt.Errorf("quantity: cannot scan %T", src)
	}
	if *q < 0 {
		return ErrInvalidQuantity
	}
	return nil
}
