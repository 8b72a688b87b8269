// Package money holds the fixed-point amount types used by the settlement engine.
//
// Amounts are stored as int64 minor units (cents). Floating point never
// appears in ledger arithmetic; percentage splits go through decimal and are
// rounded half-up to the minor unit exactly once.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places of the minor unit.
const Scale = 2

var ErrInvalidAmount = errors.New("invalid money amount")

// Money is an amount in minor currency units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

func FromMinor(minor int64) Money {
	return Money(minor)
}

// Parse reads a decimal string such as "12.50". More than Scale fractional
// digits is rejected rather than rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts an exact decimal amount.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d.String(), Scale)
	}
	return Money(d.Shift(Scale).IntPart()), nil
}

func (m Money) Minor() int64 {
	return int64(m)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money { return -m }

// Mul multiplies a unit price by a quantity.
func (m Money) Mul(q Quantity) Money {
	return m * Money(q)
}

// Share applies rate (e.g. 0.90) and rounds half-up to the minor unit.
// Callers must apply it to the exact, unrounded base amount.
func (m Money) Share(rate decimal.Decimal) Money {
	d := m.Decimal().Mul(rate).Round(Scale)
	return Money(d.Shift(Scale).IntPart())
}

func (m Money) IsZero() bool { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) LessThan(o Money) bool { return m < o }

func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Sum adds amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// MarshalJSON encodes the amount as a decimal string to keep precision on the wire.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as BIGINT minor units.
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*m = Money(v)
	case int32:
		*m = Money(v)
	case nil:
		*m = 0
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
