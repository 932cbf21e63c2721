package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount carried with exactly two decimal
// digits. Every arithmetic result is rounded half-to-even so repeated
// evaluation of the same checkout never drifts.
type Money struct {
	d decimal.Decimal
}

// Zero is the 0.00 amount.
var Zero = Money{d: decimal.Zero}

// FromString parses an amount like "49.99". The result is rounded to two
// decimals.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money{d: d.RoundBank(2)}, nil
}

// MustFromString is FromString for literals in tests and catalogs.
func MustFromString(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d).RoundBank(2)}
}

func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d).RoundBank(2)}
}

// Percent returns rate percent of m, rounded. Percent(10) of 100.00 is 10.00.
func (m Money) Percent(rate int64) Money {
	r := decimal.New(rate, -2) // rate/100
	return Money{d: m.d.Mul(r).RoundBank(2)}
}

// Round2 re-rounds to two decimals half-to-even. Idempotent: amounts built
// through this package are already at two decimals.
func (m Money) Round2() Money {
	return Money{d: m.d.RoundBank(2)}
}

func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) LessThan(o Money) bool {
	return m.d.Cmp(o.d) < 0
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// Cents returns the amount as an integer number of cents, for storage.
func (m Money) Cents() int64 {
	return m.d.Shift(2).IntPart()
}

// String renders with exactly two decimal places, e.g. "95.99".
func (m Money) String() string {
	return m.d.StringFixed(2)
}
