// Package fixedpoint implements the 18-decimal fixed point arithmetic used by
// the lending ledgers. Every operation that can overflow, underflow or divide
// by zero reports a MathError instead of wrapping.
package fixedpoint

import (
	"github.com/holiman/uint256"
)

// Scale is the number of decimals carried by an Exp mantissa.
const Scale = 18

var (
	expScale     = uint256.NewInt(1_000_000_000_000_000_000)
	halfExpScale = uint256.NewInt(500_000_000_000_000_000)
)

// Exp is a fixed point number whose value is Mantissa / 1e18.
type Exp struct {
	Mantissa uint256.Int
}

// One returns the Exp representing 1.0.
func One() Exp {
	return Exp{Mantissa: *expScale}
}

// Zero returns the Exp representing 0.
func Zero() Exp {
	return Exp{}
}

// ExpScale returns a fresh copy of 1e18.
func ExpScale() *uint256.Int {
	return new(uint256.Int).Set(expScale)
}

// HalfExpScale returns a fresh copy of 0.5e18.
func HalfExpScale() *uint256.Int {
	return new(uint256.Int).Set(halfExpScale)
}

// NewExp wraps a raw mantissa. A nil mantissa yields zero.
func NewExp(mantissa *uint256.Int) Exp {
	var e Exp
	if mantissa != nil {
		e.Mantissa.Set(mantissa)
	}
	return e
}

// FromUint64 wraps a raw uint64 mantissa.
func FromUint64(mantissa uint64) Exp {
	var e Exp
	e.Mantissa.SetUint64(mantissa)
	return e
}

// Raw returns a copy of the mantissa.
func (e Exp) Raw() *uint256.Int {
	return new(uint256.Int).Set(&e.Mantissa)
}

// IsZero reports whether the value is zero.
func (e Exp) IsZero() bool {
	return e.Mantissa.IsZero()
}

// Cmp compares two Exps.
func (e Exp) Cmp(other Exp) int {
	return e.Mantissa.Cmp(&other.Mantissa)
}

// String renders the mantissa in decimal.
func (e Exp) String() string {
	return e.Mantissa.Dec()
}

// Fraction returns num / den as an Exp, i.e. num*1e18/den.
func Fraction(num, den *uint256.Int) (Exp, error) {
	scaled, err := MulUint(num, expScale)
	if err != nil {
		return Exp{}, err
	}
	q, err := DivUint(scaled, den)
	if err != nil {
		return Exp{}, err
	}
	return NewExp(q), nil
}

// Add returns a + b.
func Add(a, b Exp) (Exp, error) {
	sum, err := AddUint(&a.Mantissa, &b.Mantissa)
	if err != nil {
		return Exp{}, err
	}
	return NewExp(sum), nil
}

// Sub returns a - b.
func Sub(a, b Exp) (Exp, error) {
	diff, err := SubUint(&a.Mantissa, &b.Mantissa)
	if err != nil {
		return Exp{}, err
	}
	return NewExp(diff), nil
}

// Mul returns a*b/1e18. The intermediate product is overflow checked.
func Mul(a, b Exp) (Exp, error) {
	product, err := MulUint(&a.Mantissa, &b.Mantissa)
	if err != nil {
		return Exp{}, err
	}
	return NewExp(product.Div(product, expScale)), nil
}

// Div returns a*1e18/b.
func Div(a, b Exp) (Exp, error) {
	return Fraction(&a.Mantissa, &b.Mantissa)
}

// MulScalar returns a * scalar as an Exp.
func MulScalar(a Exp, scalar *uint256.Int) (Exp, error) {
	product, err := MulUint(&a.Mantissa, scalar)
	if err != nil {
		return Exp{}, err
	}
	return NewExp(product), nil
}

// MulScalarTruncate returns floor(a * scalar).
func MulScalarTruncate(a Exp, scalar *uint256.Int) (*uint256.Int, error) {
	product, err := MulScalar(a, scalar)
	if err != nil {
		return nil, err
	}
	return Truncate(product), nil
}

// MulScalarTruncateAdd returns floor(a * scalar) + addend.
func MulScalarTruncateAdd(a Exp, scalar, addend *uint256.Int) (*uint256.Int, error) {
	truncated, err := MulScalarTruncate(a, scalar)
	if err != nil {
		return nil, err
	}
	return AddUint(truncated, addend)
}

// DivScalarByExp returns scalar / divisor as an Exp.
func DivScalarByExp(scalar *uint256.Int, divisor Exp) (Exp, error) {
	numerator, err := MulUint(expScale, scalar)
	if err != nil {
		return Exp{}, err
	}
	return Fraction(numerator, &divisor.Mantissa)
}

// DivScalarByExpTruncate returns floor(scalar / divisor).
func DivScalarByExpTruncate(scalar *uint256.Int, divisor Exp) (*uint256.Int, error) {
	fraction, err := DivScalarByExp(scalar, divisor)
	if err != nil {
		return nil, err
	}
	return Truncate(fraction), nil
}

// Truncate drops the fractional part of e.
func Truncate(e Exp) *uint256.Int {
	return new(uint256.Int).Div(&e.Mantissa, expScale)
}

// Min returns the smaller of two integers as a fresh value.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
