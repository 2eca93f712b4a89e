package fixedpoint

import "github.com/holiman/uint256"

// AddUint returns a + b or ErrAddOverflow.
func AddUint(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrAddOverflow
	}
	return sum, nil
}

// SubUint returns a - b or ErrSubUnderflow.
func SubUint(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrSubUnderflow
	}
	return diff, nil
}

// MulUint returns a * b or ErrMulOverflow.
func MulUint(a, b *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrMulOverflow
	}
	return product, nil
}

// DivUint returns floor(a / b) or ErrDivByZero.
func DivUint(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// SaturatingSub returns a - b, clamped at zero.
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
