package lending

import "github.com/holiman/uint256"

// Amount is either an exact quantity or "everything available", resolved to
// a concrete value at the start of an operation.
type Amount struct {
	value *uint256.Int
	max   bool
}

// Exact returns an Amount for v. A nil v is treated as zero.
func Exact(v *uint256.Int) Amount {
	if v == nil {
		return Amount{value: new(uint256.Int)}
	}
	return Amount{value: new(uint256.Int).Set(v)}
}

// Max requests the full available balance, e.g. the whole outstanding debt
// on repay or every pool token on redeem.
func Max() Amount {
	return Amount{max: true}
}

// IsMax reports whether the amount requests the full balance.
func (a Amount) IsMax() bool { return a.max }

// Value returns a copy of the exact quantity, or nil for Max.
func (a Amount) Value() *uint256.Int {
	if a.max {
		return nil
	}
	if a.value == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a.value)
}

func (a Amount) resolve(available *uint256.Int) *uint256.Int {
	if a.max {
		return new(uint256.Int).Set(available)
	}
	return a.Value()
}

func (a Amount) String() string {
	if a.max {
		return "max"
	}
	return a.Value().Dec()
}
