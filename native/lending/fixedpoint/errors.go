package fixedpoint

// MathError identifies the arithmetic failure behind a rejected computation.
// Values compare with errors.Is.
type MathError uint8

const (
	// ErrMulOverflow reports that a product did not fit in 256 bits.
	ErrMulOverflow MathError = iota + 1
	// ErrAddOverflow reports that a sum did not fit in 256 bits.
	ErrAddOverflow
	// ErrSubUnderflow reports that a difference would be negative.
	ErrSubUnderflow
	// ErrDivByZero reports a zero divisor.
	ErrDivByZero
)

func (e MathError) Error() string {
	switch e {
	case ErrMulOverflow:
		return "multiplication overflow"
	case ErrAddOverflow:
		return "addition overflow"
	case ErrSubUnderflow:
		return "subtraction underflow"
	case ErrDivByZero:
		return "division by zero"
	default:
		return "unknown math error"
	}
}
