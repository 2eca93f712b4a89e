package fixedpoint

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ParseExp converts a human decimal ("0.75", "1.08") into an Exp. Digits beyond
// 18 decimals are truncated.
func ParseExp(value string) (Exp, error) {
	scaled, err := ParseScaled(value, Scale)
	if err != nil {
		return Exp{}, err
	}
	return NewExp(scaled), nil
}

// ParseScaled converts a decimal string into an integer scaled by 10^decimals.
// Empty input parses as zero.
func ParseScaled(value string, decimals int32) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse decimal %q: negative value", value)
	}
	scaled := d.Shift(decimals).Truncate(0).BigInt()
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return nil, fmt.Errorf("parse decimal %q: %w", value, ErrMulOverflow)
	}
	return out, nil
}

// FormatExp renders an Exp as a human decimal string.
func FormatExp(e Exp) string {
	return FormatScaled(&e.Mantissa, Scale)
}

// FormatScaled renders an integer scaled by 10^decimals as a decimal string.
func FormatScaled(value *uint256.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value.ToBig(), -decimals).String()
}
