package engine

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/native/lending"
)

const maxKeyword = "max"

func parseAddress(addr string) (common.Address, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address required: %w", ErrInvalidAddress)
	}
	parsed, err := lending.ParseAddress(trimmed)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return parsed, nil
}

func parseAmount(amount string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required: %w", ErrInvalidAmount)
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", trimmed, ErrInvalidAmount)
	}
	if value.IsZero() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidAmount)
	}
	return value, nil
}

// parseOptionalMax accepts either a positive integer or "max".
func parseOptionalMax(amount string) (lending.Amount, error) {
	if strings.EqualFold(strings.TrimSpace(amount), maxKeyword) {
		return lending.Max(), nil
	}
	value, err := parseAmount(amount)
	if err != nil {
		return lending.Amount{}, err
	}
	return lending.Exact(value), nil
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
