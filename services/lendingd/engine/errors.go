package engine

import (
	"errors"
	"fmt"

	nativecommon "moneymarket/native/common"
	"moneymarket/native/lending"
)

var (
	ErrNotFound               = errors.New("lending: not found")
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	ErrPaused                 = errors.New("lending: operation paused")
	ErrInvalidAmount          = errors.New("lending: invalid amount")
	ErrInvalidAddress         = errors.New("lending: invalid address")
	ErrUnauthorized           = errors.New("lending: unauthorized")
	ErrRejected               = errors.New("lending: rejected")
	ErrInternal               = errors.New("lending: internal error")
)

// translate classifies an engine failure under one of the sentinels while
// keeping the original error reachable through errors.As.
func translate(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", classify(err), err)
}

func classify(err error) error {
	switch {
	case errors.Is(err, lending.ErrUnknownMarket):
		return ErrNotFound
	case errors.Is(err, nativecommon.ErrModulePaused):
		return ErrPaused
	}
	var lerr *lending.Error
	if !errors.As(err, &lerr) {
		return ErrInternal
	}
	switch lerr.Reason {
	case lending.ReasonActionPaused:
		return ErrPaused
	case lending.ReasonInsufficientLiquidity, lending.ReasonInsufficientShortfall:
		return ErrInsufficientCollateral
	case lending.ReasonUnauthorized:
		return ErrUnauthorized
	}
	switch lerr.Code {
	case lending.Unauthorized:
		return ErrUnauthorized
	case lending.MarketNotListed:
		return ErrNotFound
	case lending.BadInput, lending.InvalidCloseAmountRequested, lending.InvalidAccountPair, lending.MathError:
		return ErrInvalidAmount
	case lending.Reentered:
		return ErrInternal
	default:
		return ErrRejected
	}
}
