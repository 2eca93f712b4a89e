package lending

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/native/lending/state"
)

var (
	ErrTokenInsufficientBalance   = errors.New("token: insufficient balance")
	ErrTokenInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrTokenTransferFailed        = errors.New("token: transfer failed")
	ErrNativeSendFailed           = errors.New("token: native send failed")
)

// TokenAdapter moves a market's underlying asset between accounts and the
// market's pool address.
type TokenAdapter interface {
	Asset() common.Address
	BalanceOf(holder common.Address) *uint256.Int
	TransferIn(from common.Address, amount *uint256.Int) error
	TransferOut(to common.Address, amount *uint256.Int) error
}

// TokenReceiver is invoked after an account registered with
// Engine.RegisterReceiver is credited with a token or the native currency.
// Returning an error fails the transfer.
type TokenReceiver interface {
	OnTokenReceived(asset, from common.Address, amount *uint256.Int) error
}

// ERC20Adapter pulls tokens using allowances granted to the pool and pushes
// them with a plain transfer.
type ERC20Adapter struct {
	engine *Engine
	token  common.Address
	pool   common.Address
}

func (a *ERC20Adapter) Asset() common.Address { return a.token }

func (a *ERC20Adapter) BalanceOf(holder common.Address) *uint256.Int {
	return a.engine.state.Balance(a.token, holder)
}

func (a *ERC20Adapter) TransferIn(from common.Address, amount *uint256.Int) error {
	allowance := a.engine.state.Allowance(a.token, from, a.pool)
	if allowance.Lt(amount) {
		return ErrTokenInsufficientAllowance
	}
	if a.BalanceOf(from).Lt(amount) {
		return ErrTokenInsufficientBalance
	}
	if !isMaxAllowance(allowance) {
		a.engine.state.SetAllowance(a.token, from, a.pool, new(uint256.Int).Sub(allowance, amount))
	}
	return a.engine.moveToken(a.token, from, a.pool, amount)
}

func (a *ERC20Adapter) TransferOut(to common.Address, amount *uint256.Int) error {
	if a.BalanceOf(a.pool).Lt(amount) {
		return ErrTokenTransferFailed
	}
	if err := a.engine.moveToken(a.token, a.pool, to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenTransferFailed, err)
	}
	return nil
}

// NativeAdapter moves the native currency. Inbound value is implicit, so
// TransferIn only checks and debits the sender's balance.
type NativeAdapter struct {
	engine *Engine
	pool   common.Address
}

func (a *NativeAdapter) Asset() common.Address { return state.NativeAsset }

func (a *NativeAdapter) BalanceOf(holder common.Address) *uint256.Int {
	return a.engine.state.Balance(state.NativeAsset, holder)
}

func (a *NativeAdapter) TransferIn(from common.Address, amount *uint256.Int) error {
	if a.BalanceOf(from).Lt(amount) {
		return ErrTokenInsufficientBalance
	}
	return a.engine.moveToken(state.NativeAsset, from, a.pool, amount)
}

func (a *NativeAdapter) TransferOut(to common.Address, amount *uint256.Int) error {
	if a.BalanceOf(a.pool).Lt(amount) {
		return ErrNativeSendFailed
	}
	if err := a.engine.moveToken(state.NativeAsset, a.pool, to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrNativeSendFailed, err)
	}
	return nil
}

func isMaxAllowance(v *uint256.Int) bool {
	return v.Eq(maxUint256)
}

var maxUint256 = new(uint256.Int).SetAllOne()

// transferInError maps an adapter failure on the inbound leg.
func transferInError(info Info, err error) *Error {
	switch {
	case errors.Is(err, ErrReentered):
		return reentered()
	case errors.Is(err, ErrTokenInsufficientAllowance):
		return failWrap(TokenInsufficientAllowance, info, err)
	case errors.Is(err, ErrTokenInsufficientBalance):
		return failWrap(TokenInsufficientBalance, info, err)
	default:
		return failWrap(TokenTransferInFailed, info, err)
	}
}

// transferOutError maps an adapter failure on the outbound leg. Native send
// failures keep their own Info so callers can tell them apart.
func transferOutError(info Info, err error) *Error {
	switch {
	case errors.Is(err, ErrReentered):
		return reentered()
	case errors.Is(err, ErrNativeSendFailed):
		return failWrap(TokenTransferOutFailed, InfoNativeSendFailed, err)
	default:
		return failWrap(TokenTransferOutFailed, info, err)
	}
}
