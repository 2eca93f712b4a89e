package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/types"
)

const (
	TypeAccrueInterest        = "lending.accrue_interest"
	TypeMint                  = "lending.mint"
	TypeRedeem                = "lending.redeem"
	TypeBorrow                = "lending.borrow"
	TypeRepayBorrow           = "lending.repay_borrow"
	TypeLiquidateBorrow       = "lending.liquidate_borrow"
	TypePoolTransfer          = "lending.transfer"
	TypeApproval              = "lending.approval"
	TypeFlashloan             = "lending.flashloan"
	TypeReservesAdded         = "lending.reserves_added"
	TypeReservesReduced       = "lending.reserves_reduced"
	TypeUserCollateralChanged = "lending.user_collateral_changed"
	TypeParameterUpdated      = "lending.parameter_updated"
	TypeMarketListed          = "lending.market_listed"
	TypeMarketDelisted        = "lending.market_delisted"
	TypeMarketEntered         = "lending.market_entered"
	TypeMarketExited          = "lending.market_exited"
	TypeActionPaused          = "lending.action_paused"
	TypeCreditLimitChanged    = "lending.credit_limit_changed"
)

// AccrueInterest is emitted after a successful interest accrual.
type AccrueInterest struct {
	Market              common.Address
	CashPrior           *uint256.Int
	InterestAccumulated *uint256.Int
	BorrowIndex         *uint256.Int
	TotalBorrows        *uint256.Int
}

func (AccrueInterest) EventType() string { return TypeAccrueInterest }

func (e AccrueInterest) Event() *types.Event {
	return &types.Event{Type: TypeAccrueInterest, Attributes: map[string]string{
		"market":              formatAddress(e.Market),
		"cashPrior":           formatU256(e.CashPrior),
		"interestAccumulated": formatU256(e.InterestAccumulated),
		"borrowIndex":         formatU256(e.BorrowIndex),
		"totalBorrows":        formatU256(e.TotalBorrows),
	}}
}

type Mint struct {
	Market     common.Address
	Minter     common.Address
	MintAmount *uint256.Int
	MintTokens *uint256.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{Type: TypeMint, Attributes: map[string]string{
		"market":     formatAddress(e.Market),
		"minter":     formatAddress(e.Minter),
		"mintAmount": formatU256(e.MintAmount),
		"mintTokens": formatU256(e.MintTokens),
	}}
}

type Redeem struct {
	Market       common.Address
	Redeemer     common.Address
	RedeemAmount *uint256.Int
	RedeemTokens *uint256.Int
}

func (Redeem) EventType() string { return TypeRedeem }

func (e Redeem) Event() *types.Event {
	return &types.Event{Type: TypeRedeem, Attributes: map[string]string{
		"market":       formatAddress(e.Market),
		"redeemer":     formatAddress(e.Redeemer),
		"redeemAmount": formatU256(e.RedeemAmount),
		"redeemTokens": formatU256(e.RedeemTokens),
	}}
}

type Borrow struct {
	Market         common.Address
	Borrower       common.Address
	BorrowAmount   *uint256.Int
	AccountBorrows *uint256.Int
	TotalBorrows   *uint256.Int
}

func (Borrow) EventType() string { return TypeBorrow }

func (e Borrow) Event() *types.Event {
	return &types.Event{Type: TypeBorrow, Attributes: map[string]string{
		"market":         formatAddress(e.Market),
		"borrower":       formatAddress(e.Borrower),
		"borrowAmount":   formatU256(e.BorrowAmount),
		"accountBorrows": formatU256(e.AccountBorrows),
		"totalBorrows":   formatU256(e.TotalBorrows),
	}}
}

type RepayBorrow struct {
	Market         common.Address
	Payer          common.Address
	Borrower       common.Address
	RepayAmount    *uint256.Int
	AccountBorrows *uint256.Int
	TotalBorrows   *uint256.Int
}

func (RepayBorrow) EventType() string { return TypeRepayBorrow }

func (e RepayBorrow) Event() *types.Event {
	return &types.Event{Type: TypeRepayBorrow, Attributes: map[string]string{
		"market":         formatAddress(e.Market),
		"payer":          formatAddress(e.Payer),
		"borrower":       formatAddress(e.Borrower),
		"repayAmount":    formatU256(e.RepayAmount),
		"accountBorrows": formatU256(e.AccountBorrows),
		"totalBorrows":   formatU256(e.TotalBorrows),
	}}
}

type LiquidateBorrow struct {
	Market           common.Address
	Liquidator       common.Address
	Borrower         common.Address
	RepayAmount      *uint256.Int
	CollateralMarket common.Address
	SeizeTokens      *uint256.Int
}

func (LiquidateBorrow) EventType() string { return TypeLiquidateBorrow }

func (e LiquidateBorrow) Event() *types.Event {
	return &types.Event{Type: TypeLiquidateBorrow, Attributes: map[string]string{
		"market":           formatAddress(e.Market),
		"liquidator":       formatAddress(e.Liquidator),
		"borrower":         formatAddress(e.Borrower),
		"repayAmount":      formatU256(e.RepayAmount),
		"collateralMarket": formatAddress(e.CollateralMarket),
		"seizeTokens":      formatU256(e.SeizeTokens),
	}}
}

// PoolTransfer records a movement of pool tokens. Mints use the market as the
// source and redeems use it as the destination.
type PoolTransfer struct {
	Market common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (PoolTransfer) EventType() string { return TypePoolTransfer }

func (e PoolTransfer) Event() *types.Event {
	return &types.Event{Type: TypePoolTransfer, Attributes: map[string]string{
		"market": formatAddress(e.Market),
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatU256(e.Amount),
	}}
}

type Approval struct {
	Market  common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"market":  formatAddress(e.Market),
		"owner":   formatAddress(e.Owner),
		"spender": formatAddress(e.Spender),
		"amount":  formatU256(e.Amount),
	}}
}

type Flashloan struct {
	Market      common.Address
	Receiver    common.Address
	Amount      *uint256.Int
	TotalFee    *uint256.Int
	ReservesFee *uint256.Int
}

func (Flashloan) EventType() string { return TypeFlashloan }

func (e Flashloan) Event() *types.Event {
	return &types.Event{Type: TypeFlashloan, Attributes: map[string]string{
		"market":      formatAddress(e.Market),
		"receiver":    formatAddress(e.Receiver),
		"amount":      formatU256(e.Amount),
		"totalFee":    formatU256(e.TotalFee),
		"reservesFee": formatU256(e.ReservesFee),
	}}
}

type ReservesAdded struct {
	Market           common.Address
	Benefactor       common.Address
	AddAmount        *uint256.Int
	NewTotalReserves *uint256.Int
}

func (ReservesAdded) EventType() string { return TypeReservesAdded }

func (e ReservesAdded) Event() *types.Event {
	return &types.Event{Type: TypeReservesAdded, Attributes: map[string]string{
		"market":           formatAddress(e.Market),
		"benefactor":       formatAddress(e.Benefactor),
		"addAmount":        formatU256(e.AddAmount),
		"newTotalReserves": formatU256(e.NewTotalReserves),
	}}
}

type ReservesReduced struct {
	Market           common.Address
	Admin            common.Address
	ReduceAmount     *uint256.Int
	NewTotalReserves *uint256.Int
}

func (ReservesReduced) EventType() string { return TypeReservesReduced }

func (e ReservesReduced) Event() *types.Event {
	return &types.Event{Type: TypeReservesReduced, Attributes: map[string]string{
		"market":           formatAddress(e.Market),
		"admin":            formatAddress(e.Admin),
		"reduceAmount":     formatU256(e.ReduceAmount),
		"newTotalReserves": formatU256(e.NewTotalReserves),
	}}
}

// UserCollateralChanged reports the collateral-enrolled balance of an account
// in a capped market after it changed.
type UserCollateralChanged struct {
	Market           common.Address
	Account          common.Address
	CollateralTokens *uint256.Int
}

func (UserCollateralChanged) EventType() string { return TypeUserCollateralChanged }

func (e UserCollateralChanged) Event() *types.Event {
	return &types.Event{Type: TypeUserCollateralChanged, Attributes: map[string]string{
		"market":           formatAddress(e.Market),
		"account":          formatAddress(e.Account),
		"collateralTokens": formatU256(e.CollateralTokens),
	}}
}

// ParameterUpdated covers admin setters. Market is zero for protocol-wide
// parameters.
type ParameterUpdated struct {
	Market    common.Address
	Parameter string
	Old       string
	New       string
}

func (ParameterUpdated) EventType() string { return TypeParameterUpdated }

func (e ParameterUpdated) Event() *types.Event {
	attrs := map[string]string{
		"parameter": e.Parameter,
		"new":       e.New,
	}
	if e.Market != (common.Address{}) {
		attrs["market"] = formatAddress(e.Market)
	}
	if e.Old != "" {
		attrs["old"] = e.Old
	}
	return &types.Event{Type: TypeParameterUpdated, Attributes: attrs}
}

type MarketListed struct {
	Market  common.Address
	Symbol  string
	Version string
}

func (MarketListed) EventType() string { return TypeMarketListed }

func (e MarketListed) Event() *types.Event {
	attrs := map[string]string{
		"market":  formatAddress(e.Market),
		"version": e.Version,
	}
	if symbol := normalizeAsset(e.Symbol); symbol != "" {
		attrs["symbol"] = symbol
	}
	return &types.Event{Type: TypeMarketListed, Attributes: attrs}
}

type MarketDelisted struct {
	Market common.Address
	Soft   bool
}

func (MarketDelisted) EventType() string { return TypeMarketDelisted }

func (e MarketDelisted) Event() *types.Event {
	return &types.Event{Type: TypeMarketDelisted, Attributes: map[string]string{
		"market": formatAddress(e.Market),
		"soft":   strconv.FormatBool(e.Soft),
	}}
}

type MarketEntered struct {
	Market  common.Address
	Account common.Address
}

func (MarketEntered) EventType() string { return TypeMarketEntered }

func (e MarketEntered) Event() *types.Event {
	return &types.Event{Type: TypeMarketEntered, Attributes: map[string]string{
		"market":  formatAddress(e.Market),
		"account": formatAddress(e.Account),
	}}
}

type MarketExited struct {
	Market  common.Address
	Account common.Address
}

func (MarketExited) EventType() string { return TypeMarketExited }

func (e MarketExited) Event() *types.Event {
	return &types.Event{Type: TypeMarketExited, Attributes: map[string]string{
		"market":  formatAddress(e.Market),
		"account": formatAddress(e.Account),
	}}
}

// ActionPaused is emitted for per-market (mint, borrow, flashloan) and global
// (transfer, seize) pause toggles. Market is zero for global actions.
type ActionPaused struct {
	Market common.Address
	Action string
	Paused bool
}

func (ActionPaused) EventType() string { return TypeActionPaused }

func (e ActionPaused) Event() *types.Event {
	attrs := map[string]string{
		"action": e.Action,
		"paused": strconv.FormatBool(e.Paused),
	}
	if e.Market != (common.Address{}) {
		attrs["market"] = formatAddress(e.Market)
	}
	return &types.Event{Type: TypeActionPaused, Attributes: attrs}
}

type CreditLimitChanged struct {
	Protocol common.Address
	Market   common.Address
	Limit    *uint256.Int
	Paused   bool
}

func (CreditLimitChanged) EventType() string { return TypeCreditLimitChanged }

func (e CreditLimitChanged) Event() *types.Event {
	return &types.Event{Type: TypeCreditLimitChanged, Attributes: map[string]string{
		"protocol": formatAddress(e.Protocol),
		"market":   formatAddress(e.Market),
		"limit":    formatU256(e.Limit),
		"paused":   strconv.FormatBool(e.Paused),
	}}
}
