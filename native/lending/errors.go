package lending

import (
	"errors"
	"fmt"

	"moneymarket/native/lending/fixedpoint"
)

var (
	// ErrReentered is matched by errors.Is for every reentrancy rejection.
	ErrReentered = errors.New("lending engine: re-entered")
	// ErrUnknownMarket is returned by LookupMarket for unregistered addresses.
	ErrUnknownMarket = errors.New("lending engine: unknown market")

	errNilEngine         = errors.New("lending engine: engine not configured")
	errMarketExists      = errors.New("lending engine: market already registered")
	errNilModel          = errors.New("lending engine: interest rate model not configured")
	errNilOracle         = errors.New("lending engine: price oracle not configured")
	errBlockRegression   = errors.New("lending engine: block number must not decrease")
	errAccrualInFuture   = errors.New("lending engine: accrual block ahead of current block")
	errZeroInitialRate   = errors.New("lending engine: initial exchange rate must be positive")
	errUnderlyingMissing = errors.New("lending engine: underlying asset not configured")
)

// Code is the coarse status surfaced to callers.
type Code uint8

const (
	NoError Code = iota
	Unauthorized
	BadInput
	ComptrollerRejection
	ComptrollerCalculationError
	InterestRateModelError
	InvalidAccountPair
	InvalidCloseAmountRequested
	InvalidCollateralFactor
	MathError
	MarketNotFresh
	MarketNotListed
	TokenInsufficientAllowance
	TokenInsufficientBalance
	TokenInsufficientCash
	TokenTransferInFailed
	TokenTransferOutFailed
	PriceError
	Reentered
)

var codeNames = map[Code]string{
	NoError:                     "NO_ERROR",
	Unauthorized:                "UNAUTHORIZED",
	BadInput:                    "BAD_INPUT",
	ComptrollerRejection:        "COMPTROLLER_REJECTION",
	ComptrollerCalculationError: "COMPTROLLER_CALCULATION_ERROR",
	InterestRateModelError:      "INTEREST_RATE_MODEL_ERROR",
	InvalidAccountPair:          "INVALID_ACCOUNT_PAIR",
	InvalidCloseAmountRequested: "INVALID_CLOSE_AMOUNT_REQUESTED",
	InvalidCollateralFactor:     "INVALID_COLLATERAL_FACTOR",
	MathError:                   "MATH_ERROR",
	MarketNotFresh:              "MARKET_NOT_FRESH",
	MarketNotListed:             "MARKET_NOT_LISTED",
	TokenInsufficientAllowance:  "TOKEN_INSUFFICIENT_ALLOWANCE",
	TokenInsufficientBalance:    "TOKEN_INSUFFICIENT_BALANCE",
	TokenInsufficientCash:       "TOKEN_INSUFFICIENT_CASH",
	TokenTransferInFailed:       "TOKEN_TRANSFER_IN_FAILED",
	TokenTransferOutFailed:      "TOKEN_TRANSFER_OUT_FAILED",
	PriceError:                  "PRICE_ERROR",
	Reentered:                   "REENTERED",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", uint8(c))
}

// Reason is the risk controller's sub-code attached to rejections.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonUnauthorized
	ReasonInsufficientShortfall
	ReasonInsufficientLiquidity
	ReasonInvalidCloseFactor
	ReasonInvalidCollateralFactor
	ReasonInvalidLiquidationIncentive
	ReasonMarketNotEntered
	ReasonMarketNotListed
	ReasonMarketAlreadyListed
	ReasonMathError
	ReasonNonzeroBorrowBalance
	ReasonPriceError
	ReasonRejection
	ReasonTooMuchRepay
	ReasonActionPaused
	ReasonSupplyCapReached
	ReasonBorrowCapReached
	ReasonMarketNotEmpty
)

var reasonNames = map[Reason]string{
	ReasonNone:                        "NO_ERROR",
	ReasonUnauthorized:                "UNAUTHORIZED",
	ReasonInsufficientShortfall:       "INSUFFICIENT_SHORTFALL",
	ReasonInsufficientLiquidity:       "INSUFFICIENT_LIQUIDITY",
	ReasonInvalidCloseFactor:          "INVALID_CLOSE_FACTOR",
	ReasonInvalidCollateralFactor:     "INVALID_COLLATERAL_FACTOR",
	ReasonInvalidLiquidationIncentive: "INVALID_LIQUIDATION_INCENTIVE",
	ReasonMarketNotEntered:            "MARKET_NOT_ENTERED",
	ReasonMarketNotListed:             "MARKET_NOT_LISTED",
	ReasonMarketAlreadyListed:         "MARKET_ALREADY_LISTED",
	ReasonMathError:                   "MATH_ERROR",
	ReasonNonzeroBorrowBalance:        "NONZERO_BORROW_BALANCE",
	ReasonPriceError:                  "PRICE_ERROR",
	ReasonRejection:                   "REJECTION",
	ReasonTooMuchRepay:                "TOO_MUCH_REPAY",
	ReasonActionPaused:                "ACTION_PAUSED",
	ReasonSupplyCapReached:            "SUPPLY_CAP_REACHED",
	ReasonBorrowCapReached:            "BORROW_CAP_REACHED",
	ReasonMarketNotEmpty:              "MARKET_NOT_EMPTY",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REASON(%d)", uint8(r))
}

// Info names the step of an operation that failed.
type Info string

const (
	InfoAccrueInterestBorrowRateCalculationFailed Info = "ACCRUE_INTEREST_BORROW_RATE_CALCULATION_FAILED"
	InfoAccrueInterestBorrowRateTooHigh           Info = "ACCRUE_INTEREST_BORROW_RATE_TOO_HIGH"
	InfoAccrueInterestSimpleInterestFactorFailed  Info = "ACCRUE_INTEREST_SIMPLE_INTEREST_FACTOR_CALCULATION_FAILED"
	InfoAccrueInterestAccumulatedFailed           Info = "ACCRUE_INTEREST_ACCUMULATED_INTEREST_CALCULATION_FAILED"
	InfoAccrueInterestNewTotalBorrowsFailed       Info = "ACCRUE_INTEREST_NEW_TOTAL_BORROWS_CALCULATION_FAILED"
	InfoAccrueInterestNewTotalReservesFailed      Info = "ACCRUE_INTEREST_NEW_TOTAL_RESERVES_CALCULATION_FAILED"
	InfoAccrueInterestNewBorrowIndexFailed        Info = "ACCRUE_INTEREST_NEW_BORROW_INDEX_CALCULATION_FAILED"
	InfoExchangeRateCalculationFailed             Info = "EXCHANGE_RATE_CALCULATION_FAILED"
	InfoBorrowBalanceCalculationFailed            Info = "BORROW_BALANCE_CALCULATION_FAILED"

	InfoMintComptrollerRejection         Info = "MINT_COMPTROLLER_REJECTION"
	InfoMintFreshnessCheck               Info = "MINT_FRESHNESS_CHECK"
	InfoMintExchangeCalculationFailed    Info = "MINT_EXCHANGE_CALCULATION_FAILED"
	InfoMintNewTotalSupplyFailed         Info = "MINT_NEW_TOTAL_SUPPLY_CALCULATION_FAILED"
	InfoMintNewAccountBalanceFailed      Info = "MINT_NEW_ACCOUNT_BALANCE_CALCULATION_FAILED"
	InfoMintTransferInFailed             Info = "MINT_TRANSFER_IN_FAILED"
	InfoRedeemComptrollerRejection       Info = "REDEEM_COMPTROLLER_REJECTION"
	InfoRedeemFreshnessCheck             Info = "REDEEM_FRESHNESS_CHECK"
	InfoRedeemExchangeCalculationFailed  Info = "REDEEM_EXCHANGE_TOKENS_CALCULATION_FAILED"
	InfoRedeemNewTotalSupplyFailed       Info = "REDEEM_NEW_TOTAL_SUPPLY_CALCULATION_FAILED"
	InfoRedeemNewAccountBalanceFailed    Info = "REDEEM_NEW_ACCOUNT_BALANCE_CALCULATION_FAILED"
	InfoRedeemTransferOutNotPossible     Info = "REDEEM_TRANSFER_OUT_NOT_POSSIBLE"
	InfoRedeemTransferOutFailed          Info = "REDEEM_TRANSFER_OUT_FAILED"
	InfoBorrowComptrollerRejection       Info = "BORROW_COMPTROLLER_REJECTION"
	InfoBorrowFreshnessCheck             Info = "BORROW_FRESHNESS_CHECK"
	InfoBorrowCashNotAvailable           Info = "BORROW_CASH_NOT_AVAILABLE"
	InfoBorrowNewAccountBalanceFailed    Info = "BORROW_NEW_ACCOUNT_BORROW_BALANCE_CALCULATION_FAILED"
	InfoBorrowNewTotalBalanceFailed      Info = "BORROW_NEW_TOTAL_BALANCE_CALCULATION_FAILED"
	InfoBorrowTransferOutFailed          Info = "BORROW_TRANSFER_OUT_FAILED"
	InfoRepayComptrollerRejection        Info = "REPAY_BORROW_COMPTROLLER_REJECTION"
	InfoRepayFreshnessCheck              Info = "REPAY_BORROW_FRESHNESS_CHECK"
	InfoRepayNewAccountBalanceFailed     Info = "REPAY_BORROW_NEW_ACCOUNT_BORROW_BALANCE_CALCULATION_FAILED"
	InfoRepayNewTotalBalanceFailed       Info = "REPAY_BORROW_NEW_TOTAL_BALANCE_CALCULATION_FAILED"
	InfoRepayTransferInFailed            Info = "REPAY_BORROW_TRANSFER_IN_FAILED"
	InfoLiquidateComptrollerRejection    Info = "LIQUIDATE_COMPTROLLER_REJECTION"
	InfoLiquidateFreshnessCheck          Info = "LIQUIDATE_FRESHNESS_CHECK"
	InfoLiquidateCollateralFreshness     Info = "LIQUIDATE_COLLATERAL_FRESHNESS_CHECK"
	InfoLiquidateLiquidatorIsBorrower    Info = "LIQUIDATE_LIQUIDATOR_IS_BORROWER"
	InfoLiquidateCloseAmountIsZero       Info = "LIQUIDATE_CLOSE_AMOUNT_IS_ZERO"
	InfoLiquidateCloseAmountIsMax        Info = "LIQUIDATE_CLOSE_AMOUNT_IS_UINT_MAX"
	InfoLiquidateSeizeCalculationFailed  Info = "LIQUIDATE_COMPTROLLER_CALCULATE_AMOUNT_SEIZE_FAILED"
	InfoLiquidateSeizeTooMuch            Info = "LIQUIDATE_SEIZE_TOO_MUCH"
	InfoLiquidateSeizeComptrollerReject  Info = "LIQUIDATE_SEIZE_COMPTROLLER_REJECTION"
	InfoLiquidateSeizeLiquidatorBorrower Info = "LIQUIDATE_SEIZE_LIQUIDATOR_IS_BORROWER"
	InfoLiquidateSeizeBalanceDecrement   Info = "LIQUIDATE_SEIZE_BALANCE_DECREMENT_FAILED"
	InfoLiquidateSeizeBalanceIncrement   Info = "LIQUIDATE_SEIZE_BALANCE_INCREMENT_FAILED"
	InfoTransferComptrollerRejection     Info = "TRANSFER_COMPTROLLER_REJECTION"
	InfoTransferNotAllowed               Info = "TRANSFER_NOT_ALLOWED"
	InfoTransferNotEnough                Info = "TRANSFER_NOT_ENOUGH"
	InfoTransferTooMuch                  Info = "TRANSFER_TOO_MUCH"
	InfoFlashloanComptrollerRejection    Info = "FLASHLOAN_COMPTROLLER_REJECTION"
	InfoFlashloanCashNotAvailable        Info = "FLASHLOAN_CASH_NOT_AVAILABLE"
	InfoFlashloanFeeCalculationFailed    Info = "FLASHLOAN_FEE_CALCULATION_FAILED"
	InfoFlashloanTransferOutFailed       Info = "FLASHLOAN_TRANSFER_OUT_FAILED"
	InfoFlashloanReceiverFailed          Info = "FLASHLOAN_RECEIVER_FAILED"
	InfoFlashloanInconsistentBalance     Info = "FLASHLOAN_INCONSISTENT_BALANCE"
	InfoAddReservesFreshCheck            Info = "ADD_RESERVES_FRESH_CHECK"
	InfoAddReservesTransferInFailed      Info = "ADD_RESERVES_TRANSFER_IN_FAILED"
	InfoReduceReservesAdminCheck         Info = "REDUCE_RESERVES_ADMIN_CHECK"
	InfoReduceReservesFreshCheck         Info = "REDUCE_RESERVES_FRESH_CHECK"
	InfoReduceReservesCashNotAvailable   Info = "REDUCE_RESERVES_CASH_NOT_AVAILABLE"
	InfoReduceReservesValidation         Info = "REDUCE_RESERVES_VALIDATION"
	InfoReduceReservesTransferOutFailed  Info = "REDUCE_RESERVES_TRANSFER_OUT_FAILED"
	InfoGulpCalculationFailed            Info = "GULP_CALCULATION_FAILED"
	InfoSetReserveFactorAdminCheck       Info = "SET_RESERVE_FACTOR_ADMIN_CHECK"
	InfoSetReserveFactorFreshCheck       Info = "SET_RESERVE_FACTOR_FRESH_CHECK"
	InfoSetReserveFactorBoundsCheck      Info = "SET_RESERVE_FACTOR_BOUNDS_CHECK"
	InfoSetInterestRateModelOwnerCheck   Info = "SET_INTEREST_RATE_MODEL_OWNER_CHECK"
	InfoSetInterestRateModelFreshCheck   Info = "SET_INTEREST_RATE_MODEL_FRESH_CHECK"
	InfoSetCollateralCapOwnerCheck       Info = "SET_COLLATERAL_CAP_OWNER_CHECK"
	InfoSetFlashloanFeeOwnerCheck        Info = "SET_FLASHLOAN_FEE_OWNER_CHECK"
	InfoSetFlashloanFeeBoundsCheck       Info = "SET_FLASHLOAN_FEE_BOUNDS_CHECK"
	InfoSetRateExclusionsOwnerCheck      Info = "SET_RATE_EXCLUSIONS_OWNER_CHECK"
	InfoCollateralCalculationFailed      Info = "COLLATERAL_CALCULATION_FAILED"
	InfoNativeSendFailed                 Info = "NATIVE_SEND_FAILED"
	InfoReentered                        Info = "REENTERED"

	InfoEnterMarkets               Info = "ENTER_MARKETS"
	InfoExitMarketRejection        Info = "EXIT_MARKET_REJECTION"
	InfoExitMarketBalanceOwed      Info = "EXIT_MARKET_BALANCE_OWED"
	InfoAccountLiquidity           Info = "ACCOUNT_LIQUIDITY_CALCULATION_FAILED"
	InfoSeizeTokensCalculation     Info = "LIQUIDATE_CALCULATE_SEIZE_TOKENS_FAILED"
	InfoSupportMarketOwnerCheck    Info = "SUPPORT_MARKET_OWNER_CHECK"
	InfoSupportMarketExists        Info = "SUPPORT_MARKET_EXISTS"
	InfoDelistMarketOwnerCheck     Info = "DELIST_MARKET_OWNER_CHECK"
	InfoDelistMarketValidation     Info = "DELIST_MARKET_VALIDATION"
	InfoSetCollateralFactorOwner   Info = "SET_COLLATERAL_FACTOR_OWNER_CHECK"
	InfoSetCollateralFactorNoExist Info = "SET_COLLATERAL_FACTOR_NO_EXISTS"
	InfoSetCollateralFactorBounds  Info = "SET_COLLATERAL_FACTOR_VALIDATION"
	InfoSetCollateralFactorPrice   Info = "SET_COLLATERAL_FACTOR_WITHOUT_PRICE"
	InfoSetCloseFactorOwnerCheck   Info = "SET_CLOSE_FACTOR_OWNER_CHECK"
	InfoSetCloseFactorValidation   Info = "SET_CLOSE_FACTOR_VALIDATION"
	InfoSetLiquidationIncentive    Info = "SET_LIQUIDATION_INCENTIVE_OWNER_CHECK"
	InfoSetLiquidationIncentiveVal Info = "SET_LIQUIDATION_INCENTIVE_VALIDATION"
	InfoSetPauseGuardianOwnerCheck Info = "SET_PAUSE_GUARDIAN_OWNER_CHECK"
	InfoSetPausedOwnerCheck        Info = "SET_PAUSED_OWNER_CHECK"
	InfoSetCapsOwnerCheck          Info = "SET_MARKET_CAPS_OWNER_CHECK"
	InfoSetCreditLimitOwnerCheck   Info = "SET_CREDIT_LIMIT_OWNER_CHECK"
	InfoSetOracleOwnerCheck        Info = "SET_PRICE_ORACLE_OWNER_CHECK"
)

// Error is the failure type returned by every engine operation. Code is the
// coarse category, Reason the risk controller sub-code for rejections and Info
// the step that failed. Err carries the underlying cause, such as a
// fixedpoint.MathError or a token adapter failure.
type Error struct {
	Code   Code
	Reason Reason
	Info   Info
	Err    error
}

func (e *Error) Error() string {
	msg := "lending: " + e.Code.String()
	if e.Info != "" {
		msg += " (" + string(e.Info) + ")"
	}
	if e.Reason != ReasonNone {
		msg += ": " + e.Reason.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Code == Reentered && e.Err == nil {
		return ErrReentered
	}
	return e.Err
}

// MathCause reports the arithmetic failure behind the error, if any.
func (e *Error) MathCause() (fixedpoint.MathError, bool) {
	var mathErr fixedpoint.MathError
	if errors.As(e.Err, &mathErr) {
		return mathErr, true
	}
	return 0, false
}

func fail(code Code, info Info) *Error {
	return &Error{Code: code, Info: info}
}

func failMath(info Info, err error) *Error {
	return &Error{Code: MathError, Info: info, Err: err}
}

func failWrap(code Code, info Info, err error) *Error {
	return &Error{Code: code, Info: info, Err: err}
}

func reject(info Info, reason Reason) *Error {
	return &Error{Code: ComptrollerRejection, Reason: reason, Info: info}
}

func reentered() *Error {
	return &Error{Code: Reentered, Info: InfoReentered, Err: ErrReentered}
}

// CodeOf extracts the coarse code of err, NoError for nil and BadInput for
// errors that did not originate from the engine.
func CodeOf(err error) Code {
	if err == nil {
		return NoError
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Code
	}
	return BadInput
}

// ReasonOf extracts the risk controller sub-code of err.
func ReasonOf(err error) Reason {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Reason
	}
	return ReasonNone
}
