package lending

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/irm"
)

// Version selects the accounting variant of a market.
type Version uint8

const (
	// Standard markets hold a fungible token and count every pool token
	// of an entered account as collateral.
	Standard Version = iota
	// CollateralCap markets track a collateral-enrolled sub-ledger bounded
	// by a market-wide cap.
	CollateralCap
	// WrappedNative markets hold the native currency and share the
	// collateral-cap accounting.
	WrappedNative
)

func (v Version) String() string {
	switch v {
	case Standard:
		return "standard"
	case CollateralCap:
		return "collateral_cap"
	case WrappedNative:
		return "wrapped_native"
	default:
		return "unknown"
	}
}

// ParseVersion maps a configuration string onto a Version.
func ParseVersion(value string) (Version, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "standard":
		return Standard, true
	case "collateral_cap", "collateralcap":
		return CollateralCap, true
	case "wrapped_native", "wrappednative", "native":
		return WrappedNative, true
	default:
		return Standard, false
	}
}

// tracksCollateral reports whether the variant keeps a collateral sub-ledger.
func (v Version) tracksCollateral() bool {
	return v == CollateralCap || v == WrappedNative
}

// DefaultBorrowRateMax is the per-block borrow rate ceiling, 0.000005 as a
// 1e18 mantissa.
var DefaultBorrowRateMax = uint256.NewInt(5_000_000_000_000)

// MaxFlashloanFeeBps bounds the flashloan fee.
const MaxFlashloanFeeBps = 10_000

// MarketConfig describes a market at listing time.
type MarketConfig struct {
	Address    common.Address
	Underlying common.Address
	Symbol     string
	Version    Version
	Admin      common.Address

	Model               irm.Model
	ReserveFactor       fixedpoint.Exp
	InitialExchangeRate fixedpoint.Exp
	// BorrowRateMax defaults to DefaultBorrowRateMax when nil.
	BorrowRateMax   *uint256.Int
	FlashloanFeeBps uint64
	// CollateralCap bounds total enrolled collateral; zero is unlimited.
	CollateralCap *uint256.Int
	// RateExclusions lists accounts whose borrow principal is left out of the
	// borrows figure fed to the interest rate model.
	RateExclusions []common.Address
	// Adapter overrides the default token adapter for the variant.
	Adapter TokenAdapter
}

// MarketSnapshot is a point-in-time view of a market's ledger and policy.
type MarketSnapshot struct {
	Address            common.Address
	Underlying         common.Address
	Symbol             string
	Version            string
	Cash               *uint256.Int
	TotalBorrows       *uint256.Int
	TotalReserves      *uint256.Int
	TotalSupply        *uint256.Int
	TotalCollateral    *uint256.Int
	BorrowIndex        *uint256.Int
	AccrualBlock       uint64
	ExchangeRate       *uint256.Int
	BorrowRatePerBlock *uint256.Int
	SupplyRatePerBlock *uint256.Int
	ReserveFactor      *uint256.Int
	CollateralFactor   *uint256.Int
	CollateralCap      *uint256.Int
	SupplyCap          *uint256.Int
	BorrowCap          *uint256.Int
	FlashloanFeeBps    uint64
	Listed             bool
	Delisted           bool
	MintPaused         bool
	BorrowPaused       bool
	FlashloanPaused    bool
}

// AccountSnapshot is an account's position in one market. Tokens counts the
// pool tokens that back borrowing: the collateral sub-ledger for capped
// variants, the whole balance otherwise.
type AccountSnapshot struct {
	Tokens           *uint256.Int
	Balance          *uint256.Int
	CollateralTokens *uint256.Int
	BorrowBalance    *uint256.Int
	ExchangeRate     fixedpoint.Exp
	Entered          bool
}
