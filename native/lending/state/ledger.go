// Package state holds the journaled ledger behind the lending engine. Reads
// return copies; every write records the previous value so a failed operation
// can be unwound with RevertToSnapshot.
package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MarketLedger is the per-market accounting record.
type MarketLedger struct {
	Cash                  uint256.Int
	TotalBorrows          uint256.Int
	TotalReserves         uint256.Int
	TotalSupply           uint256.Int
	TotalCollateralTokens uint256.Int
	BorrowIndex           uint256.Int
	AccrualBlock          uint64
	// Delisted marks a hard delisting; the market never lists again.
	Delisted bool
}

// AccountLedger is an account's position inside a single market. BorrowIndex
// is the market borrow index at the time BorrowPrincipal was last updated and
// is non-zero whenever BorrowPrincipal is.
type AccountLedger struct {
	Tokens           uint256.Int
	CollateralTokens uint256.Int
	BorrowPrincipal  uint256.Int
	BorrowIndex      uint256.Int
}

// IsZero reports whether the account holds nothing in the market.
func (a AccountLedger) IsZero() bool {
	return a.Tokens.IsZero() && a.CollateralTokens.IsZero() && a.BorrowPrincipal.IsZero()
}

// NativeAsset identifies the chain's native currency in balance lookups.
var NativeAsset = common.Address{}

type accountKey struct {
	market common.Address
	holder common.Address
}

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

type allowanceKey struct {
	asset   common.Address
	owner   common.Address
	spender common.Address
}
